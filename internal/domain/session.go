package domain

import (
	"fmt"
	"strings"
)

// SessionKey binds a session to the requesting user AND the interaction that
// spawned it. The same user interacting with two different browsers gets two
// keys, so the sessions never alias.
type SessionKey struct {
	UserID    string `json:"user_id"`
	ContextID string `json:"context_id"`
}

func NewSessionKey(userID, contextID string) SessionKey {
	return SessionKey{UserID: userID, ContextID: contextID}
}

func (k SessionKey) String() string {
	return k.UserID + "/" + k.ContextID
}

// ParseSessionKey is the inverse of String. Keys travel inside component
// custom ids, so both halves must round-trip.
func ParseSessionKey(s string) (SessionKey, error) {
	userID, contextID, ok := strings.Cut(s, "/")
	if !ok || userID == "" || contextID == "" {
		return SessionKey{}, fmt.Errorf("malformed session key %q", s)
	}
	return SessionKey{UserID: userID, ContextID: contextID}, nil
}
