package render

import (
	"fmt"
	"strings"

	"hll/contentbot/internal/domain"
)

// Component custom ids route interactions back to the owning session. The
// layout is browser:<action>:<payload>; payload is catalog:sessionkey for
// navigation actions and channel:catalog for the persistent entry-point
// dropdown.
const (
	customIDPrefix = "browser:"

	cidNav   = customIDPrefix + "nav:"
	cidBack  = customIDPrefix + "back:"
	cidClose = customIDPrefix + "close:"
	cidEntry = customIDPrefix + "entry:"
)

func NavCustomID(kind domain.CatalogKind, key domain.SessionKey) string {
	return cidNav + kind.String() + ":" + key.String()
}

func BackCustomID(kind domain.CatalogKind, key domain.SessionKey) string {
	return cidBack + kind.String() + ":" + key.String()
}

func CloseCustomID(kind domain.CatalogKind, key domain.SessionKey) string {
	return cidClose + kind.String() + ":" + key.String()
}

func EntryCustomID(channelID string, kind domain.CatalogKind) string {
	return cidEntry + channelID + ":" + kind.String()
}

// IsBrowserComponent reports whether a custom id belongs to this feature.
func IsBrowserComponent(customID string) bool {
	return strings.HasPrefix(customID, customIDPrefix)
}

// IsEntryPointComponent reports whether the custom id is a persistent
// entry-point dropdown.
func IsEntryPointComponent(customID string) bool {
	return strings.HasPrefix(customID, cidEntry)
}

// ParseEntryPointID extracts (channelID, catalog) from an entry-point custom
// id.
func ParseEntryPointID(customID string) (string, domain.CatalogKind, error) {
	payload, ok := strings.CutPrefix(customID, cidEntry)
	if !ok {
		return "", "", fmt.Errorf("not an entry-point custom id: %q", customID)
	}
	channelID, kind, ok := strings.Cut(payload, ":")
	if !ok || channelID == "" || !domain.CatalogKind(kind).Valid() {
		return "", "", fmt.Errorf("malformed entry-point custom id: %q", customID)
	}
	return channelID, domain.CatalogKind(kind), nil
}

// DecodeSelection turns a component interaction (custom id plus selected
// values) into a SelectionEvent for the dispatch path.
func DecodeSelection(customID string, values []string) (domain.SelectionEvent, error) {
	var (
		action  domain.Action
		payload string
	)
	switch {
	case strings.HasPrefix(customID, cidNav):
		action, payload = domain.ActionSelect, strings.TrimPrefix(customID, cidNav)
	case strings.HasPrefix(customID, cidBack):
		action, payload = domain.ActionBack, strings.TrimPrefix(customID, cidBack)
	case strings.HasPrefix(customID, cidClose):
		action, payload = domain.ActionClose, strings.TrimPrefix(customID, cidClose)
	default:
		return domain.SelectionEvent{}, fmt.Errorf("unknown component custom id: %q", customID)
	}

	kind, keyStr, ok := strings.Cut(payload, ":")
	if !ok || !domain.CatalogKind(kind).Valid() {
		return domain.SelectionEvent{}, fmt.Errorf("malformed component custom id: %q", customID)
	}
	key, err := domain.ParseSessionKey(keyStr)
	if err != nil {
		return domain.SelectionEvent{}, err
	}

	ev := domain.SelectionEvent{Key: key, Catalog: domain.CatalogKind(kind), Action: action}
	if action == domain.ActionSelect {
		if len(values) == 0 {
			return domain.SelectionEvent{}, fmt.Errorf("select interaction without a value")
		}
		ev.ChoiceID = values[0]
	}
	return ev, nil
}
