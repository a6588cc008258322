package domain

import "time"

// EntryPoint is the record of one long-lived browser message. At most one
// active entry point exists per (channel, catalog) pair; reissuing setup
// replaces the previous record.
type EntryPoint struct {
	ChannelID string      `json:"channel_id"`
	MessageID string      `json:"message_id"`
	Catalog   CatalogKind `json:"catalog"`
	Stale     bool        `json:"stale"`
	CreatedAt time.Time   `json:"created_at"`
}

// Ref identifies the entry point inside component custom ids.
func (e EntryPoint) Ref() string {
	return e.ChannelID + ":" + e.Catalog.String()
}
