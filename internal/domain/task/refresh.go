package task

import "hll/contentbot/internal/domain"

// EntryPointRefreshTask re-renders one persistent browser message against the
// given catalog version.
type EntryPointRefreshTask struct {
	ChannelID string             `json:"channel_id"`
	Catalog   domain.CatalogKind `json:"catalog"`
	Version   string             `json:"version"` // catalog version to render
}

func (t *EntryPointRefreshTask) TaskType() string {
	return "EntryPointRefreshTask"
}

func (t *EntryPointRefreshTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
