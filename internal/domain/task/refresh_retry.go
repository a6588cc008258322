package task

import "hll/contentbot/internal/domain"

// RefreshRetryTask re-attempts a failed entry-point refresh.
type RefreshRetryTask struct {
	ChannelID  string             `json:"channel_id"`
	Catalog    domain.CatalogKind `json:"catalog"`
	Version    string             `json:"version"`
	RetryCount int                `json:"retry_count"` // attempts so far
	Error      string             `json:"error"`       // message from the original failure
}

func (t *RefreshRetryTask) TaskType() string {
	return "RefreshRetryTask"
}

func (t *RefreshRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
