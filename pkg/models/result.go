package models

import "time"

// ForwardResult is the only value returned to callers of a state change.
type ForwardResult struct {
	OK bool `json:"ok"`
}

// StateRecord is the current state held by the store for one service.
type StateRecord struct {
	Service   string            `json:"service"`
	State     AvailabilityState `json:"state"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// StateHistoryEntry is one recorded transition.
type StateHistoryEntry struct {
	ID        int64             `json:"id"`
	Service   string            `json:"service"`
	State     AvailabilityState `json:"state"`
	ChangedAt time.Time         `json:"changed_at"`
}

// StateHistoryResponse lists the most recent transitions, newest first.
type StateHistoryResponse struct {
	Service string              `json:"service"`
	Entries []StateHistoryEntry `json:"entries"`
}
