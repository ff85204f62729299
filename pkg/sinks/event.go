package sinks

import "time"

// Event is the payload published downstream when an ingestion run ends.
type Event struct {
	RequestID   string    `json:"request_id"`
	Platform    string    `json:"platform"`
	SourceURL   string    `json:"source_url"`
	Status      string    `json:"status"`
	FailureKind string    `json:"failure_kind,omitempty"`
	Items       int       `json:"items"`
	Quality     int       `json:"quality"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CompletedAt time.Time `json:"completed_at"`
}

// NewEvent stamps an event with the completion time.
func NewEvent(requestID, platform, sourceURL, status string) Event {
	return Event{
		RequestID:   requestID,
		Platform:    platform,
		SourceURL:   sourceURL,
		Status:      status,
		CompletedAt: time.Now().UTC(),
	}
}
