// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

import "time"

// ConversionCompletedQueue is the durable queue completed conversions are
// published to.
const ConversionCompletedQueue = "conversion.completed"

// ConversionCompletedEvent is published after a document was converted and
// its pages were debited.  It carries enough for downstream consumers to
// audit usage without querying the ledger.
type ConversionCompletedEvent struct {
	JobID       string    `json:"job_id"`
	UserID      int64     `json:"user_id"`
	Plan        string    `json:"plan"`
	Filename    string    `json:"filename"`
	Pages       int       `json:"pages"`
	UsedToday   int       `json:"used_today"`
	Limit       int       `json:"limit"`
	Day         string    `json:"day"`
	Docx        bool      `json:"docx"`
	Partial     bool      `json:"partial"`
	CompletedAt time.Time `json:"completed_at"`
}
