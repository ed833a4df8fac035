package loop

import "time"

// Snapshot is a point-in-time view of the loop, safe to hand to other
// goroutines.
type Snapshot struct {
	Phase        Phase     `json:"phase"`
	Paused       bool      `json:"paused"`
	WindowTitle  string    `json:"window_title"`
	StartedAt    time.Time `json:"started_at"`
	Iteration    uint64    `json:"iteration"`
	Replies      uint64    `json:"replies"`
	LedgerSize   int       `json:"ledger_size"`
	RateCount    int       `json:"rate_count"`
	RateCap      int       `json:"rate_cap"`
	RateResetsAt time.Time `json:"rate_resets_at"`

	LastOutcome     Outcome   `json:"last_outcome,omitempty"`
	LastIterationAt time.Time `json:"last_iteration_at"`
	LastDetected    string    `json:"last_detected,omitempty"`
	LastReply       string    `json:"last_reply,omitempty"`
	LastReplyAt     time.Time `json:"last_reply_at"`
	LastError       string    `json:"last_error,omitempty"`
}
