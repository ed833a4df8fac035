package mcp

// NoInput is the input for tools that take no arguments.
type NoInput struct{}

// StatusOutput is the output for get_status, pause_replies and resume_replies.
// Timestamps are RFC 3339 and empty when unset.
type StatusOutput struct {
	Phase         string `json:"phase" jsonschema:"Current loop phase (locating, capturing, querying, sleeping, ...)"`
	Paused        bool   `json:"paused" jsonschema:"True when replies are paused"`
	WindowTitle   string `json:"window_title" jsonschema:"Title substring used to find the chat window"`
	PID           int    `json:"pid"`
	StartedAt     string `json:"started_at,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Iteration     uint64 `json:"iteration" jsonschema:"Number of completed loop iterations"`
	Replies       uint64 `json:"replies" jsonschema:"Replies sent since start"`
	LedgerSize    int    `json:"ledger_size" jsonschema:"Fingerprints currently remembered for cooldown"`
	RateCount     int    `json:"rate_count" jsonschema:"Replies sent in the current rate window"`
	RateCap       int    `json:"rate_cap" jsonschema:"Maximum replies per rate window"`
	RateResetsAt  string `json:"rate_resets_at,omitempty"`
	LastOutcome   string `json:"last_outcome,omitempty" jsonschema:"Outcome of the most recent iteration"`
	LastDetected  string `json:"last_detected,omitempty"`
	LastReply     string `json:"last_reply,omitempty"`
	LastReplyAt   string `json:"last_reply_at,omitempty"`
	LastError     string `json:"last_error,omitempty"`
}

// ReloadOutput is the output for the reload_config tool.
type ReloadOutput struct {
	Reloaded bool `json:"reloaded"`
}
