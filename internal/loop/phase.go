package loop

// Phase is the loop's position within an iteration.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseLocating       Phase = "locating"
	PhaseCapturing      Phase = "capturing"
	PhaseFingerprinting Phase = "fingerprinting"
	PhaseGateCheck      Phase = "gate_check"
	PhaseQuerying       Phase = "querying"
	PhaseInjecting      Phase = "injecting"
	PhaseBookkeeping    Phase = "bookkeeping"
	PhaseSleeping       Phase = "sleeping"
	PhaseStopped        Phase = "stopped"
)

// Outcome is how an iteration ended. Every iteration logs exactly one.
type Outcome string

const (
	OutcomePaused        Outcome = "paused"
	OutcomeWindowMissing Outcome = "window_missing"
	OutcomeFocusFailed   Outcome = "focus_failed"
	OutcomeCaptureFailed Outcome = "capture_failed"
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeRateLimited   Outcome = "rate_limited"
	OutcomeOracleFailed  Outcome = "oracle_failed"
	OutcomeNoReply       Outcome = "no_reply"
	OutcomeSendFailed    Outcome = "send_failed"
	OutcomeReplied       Outcome = "replied"
	OutcomePanic         Outcome = "panic"
)
