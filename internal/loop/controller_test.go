package loop

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/dedupe"
	"github.com/1broseidon/replybot/internal/frame"
	"github.com/1broseidon/replybot/internal/oracle"
	"github.com/1broseidon/replybot/internal/platform"
	"github.com/1broseidon/replybot/internal/ratelimit"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose stats worker starts in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var t0 = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	onSleep func(d time.Duration)
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	if c.onSleep != nil {
		c.onSleep(d)
	}
	return ctx.Err()
}

type fakeScreen struct {
	window     platform.Window
	findErr    error
	focusErr   error
	captureErr error
	captures   int
}

func (s *fakeScreen) FindWindow(title string) (platform.Window, error) {
	if s.findErr != nil {
		return platform.Window{}, s.findErr
	}
	return s.window, nil
}

func (s *fakeScreen) Focus(id platform.WindowID) error {
	return s.focusErr
}

func (s *fakeScreen) Capture(bounds platform.Rect) (*frame.Frame, error) {
	if s.captureErr != nil {
		return nil, s.captureErr
	}
	s.captures++
	return frame.New(image.NewRGBA(image.Rect(0, 0, bounds.Width, bounds.Height)), time.Time{}), nil
}

type fakeOracle struct {
	raw     string
	err     error
	panics  bool
	calls  int

	// Observed while the call was in flight.
	ctxErr      error
	hasDeadline bool
}

func (o *fakeOracle) Analyze(ctx context.Context, f *frame.Frame) (oracle.Decision, error) {
	o.calls++
	o.ctxErr = ctx.Err()
	_, o.hasDeadline = ctx.Deadline()
	if o.panics {
		panic("model exploded")
	}
	if o.err != nil {
		return oracle.Decision{}, o.err
	}
	return oracle.ParseDecision(o.raw)
}

type fakeInjector struct {
	err   error
	texts []string
}

func (i *fakeInjector) Inject(text string) error {
	i.texts = append(i.texts, text)
	return i.err
}

type harness struct {
	clock    *fakeClock
	screen   *fakeScreen
	oracle   *fakeOracle
	injector *fakeInjector
	ledger   *dedupe.Ledger
	limiter  *ratelimit.Limiter
	logs     *observer.ObservedLogs
	fp       frame.Fingerprint
	ctrl     *Controller
}

const morningReply = `{"should_reply": true, "message_detected": "good morning", "reply": "morning! ☕"}`

func newHarness(t *testing.T) *harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	h := &harness{
		clock: &fakeClock{now: t0},
		screen: &fakeScreen{window: platform.Window{
			ID:     42,
			Title:  "WhatsApp",
			Bounds: platform.Rect{X: 0, Y: 0, Width: 8, Height: 8},
		}},
		oracle:   &fakeOracle{raw: morningReply},
		injector: &fakeInjector{},
		ledger:   dedupe.NewLedger(300*time.Second, 24*time.Hour),
		limiter:  ratelimit.New(10, time.Hour, t0),
		logs:     logs,
		fp:       "abc123",
	}
	ctrl, err := New(Settings{
		WindowTitle:   "WhatsApp",
		ScanInterval:  20 * time.Second,
		OracleTimeout: time.Minute,
	}, Deps{
		Screen:      h.screen,
		Oracle:      h.oracle,
		Injector:    h.injector,
		Ledger:      h.ledger,
		Limiter:     h.limiter,
		Fingerprint: func(*frame.Frame) frame.Fingerprint { return h.fp },
		Clock:       h.clock,
		Logger:      zap.New(core),
	})
	require.NoError(t, err)
	h.ctrl = ctrl
	return h
}

func (h *harness) outcomeLogs(out Outcome) int {
	return h.logs.FilterField(zap.String("outcome", string(out))).Len()
}

func TestScenario_FirstReply(t *testing.T) {
	h := newHarness(t)

	out := h.ctrl.Step(context.Background())
	require.Equal(t, OutcomeReplied, out)

	assert.Equal(t, []string{"morning! ☕"}, h.injector.texts)
	last, ok := h.ledger.LastReply("abc123")
	require.True(t, ok)
	assert.Equal(t, h.clock.Now(), last)
	assert.Equal(t, 1, h.limiter.Count())
	assert.Equal(t, 1, h.outcomeLogs(OutcomeReplied))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, OutcomeReplied, snap.LastOutcome)
	assert.Equal(t, "good morning", snap.LastDetected)
	assert.Equal(t, "morning! ☕", snap.LastReply)
	assert.Equal(t, uint64(1), snap.Replies)
	assert.Equal(t, 1, snap.LedgerSize)
	assert.Equal(t, 1, snap.RateCount)
	assert.Equal(t, 10, snap.RateCap)
}

func TestScenario_DuplicateWithinCooldown(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, OutcomeReplied, h.ctrl.Step(context.Background()))
	require.Equal(t, 1, h.oracle.calls)

	h.clock.Advance(60 * time.Second)
	out := h.ctrl.Step(context.Background())

	assert.Equal(t, OutcomeDuplicate, out)
	assert.Equal(t, 1, h.oracle.calls, "oracle must not be consulted for a suppressed frame")
	assert.Len(t, h.injector.texts, 1)
	assert.Equal(t, 1, h.limiter.Count())
	assert.Equal(t, 1, h.outcomeLogs(OutcomeDuplicate))
}

func TestScenario_RateCapReached(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 10; i++ {
		h.limiter.Record(t0)
	}
	h.fp = "never-seen-before"

	out := h.ctrl.Step(context.Background())

	assert.Equal(t, OutcomeRateLimited, out)
	assert.Equal(t, 0, h.oracle.calls)
	assert.Equal(t, 0, h.ledger.Len(), "a rate-limited frame must not consume a dedupe slot")
	assert.Equal(t, 1, h.outcomeLogs(OutcomeRateLimited))
}

func TestCooldownBoundary(t *testing.T) {
	tests := []struct {
		name  string
		delta time.Duration
		want  Outcome
	}{
		{"just inside cooldown", 300*time.Second - time.Millisecond, OutcomeDuplicate},
		{"exactly cooldown", 300 * time.Second, OutcomeReplied},
		{"past cooldown", 301 * time.Second, OutcomeReplied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ledger.Record("abc123", t0)
			h.clock.Advance(tt.delta)

			assert.Equal(t, tt.want, h.ctrl.Step(context.Background()))
		})
	}
}

func TestRateCap_ResetsAfterWindow(t *testing.T) {
	h := newHarness(t)
	h.limiter.SetCap(2)

	fps := []frame.Fingerprint{"f1", "f2", "f3"}
	var outs []Outcome
	for _, fp := range fps {
		h.fp = fp
		outs = append(outs, h.ctrl.Step(context.Background()))
		h.clock.Advance(time.Minute)
	}
	assert.Equal(t, []Outcome{OutcomeReplied, OutcomeReplied, OutcomeRateLimited}, outs)

	h.clock.Advance(time.Hour)
	h.fp = "f4"
	assert.Equal(t, OutcomeReplied, h.ctrl.Step(context.Background()))
	assert.Equal(t, 1, h.limiter.Count())
}

func TestFailedSend_LeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.injector.err = errors.New("window vanished")

	out := h.ctrl.Step(context.Background())

	assert.Equal(t, OutcomeSendFailed, out)
	assert.Equal(t, 0, h.ledger.Len())
	assert.Equal(t, 0, h.limiter.Count())
	assert.Equal(t, 1, h.outcomeLogs(OutcomeSendFailed))

	// The same frame is retried on the next cycle.
	h.injector.err = nil
	h.clock.Advance(20 * time.Second)
	assert.Equal(t, OutcomeReplied, h.ctrl.Step(context.Background()))
	assert.Equal(t, 2, h.oracle.calls)
}

func TestOracleMalformedResponse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"prose", "Looks like a friendly greeting, say hi back!"},
		{"unbalanced fence", "```json\n{\"should_reply\": true, \"reply\": \"hi\"}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.oracle.raw = tt.raw

			var out Outcome
			require.NotPanics(t, func() { out = h.ctrl.Step(context.Background()) })

			assert.Equal(t, OutcomeOracleFailed, out)
			assert.Empty(t, h.injector.texts)
			assert.Equal(t, 0, h.ledger.Len())

			entries := h.logs.FilterField(zap.String("raw_response", tt.raw)).All()
			require.Len(t, entries, 1)
			assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		})
	}
}

func TestOracleTransportError(t *testing.T) {
	h := newHarness(t)
	h.oracle.err = errors.New("connection reset")

	assert.Equal(t, OutcomeOracleFailed, h.ctrl.Step(context.Background()))
	assert.Empty(t, h.injector.texts)
	assert.Contains(t, h.ctrl.Snapshot().LastError, "connection reset")
}

func TestNoReply(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"declined", `{"should_reply": false, "message_detected": "ok", "reply": "sure"}`},
		{"blank reply", `{"should_reply": true, "message_detected": "hi", "reply": "  "}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.oracle.raw = tt.raw

			assert.Equal(t, OutcomeNoReply, h.ctrl.Step(context.Background()))
			assert.Empty(t, h.injector.texts)
			assert.Equal(t, 0, h.ledger.Len())
			assert.Equal(t, 0, h.limiter.Count())
		})
	}
}

func TestEnvironmentFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeScreen)
		want  Outcome
	}{
		{"window missing", func(s *fakeScreen) { s.findErr = platform.ErrWindowNotFound }, OutcomeWindowMissing},
		{"focus failed", func(s *fakeScreen) { s.focusErr = errors.New("bad window") }, OutcomeFocusFailed},
		{"capture failed", func(s *fakeScreen) { s.captureErr = errors.New("GetImage failed") }, OutcomeCaptureFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			tt.setup(h.screen)

			out := h.ctrl.Step(context.Background())

			assert.Equal(t, tt.want, out)
			assert.Equal(t, 0, h.oracle.calls)
			assert.Equal(t, 1, h.outcomeLogs(tt.want))
		})
	}
}

func TestPanicIsContained(t *testing.T) {
	h := newHarness(t)
	h.oracle.panics = true

	var out Outcome
	require.NotPanics(t, func() { out = h.ctrl.Step(context.Background()) })
	assert.Equal(t, OutcomePanic, out)

	entries := h.logs.FilterField(zap.String("outcome", string(OutcomePanic))).All()
	require.Len(t, entries, 1)
	assert.Equal(t, string(PhaseQuerying), entries[0].ContextMap()["phase"])

	h.oracle.panics = false
	assert.Equal(t, OutcomeReplied, h.ctrl.Step(context.Background()))
}

func TestPauseResume(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Pause()
	assert.True(t, h.ctrl.Snapshot().Paused)

	assert.Equal(t, OutcomePaused, h.ctrl.Step(context.Background()))
	assert.Equal(t, 0, h.screen.captures)

	assert.False(t, h.ctrl.TogglePause())
	assert.Equal(t, OutcomeReplied, h.ctrl.Step(context.Background()))
	assert.True(t, h.ctrl.TogglePause())
	h.ctrl.Resume()
	assert.False(t, h.ctrl.Paused())
}

func TestOracleContextSurvivesInterrupt(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, OutcomeReplied, h.ctrl.Step(ctx))

	require.Equal(t, 1, h.oracle.calls)
	assert.NoError(t, h.oracle.ctxErr, "interrupt must not abort the oracle call")
	assert.True(t, h.oracle.hasDeadline, "oracle call must be bounded by oracle_timeout")
}

func TestReloadAppliesBetweenIterations(t *testing.T) {
	h := newHarness(t)
	cfg := config.DefaultConfig()
	cfg.WindowTitle = "Signal"
	cfg.Cooldown = 10 * time.Minute
	cfg.MaxRepliesPerHour = 1

	h.ctrl.Reload(config.DefaultConfig())
	h.ctrl.Reload(cfg) // replaces the pending one

	require.Equal(t, OutcomeReplied, h.ctrl.Step(context.Background()))
	assert.Equal(t, 10*time.Minute, h.ledger.Cooldown())
	assert.Equal(t, 1, h.limiter.Cap())
	assert.Equal(t, "Signal", h.ctrl.Snapshot().WindowTitle)

	h.fp = "other"
	assert.Equal(t, OutcomeRateLimited, h.ctrl.Step(context.Background()))
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sleeps := 0
	h.clock.onSleep = func(d time.Duration) {
		if d == 20*time.Second {
			sleeps++
			if sleeps == 3 {
				cancel()
			}
		}
	}

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	snap := h.ctrl.Snapshot()
	assert.Equal(t, PhaseStopped, snap.Phase)
	assert.Equal(t, uint64(3), snap.Iteration)
	// First iteration replies, the rest see the same frame inside the cooldown.
	assert.Equal(t, 1, h.outcomeLogs(OutcomeReplied))
	assert.Equal(t, 2, h.outcomeLogs(OutcomeDuplicate))
}

func TestNew_RequiresDeps(t *testing.T) {
	_, err := New(Settings{}, Deps{})
	assert.Error(t, err)
}
