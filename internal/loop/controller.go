// Package loop runs the capture, dedupe, rate-limit and reply cycle.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/dedupe"
	"github.com/1broseidon/replybot/internal/frame"
	"github.com/1broseidon/replybot/internal/logging"
	"github.com/1broseidon/replybot/internal/oracle"
	"github.com/1broseidon/replybot/internal/platform"
	"github.com/1broseidon/replybot/internal/ratelimit"
)

// Screen locates, focuses and captures the monitored window.
type Screen interface {
	FindWindow(titleSubstring string) (platform.Window, error)
	Focus(id platform.WindowID) error
	Capture(bounds platform.Rect) (*frame.Frame, error)
}

// Injector delivers a reply. A nil error means the send was issued.
type Injector interface {
	Inject(text string) error
}

// Archiver stores frames for debugging.
type Archiver interface {
	Save(f *frame.Frame) (string, error)
}

// injectorConfigurer is implemented by injectors that accept live reloads.
type injectorConfigurer interface {
	Configure(title string, opts config.InjectionConfig)
}

// Settings are the tunables the controller reads each iteration.
type Settings struct {
	WindowTitle   string
	ScanInterval  time.Duration
	FocusSettle   time.Duration
	OracleTimeout time.Duration
}

// SettingsFromConfig extracts loop settings from a configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		WindowTitle:   cfg.WindowTitle,
		ScanInterval:  cfg.ScanInterval,
		FocusSettle:   cfg.FocusSettle,
		OracleTimeout: cfg.OracleTimeout,
	}
}

// Deps are the collaborators and state owned by the controller. Ledger and
// Limiter are touched only from the goroutine running Run/Step.
type Deps struct {
	Screen   Screen
	Oracle   oracle.Oracle
	Injector Injector
	Ledger   *dedupe.Ledger
	Limiter  *ratelimit.Limiter
	// Archive is optional.
	Archive Archiver
	// Fingerprint defaults to frame.Compute.
	Fingerprint func(*frame.Frame) frame.Fingerprint
	// Clock defaults to RealClock.
	Clock  Clock
	Logger *zap.Logger
}

// Controller drives the reply loop.
type Controller struct {
	screen      Screen
	oracle      oracle.Oracle
	injector    Injector
	ledger      *dedupe.Ledger
	limiter     *ratelimit.Limiter
	archive     Archiver
	fingerprint func(*frame.Frame) frame.Fingerprint
	clock       Clock
	logger      *zap.Logger

	settings  Settings
	iteration uint64

	paused atomic.Bool
	reload chan *config.Config

	mu   sync.Mutex
	snap Snapshot
}

// New builds a controller. Screen, Oracle, Injector, Ledger and Limiter are
// required.
func New(settings Settings, deps Deps) (*Controller, error) {
	switch {
	case deps.Screen == nil:
		return nil, errors.New("loop: screen is required")
	case deps.Oracle == nil:
		return nil, errors.New("loop: oracle is required")
	case deps.Injector == nil:
		return nil, errors.New("loop: injector is required")
	case deps.Ledger == nil:
		return nil, errors.New("loop: ledger is required")
	case deps.Limiter == nil:
		return nil, errors.New("loop: limiter is required")
	}
	if deps.Fingerprint == nil {
		deps.Fingerprint = frame.Compute
	}
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	c := &Controller{
		screen:      deps.Screen,
		oracle:      deps.Oracle,
		injector:    deps.Injector,
		ledger:      deps.Ledger,
		limiter:     deps.Limiter,
		archive:     deps.Archive,
		fingerprint: deps.Fingerprint,
		clock:       deps.Clock,
		logger:      deps.Logger,
		settings:    settings,
		reload:      make(chan *config.Config, 1),
	}
	c.snap = Snapshot{
		Phase:       PhaseIdle,
		WindowTitle: settings.WindowTitle,
		StartedAt:   c.clock.Now(),
	}
	c.publishCounters()
	return c, nil
}

// Pause makes subsequent iterations do nothing until Resume.
func (c *Controller) Pause() {
	if !c.paused.Swap(true) {
		c.logger.Info("replies paused")
	}
}

// Resume undoes Pause.
func (c *Controller) Resume() {
	if c.paused.Swap(false) {
		c.logger.Info("replies resumed")
	}
}

// TogglePause flips the pause state and returns the new value.
func (c *Controller) TogglePause() bool {
	for {
		old := c.paused.Load()
		if c.paused.CompareAndSwap(old, !old) {
			if old {
				c.logger.Info("replies resumed")
			} else {
				c.logger.Info("replies paused")
			}
			return !old
		}
	}
}

// Paused reports the pause state.
func (c *Controller) Paused() bool {
	return c.paused.Load()
}

// Reload queues cfg to be applied before the next iteration. A newer config
// replaces one still pending.
func (c *Controller) Reload(cfg *config.Config) {
	for {
		select {
		case c.reload <- cfg:
			return
		default:
		}
		select {
		case <-c.reload:
		default:
		}
	}
}

// Snapshot returns the latest published state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	s := c.snap
	c.mu.Unlock()
	s.Paused = c.paused.Load()
	return s
}

// Run loops until ctx is done. Interrupts are observed between iterations
// and while sleeping; an in-flight oracle call or injection completes first.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("reply loop started",
		zap.String("window", c.settings.WindowTitle),
		zap.Duration("scan_interval", c.settings.ScanInterval),
		zap.Duration("cooldown", c.ledger.Cooldown()),
		zap.Int("max_replies_per_hour", c.limiter.Cap()),
	)
	for ctx.Err() == nil {
		c.Step(ctx)
		c.setPhase(PhaseSleeping)
		if err := c.clock.Sleep(ctx, c.settings.ScanInterval); err != nil {
			break
		}
	}
	c.setPhase(PhaseStopped)
	c.logger.Info("reply loop stopped", zap.Uint64("iterations", c.iteration))
	return nil
}

// Step runs one iteration, without the trailing sleep, and returns its
// outcome. Panics inside the iteration are recovered.
func (c *Controller) Step(ctx context.Context) (out Outcome) {
	c.applyPendingReload()

	c.iteration++
	log := c.logger.With(zap.Uint64("iteration", c.iteration))
	phase := PhaseIdle
	enter := func(p Phase) {
		phase = p
		c.setPhase(p)
		log.Debug("phase", zap.String("phase", string(p)))
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s: %v", phase, r)
			log.Error("iteration failed",
				zap.String("outcome", string(OutcomePanic)),
				zap.String("phase", string(phase)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			out = OutcomePanic
			c.finish(out, err)
		}
	}()

	if c.paused.Load() {
		log.Debug("iteration skipped", zap.String("outcome", string(OutcomePaused)))
		return c.finish(OutcomePaused, nil)
	}

	s := c.settings

	enter(PhaseLocating)
	win, err := c.screen.FindWindow(s.WindowTitle)
	if err != nil {
		log.Warn("target window not found",
			zap.String("outcome", string(OutcomeWindowMissing)),
			zap.String("window", s.WindowTitle),
			zap.Error(err),
		)
		return c.finish(OutcomeWindowMissing, err)
	}
	if err := c.screen.Focus(win.ID); err != nil {
		log.Warn("could not focus target window",
			zap.String("outcome", string(OutcomeFocusFailed)),
			zap.String("window", win.Title),
			zap.Error(err),
		)
		return c.finish(OutcomeFocusFailed, err)
	}
	_ = c.clock.Sleep(context.WithoutCancel(ctx), s.FocusSettle)
	// Activation can move or restore the window.
	if moved, err := c.screen.FindWindow(s.WindowTitle); err == nil {
		win = moved
	}

	enter(PhaseCapturing)
	f, err := c.screen.Capture(win.Bounds)
	if err != nil {
		log.Warn("capture failed",
			zap.String("outcome", string(OutcomeCaptureFailed)),
			zap.String("window", win.Title),
			zap.Error(err),
		)
		return c.finish(OutcomeCaptureFailed, err)
	}
	if c.archive != nil {
		if path, err := c.archive.Save(f); err != nil {
			log.Warn("debug archive failed", zap.Error(err))
		} else {
			log.Debug("frame archived", zap.String("path", path))
		}
	}

	enter(PhaseFingerprinting)
	fp := c.fingerprint(f)
	log = log.With(zap.String("fingerprint", fp.Short()))

	enter(PhaseGateCheck)
	now := c.clock.Now()
	if c.ledger.Suppressed(fp, now) {
		last, _ := c.ledger.LastReply(fp)
		log.Info("already replied to this frame",
			zap.String("outcome", string(OutcomeDuplicate)),
			zap.Duration("since_reply", now.Sub(last)),
			zap.Duration("cooldown", c.ledger.Cooldown()),
		)
		return c.finish(OutcomeDuplicate, nil)
	}
	if !c.limiter.Allow(now) {
		log.Info("hourly reply cap reached",
			zap.String("outcome", string(OutcomeRateLimited)),
			zap.Int("count", c.limiter.Count()),
			zap.Int("cap", c.limiter.Cap()),
			zap.Time("resets_at", c.limiter.ResetsAt()),
		)
		return c.finish(OutcomeRateLimited, nil)
	}

	enter(PhaseQuerying)
	decision, err := c.query(ctx, f)
	if err != nil {
		fields := []zap.Field{zap.String("outcome", string(OutcomeOracleFailed)), zap.Error(err)}
		var malformed *oracle.MalformedResponseError
		if errors.As(err, &malformed) {
			fields = append(fields, zap.String("raw_response", malformed.Raw))
		}
		log.Warn("oracle failed", fields...)
		return c.finish(OutcomeOracleFailed, err)
	}
	c.recordDecision(decision)
	log.Info("oracle verdict",
		zap.Bool("should_reply", decision.ShouldReply),
		zap.String("detected", logging.Truncate(decision.MessageDetected, 80)),
	)

	enter(PhaseInjecting)
	if !decision.Actionable() {
		log.Info("nothing to reply", zap.String("outcome", string(OutcomeNoReply)))
		return c.finish(OutcomeNoReply, nil)
	}
	if err := c.injector.Inject(decision.Reply); err != nil {
		log.Warn("reply not sent",
			zap.String("outcome", string(OutcomeSendFailed)),
			zap.Error(err),
		)
		return c.finish(OutcomeSendFailed, err)
	}

	enter(PhaseBookkeeping)
	sentAt := c.clock.Now()
	c.ledger.Record(fp, sentAt)
	c.limiter.Record(sentAt)
	pruned := c.ledger.Prune(sentAt)
	c.recordReply(decision.Reply, sentAt)
	log.Info("reply sent",
		zap.String("outcome", string(OutcomeReplied)),
		zap.String("reply", decision.Reply),
		zap.Int("rate_count", c.limiter.Count()),
		zap.Int("rate_cap", c.limiter.Cap()),
		zap.Int("pruned", pruned),
	)
	return c.finish(OutcomeReplied, nil)
}

// query calls the oracle on a context that ignores cancellation so an
// interrupt cannot abort a request mid-flight; OracleTimeout bounds it.
func (c *Controller) query(ctx context.Context, f *frame.Frame) (oracle.Decision, error) {
	qctx := context.WithoutCancel(ctx)
	if c.settings.OracleTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(qctx, c.settings.OracleTimeout)
		defer cancel()
	}
	return c.oracle.Analyze(qctx, f)
}

func (c *Controller) applyPendingReload() {
	select {
	case cfg := <-c.reload:
		c.apply(cfg)
	default:
	}
}

func (c *Controller) apply(cfg *config.Config) {
	c.settings = SettingsFromConfig(cfg)
	c.ledger.SetPolicy(cfg.Cooldown, cfg.LedgerRetention)
	c.limiter.SetCap(cfg.MaxRepliesPerHour)
	c.limiter.SetWindow(cfg.RateWindow)
	if ic, ok := c.injector.(injectorConfigurer); ok {
		ic.Configure(cfg.WindowTitle, cfg.Injection)
	}
	if cfg.Debug.Enabled {
		c.archive = &frame.Archive{Dir: cfg.Debug.Dir}
	} else {
		c.archive = nil
	}

	c.mu.Lock()
	c.snap.WindowTitle = cfg.WindowTitle
	c.mu.Unlock()
	c.publishCounters()

	c.logger.Info("configuration reloaded",
		zap.String("window", cfg.WindowTitle),
		zap.Duration("scan_interval", cfg.ScanInterval),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.Int("max_replies_per_hour", cfg.MaxRepliesPerHour),
		zap.Bool("debug", cfg.Debug.Enabled),
	)
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.snap.Phase = p
	c.mu.Unlock()
}

func (c *Controller) recordDecision(d oracle.Decision) {
	c.mu.Lock()
	c.snap.LastDetected = d.MessageDetected
	c.mu.Unlock()
}

func (c *Controller) recordReply(text string, at time.Time) {
	c.mu.Lock()
	c.snap.Replies++
	c.snap.LastReply = text
	c.snap.LastReplyAt = at
	c.mu.Unlock()
}

// publishCounters copies ledger and limiter state into the snapshot. Only
// the loop goroutine calls it.
func (c *Controller) publishCounters() {
	c.mu.Lock()
	c.snap.LedgerSize = c.ledger.Len()
	c.snap.RateCount = c.limiter.Count()
	c.snap.RateCap = c.limiter.Cap()
	c.snap.RateResetsAt = c.limiter.ResetsAt()
	c.mu.Unlock()
}

func (c *Controller) finish(out Outcome, err error) Outcome {
	c.publishCounters()
	c.mu.Lock()
	c.snap.Iteration = c.iteration
	c.snap.LastOutcome = out
	c.snap.LastIterationAt = c.clock.Now()
	c.snap.LastError = ""
	if err != nil {
		c.snap.LastError = err.Error()
	}
	c.mu.Unlock()
	return out
}
