// Package inject types replies into the target window with synthetic input.
//
// Delivery is blind: a nil error means the click and key events were issued,
// not that the message arrived.
package inject

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/platform"
)

// ErrWindowNotFound is returned when the target window is gone at send time.
// It matches platform.ErrWindowNotFound under errors.Is.
var ErrWindowNotFound = fmt.Errorf("reply target: %w", platform.ErrWindowNotFound)

// Driver is the slice of the platform backend the injector needs.
type Driver interface {
	FindWindow(titleSubstring string) (platform.Window, error)
	Click(x, y int) error
	TypeRune(r rune) error
	PressKey(k platform.Key) error
}

// Injector clicks into the chat, types the reply and submits it.
type Injector struct {
	driver Driver
	logger *zap.Logger
	sleep  func(time.Duration)

	mu    sync.Mutex
	title string
	opts  config.InjectionConfig
}

// New returns an injector targeting windows whose title contains title.
func New(driver Driver, title string, opts config.InjectionConfig, logger *zap.Logger) *Injector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Injector{
		driver: driver,
		logger: logger,
		sleep:  time.Sleep,
		title:  title,
		opts:   opts,
	}
}

// Configure swaps the target title and timing. It takes effect on the next
// Inject call.
func (in *Injector) Configure(title string, opts config.InjectionConfig) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.title = title
	in.opts = opts
}

// Inject delivers text. Newlines are sent as spaces so that only the final
// Return submits the message.
func (in *Injector) Inject(text string) error {
	in.mu.Lock()
	title, opts := in.title, in.opts
	in.mu.Unlock()

	text = flatten(text)
	if text == "" {
		return fmt.Errorf("reply text is empty")
	}

	win, err := in.driver.FindWindow(title)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWindowNotFound, err)
	}

	cx, cy := Resolve(win.Bounds, opts.ChatPoint)
	if err := in.driver.Click(cx, cy); err != nil {
		return fmt.Errorf("chat area click failed: %w", err)
	}
	in.sleep(opts.ClickSettle)
	in.logger.Debug("clicked chat area", zap.Int("x", cx), zap.Int("y", cy))

	ix, iy := Resolve(win.Bounds, opts.InputPoint)
	if err := in.driver.Click(ix, iy); err != nil {
		return fmt.Errorf("input box click failed: %w", err)
	}
	in.sleep(opts.ClickSettle)
	in.logger.Debug("clicked message input", zap.Int("x", ix), zap.Int("y", iy))

	for i, r := range []rune(text) {
		if i > 0 {
			in.sleep(opts.KeystrokeInterval)
		}
		if err := in.driver.TypeRune(r); err != nil {
			in.erase(i)
			return fmt.Errorf("typing failed at rune %d: %w", i, err)
		}
	}
	in.sleep(opts.SubmitSettle)

	if err := in.driver.PressKey(platform.KeyReturn); err != nil {
		return fmt.Errorf("submit failed: %w", err)
	}
	in.sleep(opts.ClickSettle)
	return nil
}

// erase backspaces over n typed runes so a failed send does not leave a
// partial reply in the input box. Best effort: a failure is only logged.
func (in *Injector) erase(n int) {
	for i := 0; i < n; i++ {
		if err := in.driver.PressKey(platform.KeyBackSpace); err != nil {
			in.logger.Warn("failed to clear partial reply", zap.Int("remaining", n-i), zap.Error(err))
			return
		}
	}
}

// Resolve maps a fractional point onto a window box and clamps the result
// inside it.
func Resolve(bounds platform.Rect, p config.Point) (int, int) {
	x := bounds.X + int(float64(bounds.Width)*p.X) + p.OffsetX
	y := bounds.Y + int(float64(bounds.Height)*p.Y) + p.OffsetY
	return clamp(x, bounds.X, bounds.X+bounds.Width-1), clamp(y, bounds.Y, bounds.Y+bounds.Height-1)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func flatten(s string) string {
	s = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.TrimSpace(s)
}
