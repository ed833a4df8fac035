package inject

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/platform"
)

type fakeDriver struct {
	window  platform.Window
	findErr error
	typeErr error
	// failAt is the number of runes typed before typeErr is returned.
	failAt int
	keyErr error

	events []string
	typed  int
}

func (d *fakeDriver) FindWindow(title string) (platform.Window, error) {
	d.events = append(d.events, "find:"+title)
	if d.findErr != nil {
		return platform.Window{}, d.findErr
	}
	return d.window, nil
}

func (d *fakeDriver) Click(x, y int) error {
	d.events = append(d.events, fmt.Sprintf("click:%d,%d", x, y))
	return nil
}

func (d *fakeDriver) TypeRune(r rune) error {
	if d.typeErr != nil && d.typed >= d.failAt {
		return d.typeErr
	}
	d.typed++
	d.events = append(d.events, "type:"+string(r))
	return nil
}

func (d *fakeDriver) PressKey(k platform.Key) error {
	if d.keyErr != nil {
		return d.keyErr
	}
	d.events = append(d.events, "key:"+string(k))
	return nil
}

func newTestInjector(d *fakeDriver) (*Injector, *[]time.Duration) {
	var slept []time.Duration
	in := New(d, "WhatsApp", config.DefaultConfig().Injection, nil)
	in.sleep = func(d time.Duration) { slept = append(slept, d) }
	return in, &slept
}

func TestInject_Sequence(t *testing.T) {
	d := &fakeDriver{window: platform.Window{
		ID:     7,
		Title:  "WhatsApp",
		Bounds: platform.Rect{X: 100, Y: 50, Width: 1000, Height: 800},
	}}
	in, slept := newTestInjector(d)

	require.NoError(t, in.Inject("hi ☕"))
	assert.Equal(t, []string{
		"find:WhatsApp",
		"click:750,450",
		"click:750,770",
		"type:h",
		"type:i",
		"type: ",
		"type:☕",
		"key:Return",
	}, d.events)

	// Two click settles, three keystroke gaps, submit settle, final settle.
	assert.Equal(t, []time.Duration{
		300 * time.Millisecond,
		300 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
		50 * time.Millisecond,
		500 * time.Millisecond,
		300 * time.Millisecond,
	}, *slept)
}

func TestInject_WindowMissing(t *testing.T) {
	d := &fakeDriver{findErr: platform.ErrWindowNotFound}
	in, _ := newTestInjector(d)

	err := in.Inject("hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWindowNotFound))
	assert.True(t, errors.Is(err, platform.ErrWindowNotFound))
	assert.Equal(t, []string{"find:WhatsApp"}, d.events, "no input may be sent without a window")
}

func TestInject_TypingFailure(t *testing.T) {
	d := &fakeDriver{
		window:  platform.Window{Bounds: platform.Rect{Width: 100, Height: 100}},
		typeErr: errors.New("xtest gone"),
	}
	in, _ := newTestInjector(d)

	err := in.Inject("hello")
	require.Error(t, err)
	assert.NotContains(t, d.events, "key:Return")
	assert.NotContains(t, d.events, "key:BackSpace", "nothing typed, nothing to clear")
}

func TestInject_TypingFailureClearsPartialText(t *testing.T) {
	typeErr := errors.New("xtest gone")
	d := &fakeDriver{
		window:  platform.Window{Bounds: platform.Rect{Width: 100, Height: 100}},
		typeErr: typeErr,
		failAt:  3,
	}
	in, _ := newTestInjector(d)

	err := in.Inject("hello")
	require.ErrorIs(t, err, typeErr)
	assert.Equal(t, []string{
		"type:h", "type:e", "type:l",
		"key:BackSpace", "key:BackSpace", "key:BackSpace",
	}, d.events[3:])
}

func TestInject_ClearFailureKeepsTypingError(t *testing.T) {
	typeErr := errors.New("xtest gone")
	d := &fakeDriver{
		window:  platform.Window{Bounds: platform.Rect{Width: 100, Height: 100}},
		typeErr: typeErr,
		failAt:  2,
		keyErr:  errors.New("keyboard grabbed"),
	}
	in, _ := newTestInjector(d)

	err := in.Inject("hello")
	require.ErrorIs(t, err, typeErr)
	assert.Contains(t, err.Error(), "rune 2")
}

func TestInject_NewlinesFlattened(t *testing.T) {
	d := &fakeDriver{window: platform.Window{Bounds: platform.Rect{Width: 100, Height: 100}}}
	in, _ := newTestInjector(d)

	require.NoError(t, in.Inject("a\nb\r\n"))
	var typed string
	for _, ev := range d.events {
		if len(ev) > 5 && ev[:5] == "type:" {
			typed += ev[5:]
		}
	}
	assert.Equal(t, "a b", typed)
}

func TestInject_EmptyText(t *testing.T) {
	d := &fakeDriver{}
	in, _ := newTestInjector(d)
	assert.Error(t, in.Inject(" \n "))
	assert.Empty(t, d.events)
}

func TestConfigure(t *testing.T) {
	d := &fakeDriver{window: platform.Window{Bounds: platform.Rect{Width: 100, Height: 100}}}
	in, _ := newTestInjector(d)
	in.Configure("Signal", config.DefaultConfig().Injection)

	require.NoError(t, in.Inject("x"))
	assert.Equal(t, "find:Signal", d.events[0])
}

func TestResolve(t *testing.T) {
	bounds := platform.Rect{X: 10, Y: 20, Width: 200, Height: 100}
	tests := []struct {
		name  string
		p     config.Point
		wantX int
		wantY int
	}{
		{"centre", config.Point{X: 0.5, Y: 0.5}, 110, 70},
		{"bottom offset", config.Point{X: 0.65, Y: 1.0, OffsetY: -80}, 140, 40},
		{"clamped below", config.Point{X: 0, Y: 0, OffsetX: -50, OffsetY: -50}, 10, 20},
		{"clamped above", config.Point{X: 1, Y: 1}, 209, 119},
		{"tiny window offset", config.Point{X: 0.65, Y: 1.0, OffsetY: -500}, 140, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Resolve(bounds, tt.p)
			assert.Equal(t, tt.wantX, x)
			assert.Equal(t, tt.wantY, y)
		})
	}
}
