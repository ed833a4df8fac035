//go:build linux

package platform

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/1broseidon/replybot/internal/frame"
	"github.com/1broseidon/replybot/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
	now  func() time.Time
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, now: time.Now}
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection to display (empty
// means $DISPLAY).
func NewLinuxBackendFromDisplay(display string) (*LinuxBackend, error) {
	conn, err := x11.NewConnectionDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// StopEventLoop makes a running EventLoop return.
func (b *LinuxBackend) StopEventLoop() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// XUtil returns the underlying xgbutil connection for X11-specific operations.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the X11 root window ID.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

// FindWindow returns the first normal client window whose title contains
// titleSubstring.
func (b *LinuxBackend) FindWindow(titleSubstring string) (Window, error) {
	conn, err := b.connection()
	if err != nil {
		return Window{}, err
	}
	win, err := conn.FindWindowByTitle(titleSubstring)
	if err != nil {
		if errors.Is(err, x11.ErrNoWindow) {
			return Window{}, fmt.Errorf("%w: %v", ErrWindowNotFound, err)
		}
		return Window{}, err
	}
	return Window{
		ID:    WindowID(win.ID),
		Title: win.Title,
		Bounds: Rect{
			X:      win.X,
			Y:      win.Y,
			Width:  win.Width,
			Height: win.Height,
		},
	}, nil
}

// Focus activates and raises the window.
func (b *LinuxBackend) Focus(id WindowID) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	if err := conn.FocusWindow(xproto.Window(id)); err != nil {
		return fmt.Errorf("failed to focus window 0x%x: %w", uint32(id), err)
	}
	// The layout may have changed since the last cycle.
	return conn.RefreshKeyboardMapping()
}

// Capture grabs the screen region covered by bounds.
func (b *LinuxBackend) Capture(bounds Rect) (*frame.Frame, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}
	if bounds.Empty() {
		return nil, fmt.Errorf("capture bounds are empty")
	}
	img, err := conn.CaptureRegion(bounds.X, bounds.Y, bounds.Width, bounds.Height)
	if err != nil {
		return nil, err
	}
	r := img.Bounds()
	return &frame.Frame{
		Image:      img,
		Pix:        img.Pix,
		Width:      r.Dx(),
		Height:     r.Dy(),
		CapturedAt: b.now(),
	}, nil
}

// Click clicks the left button at root coordinates.
func (b *LinuxBackend) Click(x, y int) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.Click(x, y)
}

// TypeRune types one character into the focused window.
func (b *LinuxBackend) TypeRune(r rune) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.TypeRune(r)
}

// PressKey taps a named key.
func (b *LinuxBackend) PressKey(k Key) error {
	conn, err := b.connection()
	if err != nil {
		return err
	}
	return conn.PressKey(string(k))
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays() ([]Display, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m))
	}

	sort.Slice(displays, func(i, j int) bool {
		return displays[i].ID < displays[j].ID
	})

	return displays, nil
}

// DisplayForRect returns the display holding the centre of r. ok is false
// when r lies off every display.
func DisplayForRect(displays []Display, r Rect) (d Display, ok bool) {
	monitors := make([]x11.Monitor, len(displays))
	for i, d := range displays {
		monitors[i] = x11.Monitor{ID: d.ID, Name: d.Name, X: d.Bounds.X, Y: d.Bounds.Y, Width: d.Bounds.Width, Height: d.Bounds.Height}
	}
	m := x11.MonitorForRect(monitors, r.X, r.Y, r.Width, r.Height)
	if m == nil {
		return Display{}, false
	}
	return displayFromMonitor(*m), true
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func displayFromMonitor(m x11.Monitor) Display {
	return Display{
		ID:   m.ID,
		Name: m.Name,
		Bounds: Rect{
			X:      m.X,
			Y:      m.Y,
			Width:  m.Width,
			Height: m.Height,
		},
	}
}
