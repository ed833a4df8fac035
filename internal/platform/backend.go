package platform

import (
	"errors"

	"github.com/1broseidon/replybot/internal/frame"
)

// ErrWindowNotFound is returned by FindWindow when no window matches.
var ErrWindowNotFound = errors.New("window not found")

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Display describes a physical display.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
}

// Window contains metadata and geometry for a top-level window.
type Window struct {
	ID     WindowID
	Title  string
	Bounds Rect
}

// Key names a non-character key.
type Key string

const (
	KeyReturn    Key = "Return"
	KeyBackSpace Key = "BackSpace"
)

// Backend abstracts the window-system operations the reply loop needs.
type Backend interface {
	// FindWindow returns the first window whose title contains the
	// substring, or an error wrapping ErrWindowNotFound.
	FindWindow(titleSubstring string) (Window, error)
	Focus(id WindowID) error
	// Capture grabs the given screen region.
	Capture(bounds Rect) (*frame.Frame, error)
	Click(x, y int) error
	TypeRune(r rune) error
	PressKey(k Key) error
	Displays() ([]Display, error)
}
