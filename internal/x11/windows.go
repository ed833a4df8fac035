package x11

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
)

// ErrNoWindow is returned when no client window matches a title search.
var ErrNoWindow = errors.New("no matching window")

// Window is a top-level client window with its geometry in root coordinates.
type Window struct {
	ID     xproto.Window
	Title  string
	X      int
	Y      int
	Width  int
	Height int
}

// FindWindowByTitle searches the EWMH client list for a normal window whose
// title contains the given substring (case-sensitive). Returns the first
// match in stacking order of the client list.
func (c *Connection) FindWindowByTitle(substring string) (Window, error) {
	if substring == "" {
		return Window{}, fmt.Errorf("title substring is empty")
	}
	clients, err := ewmh.ClientListGet(c.XUtil)
	if err != nil {
		return Window{}, fmt.Errorf("failed to get client list: %w", err)
	}
	for _, win := range clients {
		title := c.WindowTitle(win)
		if !strings.Contains(title, substring) {
			continue
		}
		if !c.IsNormalWindow(win) {
			continue
		}
		x, y, w, h, err := c.WindowGeometry(win)
		if err != nil {
			// Window vanished between listing and querying.
			continue
		}
		return Window{ID: win, Title: title, X: x, Y: y, Width: w, Height: h}, nil
	}
	return Window{}, fmt.Errorf("%w: title containing %q", ErrNoWindow, substring)
}

// WindowTitle returns _NET_WM_NAME, falling back to WM_NAME.
func (c *Connection) WindowTitle(windowID xproto.Window) string {
	title, err := ewmh.WmNameGet(c.XUtil, windowID)
	if err == nil {
		if title = strings.TrimSpace(title); title != "" {
			return title
		}
	}
	title, err = icccm.WmNameGet(c.XUtil, windowID)
	if err == nil {
		return strings.TrimSpace(title)
	}
	return ""
}

// WindowGeometry returns the window's client area in root coordinates.
func (c *Connection) WindowGeometry(windowID xproto.Window) (x, y, width, height int, err error) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to get geometry: %w", err)
	}
	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to translate coordinates: %w", err)
	}
	return int(translate.DstX), int(translate.DstY), int(geom.Width), int(geom.Height), nil
}

// IsNormalWindow checks if a window is a normal application window
func (c *Connection) IsNormalWindow(windowID xproto.Window) bool {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil {
		// If we can't determine type, assume it's normal
		return true
	}

	for _, t := range types {
		switch t {
		case "_NET_WM_WINDOW_TYPE_NORMAL", "_NET_WM_WINDOW_TYPE_DIALOG":
			return true
		case "_NET_WM_WINDOW_TYPE_DESKTOP",
			"_NET_WM_WINDOW_TYPE_DOCK",
			"_NET_WM_WINDOW_TYPE_SPLASH",
			"_NET_WM_WINDOW_TYPE_NOTIFICATION":
			return false
		}
	}

	// If no specific type is set, assume it's normal
	return len(types) == 0
}

// IsHidden reports whether the window is minimized.
func (c *Connection) IsHidden(windowID xproto.Window) bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}
