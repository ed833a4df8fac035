package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
)

// Connection manages the X11 connection and core X resources
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	xtestOnce sync.Once
	xtestErr  error

	keymapMu sync.Mutex
	keymap   *keyboardMap
}

// NewConnection connects to $DISPLAY.
func NewConnection() (*Connection, error) {
	return NewConnectionDisplay("")
}

// NewConnectionDisplay connects to the named display; an empty name means
// $DISPLAY.
func NewConnectionDisplay(display string) (*Connection, error) {
	xu, err := xgbutil.NewConnDisplay(display)
	if err != nil {
		return nil, err
	}

	// Initialize keybind module (required for global hotkeys)
	keybind.Initialize(xu)

	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// initXTest loads the XTEST extension used for synthetic input.
func (c *Connection) initXTest() error {
	c.xtestOnce.Do(func() {
		if err := xtest.Init(c.XUtil.Conn()); err != nil {
			c.xtestErr = fmt.Errorf("XTEST extension unavailable: %w", err)
		}
	})
	return c.xtestErr
}

// EventLoop starts the main X11 event loop (blocking)
func (c *Connection) EventLoop() {
	xevent.Main(c.XUtil)
}

// Quit stops a running EventLoop.
func (c *Connection) Quit() {
	xevent.Quit(c.XUtil)
}

// Close cleanly disconnects from the X11 server
func (c *Connection) Close() {
	c.XUtil.Conn().Close()
}
