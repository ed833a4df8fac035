package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// sourceIndication tells the WM the request comes from a pager/direct action
// rather than an application, so focus-stealing prevention does not apply.
const sourceIndication = 2

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
func (c *Connection) GetCurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// GetWindowDesktop returns the desktop number a window is on.
// Returns -1 for "sticky" windows (visible on all desktops).
func (c *Connection) GetWindowDesktop(windowID xproto.Window) (int, error) {
	desktop, err := ewmh.WmDesktopGet(c.XUtil, windowID)
	if err != nil {
		return 0, fmt.Errorf("failed to get window desktop: %w", err)
	}
	// 0xFFFFFFFF means the window is on all desktops (sticky)
	if desktop == 0xFFFFFFFF {
		return -1, nil
	}
	return int(desktop), nil
}

// SetCurrentDesktop switches to the given virtual desktop.
func (c *Connection) SetCurrentDesktop(desktop int) error {
	return c.sendRootMessage("_NET_CURRENT_DESKTOP", c.Root, []uint32{uint32(desktop), 0, 0, 0, 0})
}

// FocusWindow activates and raises a window using _NET_ACTIVE_WINDOW. A
// window on another virtual desktop is brought into view first; minimized
// windows are restored by the WM as part of activation.
func (c *Connection) FocusWindow(windowID xproto.Window) error {
	if want, err := c.GetWindowDesktop(windowID); err == nil && want >= 0 {
		if cur, err := c.GetCurrentDesktop(); err == nil && cur != want {
			if err := c.SetCurrentDesktop(want); err != nil {
				return err
			}
		}
	}
	return c.sendRootMessage("_NET_ACTIVE_WINDOW", windowID, []uint32{sourceIndication, 0, 0, 0, 0})
}

// sendRootMessage sends an EWMH client message to the root window. We build
// the message manually because the xgbutil ewmh request helpers panic on
// this library version (uint vs int type assertion).
func (c *Connection) sendRootMessage(atomName string, windowID xproto.Window, data []uint32) error {
	atomReply, err := xproto.InternAtom(c.XUtil.Conn(), false,
		uint16(len(atomName)), atomName).Reply()
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", atomName, err)
	}

	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: windowID,
		Type:   atomReply.Atom,
		Data:   xproto.ClientMessageDataUnionData32New(data),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}
