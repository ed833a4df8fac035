package x11

import (
	"fmt"
	"time"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgb/xtest"
	"github.com/BurntSushi/xgbutil/keybind"
)

const leftButton = 1

// Remapping a keycode makes every client re-read the keyboard mapping; give
// the focused client a moment before the key event arrives.
const remapSettle = 20 * time.Millisecond

func (c *Connection) fakeInput(eventType byte, detail byte, x, y int16) error {
	return xtest.FakeInputChecked(c.XUtil.Conn(), eventType, detail, 0, c.Root, x, y, 0).Check()
}

// Click moves the pointer to root coordinates (x, y) and clicks the left
// button there.
func (c *Connection) Click(x, y int) error {
	if err := c.initXTest(); err != nil {
		return err
	}
	if err := c.fakeInput(xproto.MotionNotify, 0, int16(x), int16(y)); err != nil {
		return fmt.Errorf("pointer motion failed: %w", err)
	}
	if err := c.fakeInput(xproto.ButtonPress, leftButton, 0, 0); err != nil {
		return fmt.Errorf("button press failed: %w", err)
	}
	if err := c.fakeInput(xproto.ButtonRelease, leftButton, 0, 0); err != nil {
		return fmt.Errorf("button release failed: %w", err)
	}
	c.XUtil.Sync()
	return nil
}

// TypeRune types a single character into the focused window. Characters the
// keyboard layout cannot produce are typed through a temporarily remapped
// spare keycode.
func (c *Connection) TypeRune(r rune) error {
	if err := c.initXTest(); err != nil {
		return err
	}
	if ks, ok := c.lookupRune(r); ok {
		return c.tap(ks)
	}

	code, restore, err := c.bindScratch(keysymForRune(r))
	if err != nil {
		return fmt.Errorf("cannot type %q: %w", r, err)
	}
	defer restore()
	time.Sleep(remapSettle)
	return c.tap(keystroke{code: code})
}

// PressKey taps a named key such as "Return" or "BackSpace".
func (c *Connection) PressKey(name string) error {
	if err := c.initXTest(); err != nil {
		return err
	}
	codes := keybind.StrToKeycodes(c.XUtil, name)
	if len(codes) == 0 {
		return fmt.Errorf("unknown key %q", name)
	}
	return c.tap(keystroke{code: codes[0]})
}

func (c *Connection) tap(ks keystroke) error {
	var shift xproto.Keycode
	if ks.shift {
		codes := keybind.StrToKeycodes(c.XUtil, "Shift_L")
		if len(codes) == 0 {
			return fmt.Errorf("no keycode for Shift_L")
		}
		shift = codes[0]
		if err := c.fakeInput(xproto.KeyPress, byte(shift), 0, 0); err != nil {
			return fmt.Errorf("shift press failed: %w", err)
		}
	}

	pressErr := c.fakeInput(xproto.KeyPress, byte(ks.code), 0, 0)
	releaseErr := c.fakeInput(xproto.KeyRelease, byte(ks.code), 0, 0)

	if ks.shift {
		// Always release Shift so a failure cannot leave it stuck down.
		if err := c.fakeInput(xproto.KeyRelease, byte(shift), 0, 0); err != nil && pressErr == nil && releaseErr == nil {
			return fmt.Errorf("shift release failed: %w", err)
		}
	}
	c.XUtil.Sync()

	if pressErr != nil {
		return fmt.Errorf("key press failed: %w", pressErr)
	}
	if releaseErr != nil {
		return fmt.Errorf("key release failed: %w", releaseErr)
	}
	return nil
}
