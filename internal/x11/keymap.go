package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/keybind"
)

// keystroke is a keycode plus whether Shift must be held to produce the
// wanted keysym.
type keystroke struct {
	code  xproto.Keycode
	shift bool
}

// keyboardMap remembers the keycode borrowed for runes the layout lacks.
type keyboardMap struct {
	scratch xproto.Keycode
}

// keysymForRune maps a rune to its X keysym. Latin-1 keysyms equal their
// code points; everything else uses the Unicode keysym range.
func keysymForRune(r rune) xproto.Keysym {
	switch {
	case r == '\n' || r == '\r':
		return 0xff0d // Return
	case r == '\t':
		return 0xff09 // Tab
	case r >= 0x20 && r <= 0x7e, r >= 0xa0 && r <= 0xff:
		return xproto.Keysym(r)
	default:
		return xproto.Keysym(0x01000000 | uint32(r))
	}
}

// findKeystroke searches keysyms (a GetKeyboardMapping table starting at
// minCode with per entries per keycode) for sym, preferring the unshifted
// column.
func findKeystroke(keysyms []xproto.Keysym, per int, minCode xproto.Keycode, sym xproto.Keysym) (keystroke, bool) {
	if per <= 0 {
		return keystroke{}, false
	}
	for col := 0; col < 2 && col < per; col++ {
		for i := 0; i+col < len(keysyms); i += per {
			if keysyms[i+col] == sym {
				return keystroke{code: minCode + xproto.Keycode(i/per), shift: col == 1}, true
			}
		}
	}
	return keystroke{}, false
}

// findUnusedKeycode returns the highest keycode with no keysyms bound.
func findUnusedKeycode(keysyms []xproto.Keysym, per int, minCode xproto.Keycode) (xproto.Keycode, bool) {
	if per <= 0 {
		return 0, false
	}
	for start := len(keysyms) - per; start >= 0; start -= per {
		empty := true
		for _, s := range keysyms[start : start+per] {
			if s != 0 {
				empty = false
				break
			}
		}
		if empty {
			return minCode + xproto.Keycode(start/per), true
		}
	}
	return 0, false
}

// lookupRune resolves r against the current keyboard mapping.
func (c *Connection) lookupRune(r rune) (keystroke, bool) {
	keyMap := keybind.KeyMapGet(c.XUtil)
	if keyMap == nil {
		return keystroke{}, false
	}
	return findKeystroke(keyMap.Keysyms, int(keyMap.KeysymsPerKeycode), c.XUtil.Setup().MinKeycode, keysymForRune(r))
}

// bindScratch temporarily maps sym onto a spare keycode and returns it along
// with a function that restores the keycode to NoSymbol.
func (c *Connection) bindScratch(sym xproto.Keysym) (xproto.Keycode, func(), error) {
	keyMap := keybind.KeyMapGet(c.XUtil)
	if keyMap == nil {
		return 0, nil, fmt.Errorf("keyboard mapping not loaded")
	}
	per := int(keyMap.KeysymsPerKeycode)

	c.keymapMu.Lock()
	if c.keymap == nil {
		code, ok := findUnusedKeycode(keyMap.Keysyms, per, c.XUtil.Setup().MinKeycode)
		if !ok {
			c.keymapMu.Unlock()
			return 0, nil, fmt.Errorf("no spare keycode to map keysym %#x", uint32(sym))
		}
		c.keymap = &keyboardMap{scratch: code}
	}
	code := c.keymap.scratch
	c.keymapMu.Unlock()

	syms := make([]xproto.Keysym, per)
	syms[0] = sym
	if per > 1 {
		syms[1] = sym
	}
	conn := c.XUtil.Conn()
	if err := xproto.ChangeKeyboardMappingChecked(conn, 1, code, byte(per), syms).Check(); err != nil {
		return 0, nil, fmt.Errorf("failed to remap keycode %d: %w", code, err)
	}
	restore := func() {
		xproto.ChangeKeyboardMapping(conn, 1, code, byte(per), make([]xproto.Keysym, per))
	}
	return code, restore, nil
}

// RefreshKeyboardMapping reloads the keyboard mapping from the server. A
// connection without a running event loop never sees MappingNotify, so
// callers refresh before each burst of typing to pick up layout changes.
func (c *Connection) RefreshKeyboardMapping() error {
	setup := c.XUtil.Setup()
	reply, err := xproto.GetKeyboardMapping(c.XUtil.Conn(), setup.MinKeycode,
		byte(setup.MaxKeycode-setup.MinKeycode+1)).Reply()
	if err != nil {
		return fmt.Errorf("failed to get keyboard mapping: %w", err)
	}
	keybind.KeyMapSet(c.XUtil, reply)
	return nil
}
