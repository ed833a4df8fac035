package hotkeys

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"go.uber.org/zap"
)

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Pauser is the part of the reply loop a hotkey can drive.
type Pauser interface {
	TogglePause() bool
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu     *xgbutil.XUtil
	root   xproto.Window
	logger *zap.Logger
}

var ignoreModsOnce sync.Once

// NewHandler creates a hotkey handler on the backend's X connection.
func NewHandler(backend any, logger *zap.Logger) (*Handler, error) {
	accessor, ok := backend.(x11Accessor)
	if !ok || accessor.XUtil() == nil {
		return nil, fmt.Errorf("hotkeys need an X11 backend")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	xu := accessor.XUtil()

	ignoreModsOnce.Do(func() {
		configureIgnoreMods(xu)
	})

	return &Handler{
		xu:     xu,
		root:   accessor.RootWindow(),
		logger: logger,
	}, nil
}

// RegisterPauseToggle binds keySequence (for example "Mod4-Shift-p") to
// pausing and resuming replies.
func (h *Handler) RegisterPauseToggle(keySequence string, p Pauser) error {
	if err := h.RegisterFunc(keySequence, func() {
		paused := p.TogglePause()
		h.logger.Info("pause hotkey", zap.String("key", keySequence), zap.Bool("paused", paused))
	}); err != nil {
		return fmt.Errorf("failed to register pause hotkey %q: %w", keySequence, err)
	}
	return nil
}

// RegisterFunc registers an arbitrary hotkey callback.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}
