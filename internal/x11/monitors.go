package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
)

// Monitor represents a physical display
type Monitor struct {
	ID     int
	Name   string
	X      int
	Y      int
	Width  int
	Height int
}

// Contains reports whether the root coordinate (x, y) lies on the monitor.
func (m Monitor) Contains(x, y int) bool {
	return x >= m.X && x < m.X+m.Width && y >= m.Y && y < m.Y+m.Height
}

// GetMonitors retrieves all active monitors using XRandR
func (c *Connection) GetMonitors() ([]Monitor, error) {
	if err := randr.Init(c.XUtil.Conn()); err != nil {
		return nil, fmt.Errorf("randr init failed: %w", err)
	}

	resources, err := randr.GetScreenResources(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var monitors []Monitor

	// Query each CRTC for active monitors
	for i, crtc := range resources.Crtcs {
		crtcInfo, err := randr.GetCrtcInfo(c.XUtil.Conn(), crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}

		// Skip disabled CRTCs
		if crtcInfo.Width == 0 || crtcInfo.Height == 0 || len(crtcInfo.Outputs) == 0 {
			continue
		}

		outputName := fmt.Sprintf("Monitor%d", i)
		outputInfo, err := randr.GetOutputInfo(c.XUtil.Conn(), crtcInfo.Outputs[0], resources.ConfigTimestamp).Reply()
		if err == nil {
			outputName = string(outputInfo.Name)
		}

		monitors = append(monitors, Monitor{
			ID:     i,
			Name:   outputName,
			X:      int(crtcInfo.X),
			Y:      int(crtcInfo.Y),
			Width:  int(crtcInfo.Width),
			Height: int(crtcInfo.Height),
		})
	}

	// Plain Xvfb and some nested servers expose no CRTCs; fall back to the
	// root screen so callers always see at least one display.
	if len(monitors) == 0 {
		screen := c.XUtil.Screen()
		monitors = append(monitors, Monitor{
			ID:     0,
			Name:   "screen",
			Width:  int(screen.WidthInPixels),
			Height: int(screen.HeightInPixels),
		})
	}

	return monitors, nil
}

// MonitorForRect returns the monitor holding the centre of the rectangle, or
// nil when it lies off every monitor.
func MonitorForRect(monitors []Monitor, x, y, width, height int) *Monitor {
	cx := x + width/2
	cy := y + height/2
	for i := range monitors {
		if monitors[i].Contains(cx, cy) {
			return &monitors[i]
		}
	}
	return nil
}
