package frame

import (
	"fmt"
	"os"
	"path/filepath"
)

// Archive writes frames to a directory for later inspection. Nothing reads
// them back.
type Archive struct {
	Dir string
}

// Save writes f as chat_YYYYmmdd_HHMMSS.png and returns the path. Frames
// captured within the same second overwrite each other.
func (a *Archive) Save(f *Frame) (string, error) {
	if err := os.MkdirAll(a.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create debug dir: %w", err)
	}
	data, err := f.PNG()
	if err != nil {
		return "", err
	}
	name := "chat_" + f.CapturedAt.Format("20060102_150405") + ".png"
	path := filepath.Join(a.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
