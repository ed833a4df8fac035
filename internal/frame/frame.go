// Package frame holds captured window images and the helpers that identify
// and archive them.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"time"
)

// Frame is one capture of the monitored window. It belongs to a single loop
// iteration and is never persisted except through Archive.
type Frame struct {
	// Image is the decoded view of Pix used for encoding.
	Image image.Image
	// Pix is the raw pixel buffer the fingerprint is computed over.
	Pix        []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

// New wraps an image. For the stdlib RGBA, NRGBA and Gray types the pixel
// slice is used as-is; other images are rendered to RGBA bytes.
func New(img image.Image, capturedAt time.Time) *Frame {
	b := img.Bounds()
	return &Frame{
		Image:      img,
		Pix:        pixOf(img),
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: capturedAt,
	}
}

func pixOf(img image.Image) []byte {
	switch im := img.(type) {
	case *image.RGBA:
		return im.Pix
	case *image.NRGBA:
		return im.Pix
	case *image.Gray:
		return im.Pix
	}
	// Fall back to an RGBA rendering.
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8), byte(a>>8))
		}
	}
	return out
}

// PNG encodes the frame.
func (f *Frame) PNG() ([]byte, error) {
	if f == nil || f.Image == nil {
		return nil, fmt.Errorf("frame has no image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, f.Image); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}
