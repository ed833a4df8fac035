package x11

import (
	"fmt"
	"image"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
)

// CaptureRegion grabs a rectangle of the screen (root coordinates) as it is
// currently composited. The rectangle is clipped to the root window; an
// empty intersection is an error.
func (c *Connection) CaptureRegion(x, y, width, height int) (*xgraphics.Image, error) {
	screen := c.XUtil.Screen()
	rootRect := image.Rect(0, 0, int(screen.WidthInPixels), int(screen.HeightInPixels))
	r := image.Rect(x, y, x+width, y+height).Intersect(rootRect)
	if r.Empty() {
		return nil, fmt.Errorf("capture region %dx%d+%d+%d is off screen", width, height, x, y)
	}

	reply, err := xproto.GetImage(c.XUtil.Conn(), xproto.ImageFormatZPixmap,
		xproto.Drawable(c.Root),
		int16(r.Min.X), int16(r.Min.Y), uint16(r.Dx()), uint16(r.Dy()),
		(1<<32)-1).Reply()
	if err != nil {
		return nil, fmt.Errorf("GetImage failed: %w", err)
	}

	if bpp := c.bitsPerPixel(reply.Depth); bpp != 32 {
		return nil, fmt.Errorf("unsupported pixmap format: depth %d, %d bits per pixel", reply.Depth, bpp)
	}

	ximg := xgraphics.New(c.XUtil, image.Rect(0, 0, r.Dx(), r.Dy()))
	msbFirst := c.XUtil.Setup().ImageByteOrder == xproto.ImageOrderMSBFirst
	if err := convertZPixmap32(reply.Data, r.Dx(), r.Dy(), msbFirst, ximg.Pix); err != nil {
		return nil, err
	}
	return ximg, nil
}

func (c *Connection) bitsPerPixel(depth byte) int {
	for _, f := range c.XUtil.Setup().PixmapFormats {
		if f.Depth == depth {
			return int(f.BitsPerPixel)
		}
	}
	return 0
}

// convertZPixmap32 copies 32bpp ZPixmap data into a BGRA buffer. The server's
// padding byte is not alpha, so alpha is forced opaque.
func convertZPixmap32(data []byte, width, height int, msbFirst bool, dst []byte) error {
	n := width * height * 4
	if len(data) < n {
		return fmt.Errorf("short image data: got %d bytes, want %d", len(data), n)
	}
	if len(dst) < n {
		return fmt.Errorf("destination too small: got %d bytes, want %d", len(dst), n)
	}
	for i := 0; i < n; i += 4 {
		if msbFirst {
			// xRGB
			dst[i] = data[i+3]
			dst[i+1] = data[i+2]
			dst[i+2] = data[i+1]
		} else {
			// BGRx
			dst[i] = data[i]
			dst[i+1] = data[i+1]
			dst[i+2] = data[i+2]
		}
		dst[i+3] = 0xff
	}
	return nil
}
