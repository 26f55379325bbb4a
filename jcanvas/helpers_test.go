package jcanvas

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// makeJPEG encodes a deterministic pattern with image/jpeg at quality 90.
// Color images come out as 4:2:0 YCbCr, gray images with one component.
func makeJPEG(t testing.TB, width, height int, gray bool, seed int) []byte {
	t.Helper()
	var img image.Image
	if gray {
		g := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.SetGray(x, y, color.Gray{Y: uint8((x*5 + y*3 + seed*17) ^ (x * y >> 3))})
			}
		}
		img = g
	} else {
		rgba := image.NewRGBA(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				v := (x*7 + y*13 + seed*31) ^ (x * y)
				rgba.Set(x, y, color.RGBA{R: uint8(v), G: uint8(x*3 + seed*40), B: uint8(y*5 ^ v>>2), A: 255})
			}
		}
		img = rgba
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

// newCanvas returns a canvas that is closed when the test ends
func newCanvas(t *testing.T, opts Options) *Canvas {
	t.Helper()
	c, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create canvas: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func mustAdd(t *testing.T, c *Canvas, data []byte) int {
	t.Helper()
	id, err := c.AddImageBytes(data)
	if err != nil {
		t.Fatalf("Failed to add image: %v", err)
	}
	return id
}

func mustDraw(t *testing.T, c *Canvas, src, destX, destY, srcX, srcY, w, h int) {
	t.Helper()
	if err := c.Draw(src, destX, destY, srcX, srcY, w, h); err != nil {
		t.Fatalf("Draw(%d, %d, %d, %d, %d, %d, %d) failed: %v", src, destX, destY, srcX, srcY, w, h, err)
	}
}

func decode(t *testing.T, data []byte) *jpegcoef.Image {
	t.Helper()
	im, err := jpegcoef.Decode(jpegcoef.BytesInput(data), nil)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	t.Cleanup(func() { im.Release() })
	return im
}

func blockAt(t *testing.T, im *jpegcoef.Image, ci, bx, by int) jpegcoef.Block {
	t.Helper()
	rows, err := im.Stores[ci].AccessRows(by, 1, false)
	if err != nil {
		t.Fatalf("Failed to access row %d: %v", by, err)
	}
	return rows[0][bx]
}

// withDQTEntry returns a copy of data whose first quantization table has
// its last entry changed
func withDQTEntry(t *testing.T, data []byte) []byte {
	t.Helper()
	out := bytes.Clone(data)
	i := bytes.Index(out, []byte{0xFF, jpegcoef.MarkerDQT})
	if i < 0 {
		t.Fatalf("No DQT marker in test JPEG")
	}
	// marker, length, Pq/Tq, then 64 entries
	out[i+4+1+63]++
	return out
}

func withSOF(t *testing.T, data []byte, code byte) []byte {
	t.Helper()
	out := bytes.Clone(data)
	i := bytes.Index(out, []byte{0xFF, jpegcoef.MarkerSOF0})
	if i < 0 {
		t.Fatalf("No SOF0 marker in test JPEG")
	}
	out[i+1] = code
	return out
}
