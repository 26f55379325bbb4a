package jpegcoef

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

// testPattern returns a deterministic image with enough detail to produce
// nonzero AC coefficients everywhere
func testPattern(width, height int, seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := (x*7 + y*13 + seed*31) ^ (x * y)
			img.Set(x, y, color.RGBA{
				R: uint8(v),
				G: uint8(x*3 + seed),
				B: uint8(y*5 ^ v>>2),
				A: 255,
			})
		}
	}
	return img
}

// makeJPEG encodes a test pattern with image/jpeg. Gray images have one
// component; color images are 4:2:0 YCbCr.
func makeJPEG(t testing.TB, width, height int, gray bool, seed int) []byte {
	t.Helper()
	var img image.Image = testPattern(width, height, seed)
	if gray {
		g := image.NewGray(img.Bounds())
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.Set(x, y, img.At(x, y))
			}
		}
		img = g
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

// decodeBytes decodes data with an unlimited private memory manager
func decodeBytes(t testing.TB, data []byte) *Image {
	t.Helper()
	im, err := Decode(BytesInput(data), nil)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	t.Cleanup(func() { im.Release() })
	return im
}

// compareCoefficients checks that two images hold the same coefficients in
// every block covering the image area
func compareCoefficients(t *testing.T, want, got *Image) {
	t.Helper()
	if len(want.Stores) != len(got.Stores) {
		t.Fatalf("Component count mismatch: want %d, got %d", len(want.Stores), len(got.Stores))
	}
	for ci, c := range want.Header.Components {
		for by := 0; by < c.BlocksHigh; by++ {
			wr, err := want.Stores[ci].AccessRows(by, 1, false)
			if err != nil {
				t.Fatalf("Failed to access rows: %v", err)
			}
			gr, err := got.Stores[ci].AccessRows(by, 1, false)
			if err != nil {
				t.Fatalf("Failed to access rows: %v", err)
			}
			for bx := 0; bx < c.BlocksWide; bx++ {
				if wr[0][bx] != gr[0][bx] {
					t.Fatalf("Component %d block (%d,%d) differs:\nwant %v\ngot  %v",
						ci, bx, by, wr[0][bx], gr[0][bx])
				}
			}
		}
	}
}

// comparePixels decodes both streams with image/jpeg and compares them
func comparePixels(t *testing.T, want, got []byte) {
	t.Helper()
	wi, err := jpeg.Decode(bytes.NewReader(want))
	if err != nil {
		t.Fatalf("Failed to decode reference with image/jpeg: %v", err)
	}
	gi, err := jpeg.Decode(bytes.NewReader(got))
	if err != nil {
		t.Fatalf("Failed to decode output with image/jpeg: %v", err)
	}
	if wi.Bounds() != gi.Bounds() {
		t.Fatalf("Bounds mismatch: want %v, got %v", wi.Bounds(), gi.Bounds())
	}
	b := wi.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if wi.At(x, y) != gi.At(x, y) {
				t.Fatalf("Pixel (%d,%d) differs: want %v, got %v", x, y, wi.At(x, y), gi.At(x, y))
			}
		}
	}
}
