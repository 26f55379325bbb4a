package jtools

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

type pattern int

const (
	patternColor pattern = iota
	patternGray
	patternGrayAsColor
)

func makeImage(width, height int, p pattern) image.Image {
	if p == patternGray {
		g := image.NewGray(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g.SetGray(x, y, color.Gray{Y: uint8(x*5 + y*3 ^ x*y>>2)})
			}
		}
		return g
	}
	rgba := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x*7 + y*13 ^ x*y)
			if p == patternGrayAsColor {
				rgba.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
			} else {
				rgba.Set(x, y, color.RGBA{R: v, G: uint8(x * 3), B: uint8(y*5) ^ v>>2, A: 255})
			}
		}
	}
	return rgba
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("Failed to encode test JPEG: %v", err)
	}
	return buf.Bytes()
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

// withSegment inserts a marker segment right after SOI
func withSegment(data []byte, code byte, payload []byte) []byte {
	seg := []byte{0xFF, code}
	seg = binary.BigEndian.AppendUint16(seg, uint16(len(payload)+2))
	seg = append(seg, payload...)
	out := append([]byte{}, data[:2]...)
	out = append(out, seg...)
	return append(out, data[2:]...)
}

// exifOrientation builds an APP1 payload holding a single orientation tag
func exifOrientation(o uint16) []byte {
	p := []byte("Exif\x00\x00")
	p = append(p, 'M', 'M', 0, 42, 0, 0, 0, 8)
	p = append(p, 0, 1)
	p = append(p, 0x01, 0x12, 0, 3, 0, 0, 0, 1)
	p = binary.BigEndian.AppendUint16(p, o)
	p = append(p, 0, 0)
	return append(p, 0, 0, 0, 0)
}

func decodeFile(t *testing.T, path string) *jpegcoef.Image {
	t.Helper()
	im, err := jpegcoef.Decode(jpegcoef.PathInput(path), nil)
	if err != nil {
		t.Fatalf("Failed to decode %s: %v", path, err)
	}
	t.Cleanup(func() { im.Release() })
	return im
}

func componentBlocks(t *testing.T, im *jpegcoef.Image, ci int) []jpegcoef.Block {
	t.Helper()
	c := im.Header.Components[ci]
	blocks, err := collectBlocks(im.Stores[ci], c.BlocksWide, c.BlocksHigh)
	if err != nil {
		t.Fatalf("Failed to read component %d: %v", ci, err)
	}
	return blocks
}

func TestIsGrayscale(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
		want GrayscaleStatus
	}{
		{"one component", encodeJPEG(t, makeImage(40, 30, patternGray)), GrayscaleYes},
		{"gray content in color", encodeJPEG(t, makeImage(40, 30, patternGrayAsColor)), GrayscaleYes},
		{"color", encodeJPEG(t, makeImage(40, 30, patternColor)), GrayscaleNo},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := IsGrayscale(writeFile(t, "in.jpg", tc.data))
			if err != nil {
				t.Fatalf("Failed to check: %v", err)
			}
			if got != tc.want {
				t.Errorf("IsGrayscale = %v, want %v", got, tc.want)
			}
		})
	}

	got, err := IsGrayscale(filepath.Join(t.TempDir(), "missing.jpg"))
	if got != GrayscaleError || err == nil {
		t.Errorf("Missing file: got %v, %v", got, err)
	}
	got, err = IsGrayscale(writeFile(t, "junk.jpg", []byte("junk")))
	if got != GrayscaleError || err == nil {
		t.Errorf("Junk file: got %v, %v", got, err)
	}
}

func TestInfo(t *testing.T) {
	data := encodeJPEG(t, makeImage(37, 29, patternColor))
	in := jpegcoef.BytesInput(withSegment(data, jpegcoef.MarkerAPP1, exifOrientation(6)))

	v1, err := Info(in, SchemaV1)
	if err != nil {
		t.Fatalf("Failed to get info: %v", err)
	}
	if v1.Schema != SchemaV1 || v1.Width != 37 || v1.Height != 29 || v1.Components != 0 || v1.Sampling != nil || v1.Orientation != 0 {
		t.Errorf("SchemaV1 info: %+v", v1)
	}

	v2, err := Info(in, SchemaV2)
	if err != nil {
		t.Fatalf("Failed to get info: %v", err)
	}
	if v2.Width != 37 || v2.Height != 29 || v2.Components != 3 || v2.ColorSpace != "YCbCr" || v2.Progressive {
		t.Errorf("SchemaV2 info: %+v", v2)
	}
	if !slices.Equal(v2.Sampling, []Sampling{{2, 2}, {1, 1}, {1, 1}}) {
		t.Errorf("Sampling: %v", v2.Sampling)
	}
	if v2.Orientation != 6 {
		t.Errorf("Orientation = %d, want 6", v2.Orientation)
	}

	plain, err := Info(jpegcoef.BytesInput(data), SchemaV2)
	if err != nil {
		t.Fatalf("Failed to get info: %v", err)
	}
	if plain.Orientation != 1 {
		t.Errorf("Orientation without EXIF = %d, want 1", plain.Orientation)
	}

	if _, err := Info(in, SchemaVersion(3)); err == nil {
		t.Errorf("Expected error for unknown schema version")
	}
}

func TestResave(t *testing.T) {
	src := writeFile(t, "in.jpg", encodeJPEG(t, makeImage(75, 53, patternColor)))
	orig := decodeFile(t, src)

	testCases := []struct {
		name string
		opts ResaveOptions
	}{
		{"plain", ResaveOptions{}},
		{"optimized", ResaveOptions{Optimize: true}},
		{"progressive", ResaveOptions{Progressive: true}},
		{"grayscale", ResaveOptions{Grayscale: true, Optimize: true}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "out.jpg")
			if err := Resave(src, out, tc.opts); err != nil {
				t.Fatalf("Failed to resave: %v", err)
			}
			if _, err := os.Stat(out + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("Temporary file left behind")
			}

			got := decodeFile(t, out)
			if got.Header.Progressive() != tc.opts.Progressive {
				t.Errorf("Progressive = %v", got.Header.Progressive())
			}
			n := len(orig.Header.Components)
			if tc.opts.Grayscale {
				n = 1
				if got.Header.ColorSpace != jpegcoef.ColorGray {
					t.Errorf("Color space %v, want grayscale", got.Header.ColorSpace)
				}
			}
			if len(got.Header.Components) != n {
				t.Fatalf("%d components, want %d", len(got.Header.Components), n)
			}
			for ci := 0; ci < n; ci++ {
				if !slices.Equal(componentBlocks(t, orig, ci), componentBlocks(t, got, ci)) {
					t.Errorf("Component %d coefficients changed", ci)
				}
			}
			if _, err := jpeg.Decode(bytes.NewReader(mustRead(t, out))); err != nil {
				t.Errorf("Output rejected by image/jpeg: %v", err)
			}
		})
	}
}

func TestResaveFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.jpg")
	if err := Resave(writeFile(t, "junk.jpg", []byte("junk")), out, ResaveOptions{}); err == nil {
		t.Fatalf("Expected error for junk input")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Expected empty output directory, found %d entries", len(entries))
	}
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return data
}

func TestSortBlocks(t *testing.T) {
	src := writeFile(t, "in.jpg", encodeJPEG(t, makeImage(64, 40, patternColor)))
	out := filepath.Join(t.TempDir(), "sorted.jpg")
	f, err := os.Create(out)
	if err != nil {
		t.Fatalf("Failed to create output: %v", err)
	}
	if err := SortBlocks(jpegcoef.PathInput(src), f); err != nil {
		t.Fatalf("Failed to sort: %v", err)
	}
	f.Close()

	orig := decodeFile(t, src)
	got := decodeFile(t, out)
	cmp := func(a, b jpegcoef.Block) int { return a.Compare(&b) }
	for ci := range orig.Header.Components {
		want := componentBlocks(t, orig, ci)
		slices.SortFunc(want, cmp)
		blocks := componentBlocks(t, got, ci)
		if !slices.IsSortedFunc(blocks, cmp) {
			t.Errorf("Component %d is not sorted", ci)
		}
		if !slices.Equal(want, blocks) {
			t.Errorf("Component %d blocks are not a permutation of the input", ci)
		}
	}
}

func TestRenderReference(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		src.Set(x, 0, color.RGBA{R: uint8(x * 50), A: 255})
		src.Set(x, 1, color.RGBA{G: uint8(x * 50), A: 255})
	}

	ref := RenderReference(src, 6, 2, []DrawOp{{DestX: 4, DestY: 0, SrcX: 0, SrcY: 0, Width: 2, Height: 2}, {DestX: 0, DestY: 0, SrcX: 2, SrcY: 0, Width: 2, Height: 1}})
	want := []color.RGBA{
		{R: 100, A: 255}, {R: 150, A: 255}, {R: 100, A: 255}, {R: 150, A: 255}, {R: 0, A: 255}, {R: 50, A: 255},
	}
	for x, c := range want {
		if got := ref.RGBAAt(x, 0); got != c {
			t.Errorf("Pixel (%d,0) = %v, want %v", x, got, c)
		}
	}
	if got := ref.RGBAAt(5, 1); got != (color.RGBA{G: 50, A: 255}) {
		t.Errorf("Pixel (5,1) = %v", got)
	}

	if n := CountDifferences(ref, ref, 0); n != 0 {
		t.Errorf("Image differs from itself in %d pixels", n)
	}
	if n := CountDifferences(ref, src, 0); n != 2 {
		t.Errorf("CountDifferences = %d, want 2", n)
	}
}

func TestCompareCoefficients(t *testing.T) {
	a := decodeFile(t, writeFile(t, "a.jpg", encodeJPEG(t, makeImage(40, 24, patternColor))))
	b := decodeFile(t, writeFile(t, "b.jpg", encodeJPEG(t, makeImage(40, 24, patternColor))))
	if err := CompareCoefficients(a, b); err != nil {
		t.Errorf("Identical images compare unequal: %v", err)
	}

	c := decodeFile(t, writeFile(t, "c.jpg", encodeJPEG(t, makeImage(40, 24, patternGrayAsColor))))
	if err := CompareCoefficients(a, c); err == nil {
		t.Errorf("Different images compare equal")
	}
	d := decodeFile(t, writeFile(t, "d.jpg", encodeJPEG(t, makeImage(48, 24, patternColor))))
	if err := CompareCoefficients(a, d); err == nil {
		t.Errorf("Images of different size compare equal")
	}
}
