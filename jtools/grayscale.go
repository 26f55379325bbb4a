// Package jtools holds small utilities built on jpegcoef: grayscale
// detection, header queries, coefficient-level resaving and block sorting.
package jtools

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// GrayscaleStatus is the answer of IsGrayscale. The values double as
// process exit codes for cmd/isgrayscale.
type GrayscaleStatus int

const (
	GrayscaleYes   GrayscaleStatus = 0
	GrayscaleNo    GrayscaleStatus = 1
	GrayscaleError GrayscaleStatus = 2
)

func (s GrayscaleStatus) String() string {
	switch s {
	case GrayscaleYes:
		return "grayscale"
	case GrayscaleNo:
		return "color"
	case GrayscaleError:
		return "error"
	default:
		return fmt.Sprintf("GrayscaleStatus(%d)", int(s))
	}
}

// IsGrayscale reports whether the JPEG at path looks gray. An image coded
// with one component always is; a YCbCr or RGB image is if every decoded
// pixel has equal red, green and blue. Chroma is upsampled by replication.
func IsGrayscale(path string) (GrayscaleStatus, error) {
	h, err := jpegcoef.ReadHeader(jpegcoef.PathInput(path))
	if err != nil {
		return GrayscaleError, err
	}
	switch h.ColorSpace {
	case jpegcoef.ColorGray:
		return GrayscaleYes, nil
	case jpegcoef.ColorYCbCr, jpegcoef.ColorRGB:
	default:
		return GrayscaleError, fmt.Errorf("unsupported color space %v", h.ColorSpace)
	}

	f, err := os.Open(path)
	if err != nil {
		return GrayscaleError, err
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		return GrayscaleError, fmt.Errorf("decoding %s: %w", path, err)
	}
	if grayPixels(img) {
		return GrayscaleYes, nil
	}
	return GrayscaleNo, nil
}

func grayPixels(img image.Image) bool {
	b := img.Bounds()
	switch m := img.(type) {
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := m.YCbCrAt(x, y)
				r, g, bl := color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
				if r != g || r != bl {
					return false
				}
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, _ := img.At(x, y).RGBA()
				if r != g || r != bl {
					return false
				}
			}
		}
	}
	return true
}
