package jpegcoef

import "fmt"

// ColorSpace is the color space of the coded components
type ColorSpace int

const (
	ColorUnknown ColorSpace = iota
	ColorGray
	ColorYCbCr
	ColorRGB
	ColorCMYK
	ColorYCCK
)

func (c ColorSpace) String() string {
	switch c {
	case ColorUnknown:
		return "Unknown"
	case ColorGray:
		return "Grayscale"
	case ColorYCbCr:
		return "YCbCr"
	case ColorRGB:
		return "RGB"
	case ColorCMYK:
		return "CMYK"
	case ColorYCCK:
		return "YCCK"
	default:
		return fmt.Sprintf("ColorSpace(%d)", int(c))
	}
}

// detectColorSpace guesses the coded color space from the component count and
// the JFIF/Adobe markers, the same way libjpeg does.
func detectColorSpace(h *Header) ColorSpace {
	switch len(h.Components) {
	case 1:
		return ColorGray
	case 3:
		if h.JFIF != nil {
			return ColorYCbCr
		}
		if h.Adobe != nil {
			if h.Adobe.Transform == 0 {
				return ColorRGB
			}
			return ColorYCbCr
		}
		c := h.Components
		if c[0].ID == 'R' && c[1].ID == 'G' && c[2].ID == 'B' {
			return ColorRGB
		}
		return ColorYCbCr
	case 4:
		if h.Adobe != nil && h.Adobe.Transform == 2 {
			return ColorYCCK
		}
		return ColorCMYK
	}
	return ColorUnknown
}
