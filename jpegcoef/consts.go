// Package jpegcoef reads and writes JPEG files at the level of quantized DCT
// coefficients, without ever reconstructing pixels.
package jpegcoef

// JPEG marker codes
const (
	MarkerSOF0  = 0xC0 // Baseline DCT
	MarkerSOF1  = 0xC1 // Extended Sequential DCT
	MarkerSOF2  = 0xC2 // Progressive DCT
	MarkerSOF3  = 0xC3 // Lossless
	MarkerDHT   = 0xC4 // Define Huffman Table
	MarkerSOF5  = 0xC5 // Differential sequential (hierarchical)
	MarkerSOF6  = 0xC6
	MarkerSOF7  = 0xC7
	MarkerJPG   = 0xC8
	MarkerSOF9  = 0xC9 // Arithmetic sequential
	MarkerSOF10 = 0xCA
	MarkerSOF11 = 0xCB
	MarkerDAC   = 0xCC // Define Arithmetic Conditioning
	MarkerSOF13 = 0xCD
	MarkerSOF14 = 0xCE
	MarkerSOF15 = 0xCF
	MarkerRST0  = 0xD0 // Restart marker 0
	MarkerRST7  = 0xD7 // Restart marker 7
	MarkerSOI   = 0xD8 // Start Of Image
	MarkerEOI   = 0xD9 // End Of Image
	MarkerSOS   = 0xDA // Start Of Scan
	MarkerDQT   = 0xDB // Define Quantization Table
	MarkerDRI   = 0xDD // Define Restart Interval
	MarkerDHP   = 0xDE // Define Hierarchical Progression
	MarkerEXP   = 0xDF
	MarkerAPP0  = 0xE0 // Application Segment 0
	MarkerAPP1  = 0xE1 // Application Segment 1
	MarkerAPP14 = 0xEE // Adobe
	MarkerAPP15 = 0xEF
	MarkerCOM   = 0xFE // Comment
	MarkerTEM   = 0x01
)

// MaxComponents is the maximum number of color components
const MaxComponents = 4

// BlockSize is the edge length of a DCT block in samples
const BlockSize = 8

// maxEOBRun is the longest run a single EOBn symbol can express
const maxEOBRun = 0x7FFF

// ZigzagToNatural maps zigzag order to natural (row-major) order. The trailing
// entries absorb corrupt run lengths that step past the last coefficient.
var ZigzagToNatural = [64 + 16]uint8{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
	63, 63, 63, 63, 63, 63, 63, 63,
	63, 63, 63, 63, 63, 63, 63, 63,
}

// NaturalToZigzag maps natural (row-major) order to zigzag order
var NaturalToZigzag = [64]uint8{
	0, 1, 5, 6, 14, 15, 27, 28, 2, 4, 7, 13, 16, 26, 29, 42,
	3, 8, 12, 17, 25, 30, 41, 43, 9, 11, 18, 24, 31, 40, 44, 53,
	10, 19, 23, 32, 39, 45, 52, 54, 20, 22, 33, 38, 46, 51, 55, 60,
	21, 34, 37, 47, 50, 56, 59, 61, 35, 36, 48, 49, 57, 58, 62, 63,
}

var markerNames = map[byte]string{
	MarkerSOF0: "SOF0", MarkerSOF1: "SOF1", MarkerSOF2: "SOF2", MarkerSOF3: "SOF3",
	MarkerDHT: "DHT", MarkerSOF5: "SOF5", MarkerSOF6: "SOF6", MarkerSOF7: "SOF7",
	MarkerJPG: "JPG", MarkerSOF9: "SOF9", MarkerSOF10: "SOF10", MarkerSOF11: "SOF11",
	MarkerDAC: "DAC", MarkerSOF13: "SOF13", MarkerSOF14: "SOF14", MarkerSOF15: "SOF15",
	MarkerSOI: "SOI", MarkerEOI: "EOI", MarkerSOS: "SOS", MarkerDQT: "DQT",
	MarkerDRI: "DRI", MarkerDHP: "DHP", MarkerEXP: "EXP", MarkerCOM: "COM",
	MarkerTEM: "TEM",
}

// MarkerName returns a printable name for a marker code.
func MarkerName(code byte) string {
	if n, ok := markerNames[code]; ok {
		return n
	}
	switch {
	case code >= MarkerRST0 && code <= MarkerRST7:
		return "RST" + string('0'+code-MarkerRST0)
	case code >= MarkerAPP0 && code <= MarkerAPP15:
		return appName(code - MarkerAPP0)
	}
	return "unknown"
}

func appName(n byte) string {
	if n < 10 {
		return "APP" + string('0'+n)
	}
	return "APP1" + string('0'+n-10)
}
