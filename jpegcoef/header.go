package jpegcoef

import (
	"bytes"
	"fmt"
)

// FrameType is the coding process declared by the SOF marker
type FrameType int

const (
	FrameUnknown FrameType = iota
	FrameBaseline
	FrameExtended
	FrameProgressive
)

func (f FrameType) String() string {
	switch f {
	case FrameBaseline:
		return "baseline"
	case FrameExtended:
		return "extended sequential"
	case FrameProgressive:
		return "progressive"
	default:
		return "unknown"
	}
}

// QuantTable holds one quantization table in zigzag order, as stored in DQT
type QuantTable struct {
	// Precision is 0 for 8-bit and 1 for 16-bit entries
	Precision int
	Values    [64]uint16
}

// Natural returns the table value for natural (row-major) index i
func (q *QuantTable) Natural(i int) uint16 {
	return q.Values[NaturalToZigzag[i]]
}

// JFIF holds the fields of an APP0 JFIF marker
type JFIF struct {
	MajorVersion, MinorVersion uint8
	DensityUnit                uint8
	XDensity, YDensity         uint16
}

// Adobe holds the fields of an APP14 Adobe marker
type Adobe struct {
	Version        uint16
	Flags0, Flags1 uint16
	Transform      uint8
}

// Marker is an APPn or COM segment kept verbatim
type Marker struct {
	Code byte
	Data []byte
}

// Header contains parsed JPEG header information
type Header struct {
	// Frame indicates baseline, extended or progressive coding
	Frame FrameType

	// Width and Height are the image dimensions in pixels
	Width, Height int

	// Components in frame header order
	Components []Component

	// QuantTables contains up to 4 quantization tables
	QuantTables [4]*QuantTable

	// DCTables and ACTables contain Huffman tables as last defined
	DCTables, ACTables [4]*HuffmanTable

	// Arithmetic is set when the frame uses arithmetic entropy coding.
	// Such headers can be inspected but not decoded.
	Arithmetic bool

	// RestartInterval is the restart interval in MCUs
	RestartInterval int

	// MaxH and MaxV are the maximum sampling factors
	MaxH, MaxV int

	// McusWide and McusHigh are the interleaved MCU counts
	McusWide, McusHigh int

	ColorSpace ColorSpace
	JFIF       *JFIF
	Adobe      *Adobe

	// Markers holds APPn and COM segments other than JFIF and Adobe
	Markers []Marker
}

// Progressive reports whether the image uses progressive coding
func (h *Header) Progressive() bool {
	return h.Frame == FrameProgressive
}

// MCUWidth returns the width of an interleaved MCU in pixels
func (h *Header) MCUWidth() int {
	return h.MaxH * BlockSize
}

// MCUHeight returns the height of an interleaved MCU in pixels
func (h *Header) MCUHeight() int {
	return h.MaxV * BlockSize
}

// ComponentQuant returns the quantization table of component c
func (h *Header) ComponentQuant(c int) *QuantTable {
	return h.QuantTables[h.Components[c].QuantIndex]
}

// Clone returns a copy of the header's critical parameters: dimensions,
// components, quantization tables and color space. Huffman tables, restart
// interval and saved markers are not carried over.
func (h *Header) Clone() *Header {
	out := &Header{
		Frame:      h.Frame,
		Width:      h.Width,
		Height:     h.Height,
		Components: append([]Component(nil), h.Components...),
		ColorSpace: h.ColorSpace,
	}
	for i, q := range h.QuantTables {
		if q != nil {
			qc := *q
			out.QuantTables[i] = &qc
		}
	}
	if h.JFIF != nil {
		j := *h.JFIF
		out.JFIF = &j
	}
	if h.Adobe != nil {
		a := *h.Adobe
		out.Adobe = &a
	}
	out.computeGeometry()
	return out
}

// SetSize changes the image dimensions and recomputes block geometry
func (h *Header) SetSize(width, height int) {
	h.Width = width
	h.Height = height
	h.computeGeometry()
}

// computeGeometry derives MCU counts and per-component block counts
func (h *Header) computeGeometry() {
	h.MaxH, h.MaxV = 1, 1
	for _, c := range h.Components {
		h.MaxH = max(h.MaxH, c.H)
		h.MaxV = max(h.MaxV, c.V)
	}
	h.McusWide = ceilDiv(h.Width, h.MaxH*BlockSize)
	h.McusHigh = ceilDiv(h.Height, h.MaxV*BlockSize)
	for i := range h.Components {
		c := &h.Components[i]
		c.BlocksWide = ceilDiv(ceilDiv(h.Width*c.H, h.MaxH), BlockSize)
		c.BlocksHigh = ceilDiv(ceilDiv(h.Height*c.V, h.MaxV), BlockSize)
		c.PaddedWide = h.McusWide * c.H
		c.PaddedHigh = h.McusHigh * c.V
	}
}

// componentByID returns the index of the component with the given id
func (h *Header) componentByID(id uint8) int {
	for i := range h.Components {
		if h.Components[i].ID == id {
			return i
		}
	}
	return -1
}

// parseSOF parses a Start Of Frame segment
func (h *Header) parseSOF(code byte, data []byte) error {
	if h.Frame != FrameUnknown {
		return NewError(CodeUnsupportedJpeg, "multiple SOF markers")
	}
	switch code {
	case MarkerSOF0:
		h.Frame = FrameBaseline
	case MarkerSOF1:
		h.Frame = FrameExtended
	case MarkerSOF2:
		h.Frame = FrameProgressive
	case MarkerSOF9:
		h.Frame = FrameExtended
		h.Arithmetic = true
	case MarkerSOF10:
		h.Frame = FrameProgressive
		h.Arithmetic = true
	case MarkerSOF11, MarkerSOF13, MarkerSOF14, MarkerSOF15:
		return errorf(CodeArithmeticCoding, "%s: arithmetic coding not supported", MarkerName(code))
	case MarkerSOF3:
		return NewError(CodeUnsupportedJpeg, "lossless JPEG not supported")
	default:
		return errorf(CodeUnsupportedJpeg, "%s: hierarchical JPEG not supported", MarkerName(code))
	}

	if len(data) < 6 {
		return NewError(CodeUnsupportedJpeg, "SOF segment too short")
	}
	if data[0] != 8 {
		return errorf(CodeUnsupportedJpeg, "%d bit precision not supported", data[0])
	}
	h.Height = int(data[1])<<8 | int(data[2])
	h.Width = int(data[3])<<8 | int(data[4])
	n := int(data[5])
	if h.Height == 0 || h.Width == 0 {
		return NewError(CodeUnsupportedJpeg, "image dimensions cannot be zero")
	}
	if n == 0 || n > MaxComponents {
		return errorf(CodeUnsupportedJpeg, "image has %d components, max %d supported", n, MaxComponents)
	}
	if len(data) < 6+3*n {
		return NewError(CodeUnsupportedJpeg, "SOF segment too short for components")
	}

	h.Components = make([]Component, n)
	for i := range h.Components {
		p := data[6+3*i:]
		c := &h.Components[i]
		c.ID = p[0]
		c.H = int(p[1] >> 4)
		c.V = int(p[1] & 0x0F)
		c.QuantIndex = int(p[2])
		if !isPowerOfTwo(c.H) || !isPowerOfTwo(c.V) || c.H > 4 || c.V > 4 {
			return errorf(CodeSamplingUnsupported,
				"component %d sampling %dx%d not supported", i, c.H, c.V)
		}
		if c.QuantIndex >= 4 {
			return NewError(CodeUnsupportedJpeg, "quantization table index too big")
		}
		if h.componentByID(c.ID) != i {
			return errorf(CodeUnsupportedJpeg, "duplicate component id %d", c.ID)
		}
	}
	h.computeGeometry()
	return nil
}

// parseDHT parses a Define Huffman Table segment
func (h *Header) parseDHT(data []byte) error {
	pos := 0
	for pos < len(data) {
		class := data[pos] >> 4 // 0=DC, 1=AC
		slot := data[pos] & 0x0F
		pos++
		if class > 1 || slot > 3 {
			return NewError(CodeUnsupportedJpeg, "invalid Huffman table index")
		}
		if pos+16 > len(data) {
			return NewError(CodeUnsupportedJpeg, "DHT segment too short")
		}
		var counts [17]uint8
		total := 0
		for i := 1; i <= 16; i++ {
			counts[i] = data[pos+i-1]
			total += int(counts[i])
		}
		pos += 16
		if pos+total > len(data) {
			return NewError(CodeUnsupportedJpeg, "DHT segment too short for symbols")
		}
		table, err := NewHuffmanTable(counts, data[pos:pos+total])
		if err != nil {
			return err
		}
		pos += total
		if class == 0 {
			h.DCTables[slot] = table
		} else {
			h.ACTables[slot] = table
		}
	}
	return nil
}

// parseDQT parses a Define Quantization Table segment
func (h *Header) parseDQT(data []byte) error {
	pos := 0
	for pos < len(data) {
		precision := int(data[pos] >> 4)
		slot := data[pos] & 0x0F
		pos++
		if slot > 3 || precision > 1 {
			return NewError(CodeUnsupportedJpeg, "invalid quantization table index")
		}
		q := &QuantTable{Precision: precision}
		if precision == 0 {
			if pos+64 > len(data) {
				return NewError(CodeUnsupportedJpeg, "DQT segment too short")
			}
			for i := 0; i < 64; i++ {
				q.Values[i] = uint16(data[pos+i])
			}
			pos += 64
		} else {
			if pos+128 > len(data) {
				return NewError(CodeUnsupportedJpeg, "DQT segment too short")
			}
			for i := 0; i < 64; i++ {
				q.Values[i] = uint16(data[pos+i*2])<<8 | uint16(data[pos+i*2+1])
			}
			pos += 128
		}
		h.QuantTables[slot] = q
	}
	return nil
}

// parseDRI parses a Define Restart Interval segment
func (h *Header) parseDRI(data []byte) error {
	if len(data) != 2 {
		return NewError(CodeUnsupportedJpeg, "DRI segment has wrong length")
	}
	h.RestartInterval = int(data[0])<<8 | int(data[1])
	return nil
}

var (
	jfifIdent  = []byte("JFIF\x00")
	adobeIdent = []byte("Adobe")
)

// parseApp records an APPn or COM segment, recognizing JFIF and Adobe
func (h *Header) parseApp(code byte, data []byte) {
	switch {
	case code == MarkerAPP0 && len(data) >= 14 && bytes.HasPrefix(data, jfifIdent):
		if h.JFIF == nil {
			h.JFIF = &JFIF{
				MajorVersion: data[5],
				MinorVersion: data[6],
				DensityUnit:  data[7],
				XDensity:     uint16(data[8])<<8 | uint16(data[9]),
				YDensity:     uint16(data[10])<<8 | uint16(data[11]),
			}
		}
		return
	case code == MarkerAPP14 && len(data) >= 12 && bytes.HasPrefix(data, adobeIdent):
		if h.Adobe == nil {
			h.Adobe = &Adobe{
				Version:   uint16(data[5])<<8 | uint16(data[6]),
				Flags0:    uint16(data[7])<<8 | uint16(data[8]),
				Flags1:    uint16(data[9])<<8 | uint16(data[10]),
				Transform: data[11],
			}
		}
		return
	}
	h.Markers = append(h.Markers, Marker{Code: code, Data: append([]byte(nil), data...)})
}

// scanComponent is one component entry of an SOS header
type scanComponent struct {
	index   int
	dcTable int
	acTable int
}

// scanHeader contains the parameters of one SOS segment
type scanHeader struct {
	components []scanComponent
	ss, se     int // spectral selection, inclusive
	ah, al     int // successive approximation high/low
}

func (s *scanHeader) String() string {
	ids := make([]int, len(s.components))
	for i, c := range s.components {
		ids[i] = c.index
	}
	return fmt.Sprintf("scan %v Ss=%d Se=%d Ah=%d Al=%d", ids, s.ss, s.se, s.ah, s.al)
}

// parseSOS parses a Start Of Scan segment and checks it against the frame
func (h *Header) parseSOS(data []byte) (*scanHeader, error) {
	if h.Frame == FrameUnknown {
		return nil, NewError(CodeUnsupportedJpeg, "SOS before SOF")
	}
	if len(data) < 1 {
		return nil, NewError(CodeUnsupportedJpeg, "SOS segment too short")
	}
	n := int(data[0])
	if n == 0 || n > len(h.Components) {
		return nil, errorf(CodeUnsupportedJpeg, "bad component count %d in scan", n)
	}
	if len(data) != 1+2*n+3 {
		return nil, NewError(CodeUnsupportedJpeg, "SOS segment has wrong length")
	}

	scan := &scanHeader{components: make([]scanComponent, n)}
	for i := 0; i < n; i++ {
		p := data[1+2*i:]
		idx := h.componentByID(p[0])
		if idx < 0 {
			return nil, NewError(CodeUnsupportedJpeg, "component ID mismatch in SOS")
		}
		for _, prev := range scan.components[:i] {
			if prev.index == idx {
				return nil, NewError(CodeUnsupportedJpeg, "component repeated in SOS")
			}
		}
		scan.components[i] = scanComponent{
			index:   idx,
			dcTable: int(p[1] >> 4),
			acTable: int(p[1] & 0x0F),
		}
		if scan.components[i].dcTable > 3 || scan.components[i].acTable > 3 {
			return nil, NewError(CodeUnsupportedJpeg, "invalid Huffman table selector")
		}
	}
	p := data[1+2*n:]
	scan.ss = int(p[0])
	scan.se = int(p[1])
	scan.ah = int(p[2] >> 4)
	scan.al = int(p[2] & 0x0F)

	switch {
	case h.Arithmetic:
		// never decoded; only the header is of interest
	case !h.Progressive():
		if scan.ss != 0 || scan.se != 63 || scan.ah != 0 || scan.al != 0 {
			return nil, errorf(CodeDCTScaling,
				"sequential scan with Ss=%d Se=%d Ah=%d Al=%d not supported", scan.ss, scan.se, scan.ah, scan.al)
		}
	default:
		if err := checkProgressiveScan(scan); err != nil {
			return nil, err
		}
	}

	blocks := 0
	for _, sc := range scan.components {
		c := &h.Components[sc.index]
		blocks += c.BlocksPerMCU()
		if h.QuantTables[c.QuantIndex] == nil {
			return nil, errorf(CodeUnsupportedJpeg, "component %d uses undefined quantization table %d",
				sc.index, c.QuantIndex)
		}
	}
	if n > 1 && blocks > 10 {
		return nil, errorf(CodeUnsupportedJpeg, "%d blocks per MCU exceeds 10", blocks)
	}
	return scan, nil
}

func checkProgressiveScan(s *scanHeader) error {
	if s.ss > s.se || s.se > 63 || s.al > 13 || s.ah > 13 {
		return errorf(CodeUnsupportedJpeg, "invalid progressive parameters: %s", s)
	}
	if s.ss == 0 && s.se != 0 {
		return errorf(CodeUnsupportedJpeg, "progressive DC scan must not include AC: %s", s)
	}
	if s.ss > 0 && len(s.components) != 1 {
		return errorf(CodeUnsupportedJpeg, "progressive AC scan cannot be interleaved: %s", s)
	}
	if s.ah != 0 && s.ah != s.al+1 {
		return errorf(CodeUnsupportedJpeg, "successive approximation step must be one bit: %s", s)
	}
	return nil
}
