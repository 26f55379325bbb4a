package jpegcoef

import (
	"bufio"
	"encoding/binary"
	"io"
)

// maxBlocksInMCU is the most blocks an interleaved scan may carry per MCU
const maxBlocksInMCU = 10

// ScanSpec describes one scan of the output. Components holds indexes into
// Header.Components; Ss and Se are the zigzag spectral range and Ah and Al the
// successive approximation bit positions.
type ScanSpec struct {
	Components []int
	Ss, Se     int
	Ah, Al     int
}

// EncodeOptions selects how coefficients are entropy coded
type EncodeOptions struct {
	// Optimize computes Huffman tables from the data instead of using the
	// standard tables. Progressive output is always optimized.
	Optimize bool

	// Progressive writes a progressive JPEG
	Progressive bool

	// ScanScript overrides the progressive scan sequence. When nil the
	// simple progression for the color space is used.
	ScanScript []ScanSpec

	// Markers are written verbatim after the JFIF or Adobe marker
	Markers []Marker
}

// SimpleProgression returns the standard progressive scan sequence for an
// image with numComponents components in the given color space.
func SimpleProgression(numComponents int, cs ColorSpace) []ScanSpec {
	all := make([]int, numComponents)
	for i := range all {
		all[i] = i
	}
	one := func(ci, ss, se, ah, al int) ScanSpec {
		return ScanSpec{Components: []int{ci}, Ss: ss, Se: se, Ah: ah, Al: al}
	}

	if numComponents == 3 && cs == ColorYCbCr {
		return []ScanSpec{
			{Components: all, Ss: 0, Se: 0, Ah: 0, Al: 1},
			one(0, 1, 5, 0, 2),
			one(2, 1, 63, 0, 1),
			one(1, 1, 63, 0, 1),
			one(0, 6, 63, 0, 2),
			one(0, 1, 63, 2, 1),
			{Components: all, Ss: 0, Se: 0, Ah: 1, Al: 0},
			one(2, 1, 63, 1, 0),
			one(1, 1, 63, 1, 0),
			one(0, 1, 63, 1, 0),
		}
	}

	var script []ScanSpec
	script = append(script, ScanSpec{Components: all, Ss: 0, Se: 0, Ah: 0, Al: 1})
	for ci := range all {
		script = append(script, one(ci, 1, 5, 0, 2))
	}
	for ci := range all {
		script = append(script, one(ci, 6, 63, 0, 2))
	}
	for ci := range all {
		script = append(script, one(ci, 1, 63, 2, 1))
	}
	script = append(script, ScanSpec{Components: all, Ss: 0, Se: 0, Ah: 1, Al: 0})
	for ci := range all {
		script = append(script, one(ci, 1, 63, 1, 0))
	}
	return script
}

// splitWideDCScans replaces interleaved scans whose MCU would exceed the
// block limit with one scan per component
func splitWideDCScans(h *Header, script []ScanSpec) []ScanSpec {
	out := make([]ScanSpec, 0, len(script))
	for _, s := range script {
		if len(s.Components) > 1 && scanBlocksPerMCU(h, s.Components) > maxBlocksInMCU {
			for _, ci := range s.Components {
				out = append(out, ScanSpec{Components: []int{ci}, Ss: s.Ss, Se: s.Se, Ah: s.Ah, Al: s.Al})
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

func scanBlocksPerMCU(h *Header, comps []int) int {
	n := 0
	for _, ci := range comps {
		n += h.Components[ci].BlocksPerMCU()
	}
	return n
}

// validateScanScript checks that a progressive script is well formed and
// codes every bit of every coefficient exactly once.
func validateScanScript(h *Header, script []ScanSpec) error {
	if len(script) == 0 {
		return NewError(CodeInvalidScanScript, "scan script is empty")
	}
	n := len(h.Components)
	// last[c][k] is the Al of the most recent scan coding coefficient k of
	// component c, or -1
	last := make([][64]int, n)
	for c := range last {
		for k := range last[c] {
			last[c][k] = -1
		}
	}

	for i, s := range script {
		if len(s.Components) == 0 || len(s.Components) > MaxComponents {
			return errorf(CodeInvalidScanScript, "scan %d has %d components", i, len(s.Components))
		}
		seen := 0
		for _, ci := range s.Components {
			if ci < 0 || ci >= n {
				return errorf(CodeInvalidScanScript, "scan %d has invalid component %d", i, ci)
			}
			if seen&(1<<ci) != 0 {
				return errorf(CodeInvalidScanScript, "scan %d repeats component %d", i, ci)
			}
			seen |= 1 << ci
		}
		if s.Ss < 0 || s.Se > 63 || s.Ss > s.Se {
			return errorf(CodeInvalidScanScript, "scan %d has invalid spectral range %d-%d", i, s.Ss, s.Se)
		}
		if s.Ss == 0 && s.Se != 0 {
			return errorf(CodeInvalidScanScript, "scan %d mixes DC and AC coefficients", i)
		}
		if s.Ss > 0 && len(s.Components) != 1 {
			return errorf(CodeInvalidScanScript, "AC scan %d must have a single component", i)
		}
		if s.Al < 0 || s.Al > 13 || (s.Ah != 0 && s.Ah != s.Al+1) {
			return errorf(CodeInvalidScanScript, "scan %d has invalid successive approximation %d/%d", i, s.Ah, s.Al)
		}
		if len(s.Components) > 1 && scanBlocksPerMCU(h, s.Components) > maxBlocksInMCU {
			return errorf(CodeInvalidScanScript, "scan %d needs more than %d blocks per MCU", i, maxBlocksInMCU)
		}

		for _, ci := range s.Components {
			for k := s.Ss; k <= s.Se; k++ {
				prev := last[ci][k]
				if s.Ah == 0 && prev != -1 {
					return errorf(CodeInvalidScanScript, "scan %d codes coefficient %d of component %d twice", i, k, ci)
				}
				if s.Ah != 0 && prev != s.Ah {
					return errorf(CodeInvalidScanScript, "scan %d refines coefficient %d of component %d out of order", i, k, ci)
				}
				if k > 0 && last[ci][0] == -1 {
					return errorf(CodeInvalidScanScript, "scan %d codes AC before DC of component %d", i, ci)
				}
				last[ci][k] = s.Al
			}
		}
	}

	for ci := range last {
		for k, al := range last[ci] {
			if al != 0 {
				return errorf(CodeInvalidScanScript, "coefficient %d of component %d is not fully coded", k, ci)
			}
		}
	}
	return nil
}

// tableSlot returns the Huffman table slot used for component ci
func tableSlot(cs ColorSpace, ci int) int {
	switch cs {
	case ColorYCbCr:
		if ci > 0 {
			return 1
		}
	case ColorYCCK:
		if ci == 1 || ci == 2 {
			return 1
		}
	}
	return 0
}

// jpegWriter writes the markers of an output file around its scans
type jpegWriter struct {
	out    *bufio.Writer
	h      *Header
	stores []*Store
	opts   EncodeOptions

	bw             *BitWriter
	sentDC, sentAC [4]*HuffmanTable
}

// Encode writes a complete JPEG from a header and one coefficient store per
// component. Stores must cover the padded block grid of their component.
func Encode(out io.Writer, h *Header, stores []*Store, opts EncodeOptions) error {
	if err := checkEncodable(h, stores); err != nil {
		return err
	}

	w := &jpegWriter{
		out:    bufio.NewWriterSize(out, 64<<10),
		h:      h,
		stores: stores,
		opts:   opts,
		bw:     NewBitWriter(64 << 10),
	}
	if err := w.write(); err != nil {
		return err
	}
	if err := w.out.Flush(); err != nil {
		return wrapError(CodeOsError, "writing jpeg", err)
	}
	return nil
}

func checkEncodable(h *Header, stores []*Store) error {
	if h.Width < 1 || h.Height < 1 || h.Width > 65535 || h.Height > 65535 {
		return errorf(CodeAssertionFailure, "invalid image size %dx%d", h.Width, h.Height)
	}
	if len(h.Components) == 0 || len(h.Components) > MaxComponents {
		return errorf(CodeAssertionFailure, "invalid component count %d", len(h.Components))
	}
	if len(stores) != len(h.Components) {
		return errorf(CodeAssertionFailure, "%d stores for %d components", len(stores), len(h.Components))
	}
	for i := range h.Components {
		c := &h.Components[i]
		if c.QuantIndex < 0 || c.QuantIndex > 3 || h.QuantTables[c.QuantIndex] == nil {
			return errorf(CodeAssertionFailure, "component %d has no quantization table", i)
		}
		s := stores[i]
		if s.BlocksWide() < c.PaddedWide || s.Rows() < c.PaddedHigh {
			return errorf(CodeAssertionFailure, "store %d is %dx%d blocks, need %dx%d",
				i, s.BlocksWide(), s.Rows(), c.PaddedWide, c.PaddedHigh)
		}
		if len(h.Components) > 1 && s.MaxAccess() < c.V {
			return errorf(CodeAssertionFailure, "store %d allows %d rows per access, need %d", i, s.MaxAccess(), c.V)
		}
	}
	return nil
}

func (w *jpegWriter) write() error {
	w.out.Write([]byte{0xFF, MarkerSOI})
	if err := w.writeColorMarker(); err != nil {
		return err
	}
	for _, m := range w.opts.Markers {
		if err := w.writeSegment(m.Code, m.Data); err != nil {
			return err
		}
	}
	if err := w.writeDQT(); err != nil {
		return err
	}
	if err := w.writeSOF(); err != nil {
		return err
	}

	script, err := w.script()
	if err != nil {
		return err
	}
	for i := range script {
		if err := w.writeScan(&script[i]); err != nil {
			return err
		}
	}

	if _, err := w.out.Write([]byte{0xFF, MarkerEOI}); err != nil {
		return wrapError(CodeOsError, "writing jpeg", err)
	}
	return nil
}

// script returns the scans to write
func (w *jpegWriter) script() ([]ScanSpec, error) {
	h := w.h
	if w.opts.Progressive {
		script := w.opts.ScanScript
		if script == nil {
			script = splitWideDCScans(h, SimpleProgression(len(h.Components), h.ColorSpace))
		}
		if err := validateScanScript(h, script); err != nil {
			return nil, err
		}
		return script, nil
	}

	all := make([]int, len(h.Components))
	for i := range all {
		all[i] = i
	}
	return splitWideDCScans(h, []ScanSpec{{Components: all, Ss: 0, Se: 63}}), nil
}

func (w *jpegWriter) writeSegment(code byte, data []byte) error {
	if len(data) > 65533 {
		return errorf(CodeAssertionFailure, "%s segment of %d bytes is too long", MarkerName(code), len(data))
	}
	var hdr [4]byte
	hdr[0] = 0xFF
	hdr[1] = code
	binary.BigEndian.PutUint16(hdr[2:], uint16(len(data)+2))
	w.out.Write(hdr[:])
	if _, err := w.out.Write(data); err != nil {
		return wrapError(CodeOsError, "writing jpeg", err)
	}
	return nil
}

// writeColorMarker writes JFIF for gray and YCbCr images and an Adobe marker
// for the others, so readers detect the same color space.
func (w *jpegWriter) writeColorMarker() error {
	switch w.h.ColorSpace {
	case ColorGray, ColorYCbCr:
		j := JFIF{MajorVersion: 1, MinorVersion: 1, XDensity: 1, YDensity: 1}
		if w.h.JFIF != nil {
			j = *w.h.JFIF
		}
		data := []byte{'J', 'F', 'I', 'F', 0, j.MajorVersion, j.MinorVersion, j.DensityUnit}
		data = binary.BigEndian.AppendUint16(data, j.XDensity)
		data = binary.BigEndian.AppendUint16(data, j.YDensity)
		data = append(data, 0, 0)
		return w.writeSegment(MarkerAPP0, data)
	case ColorRGB, ColorCMYK, ColorYCCK:
		transform := uint8(0)
		if w.h.ColorSpace == ColorYCCK {
			transform = 2
		}
		data := []byte{'A', 'd', 'o', 'b', 'e'}
		data = binary.BigEndian.AppendUint16(data, 100)
		data = binary.BigEndian.AppendUint16(data, 0)
		data = binary.BigEndian.AppendUint16(data, 0)
		data = append(data, transform)
		return w.writeSegment(MarkerAPP14, data)
	}
	return nil
}

func (w *jpegWriter) writeDQT() error {
	var used [4]bool
	for _, c := range w.h.Components {
		used[c.QuantIndex] = true
	}
	for i, q := range w.h.QuantTables {
		if !used[i] {
			continue
		}
		wide := q.Precision != 0
		for _, v := range q.Values {
			if v > 255 {
				wide = true
			}
		}
		var data []byte
		if wide {
			data = append(data, byte(0x10|i))
			for _, v := range q.Values {
				data = binary.BigEndian.AppendUint16(data, v)
			}
		} else {
			data = append(data, byte(i))
			for _, v := range q.Values {
				data = append(data, byte(v))
			}
		}
		if err := w.writeSegment(MarkerDQT, data); err != nil {
			return err
		}
	}
	return nil
}

func (w *jpegWriter) writeSOF() error {
	h := w.h
	code := byte(MarkerSOF0)
	if w.opts.Progressive {
		code = MarkerSOF2
	} else {
		for _, c := range h.Components {
			q := h.QuantTables[c.QuantIndex]
			if q.Precision != 0 {
				code = MarkerSOF1
			}
			for _, v := range q.Values {
				if v > 255 {
					code = MarkerSOF1
				}
			}
		}
	}

	data := []byte{8}
	data = binary.BigEndian.AppendUint16(data, uint16(h.Height))
	data = binary.BigEndian.AppendUint16(data, uint16(h.Width))
	data = append(data, byte(len(h.Components)))
	for _, c := range h.Components {
		data = append(data, c.ID, byte(c.H<<4|c.V), byte(c.QuantIndex))
	}
	return w.writeSegment(code, data)
}

// writeScan writes the tables a scan needs, its header and its data
func (w *jpegWriter) writeScan(s *ScanSpec) error {
	h := w.h
	var dc, ac [4]*HuffmanTable
	needDC := s.Ss == 0 && s.Ah == 0
	needAC := s.Se > 0

	if w.opts.Optimize || w.opts.Progressive {
		if needDC || needAC {
			stats := newScanEncoder(w, s, nil)
			if err := stats.run(); err != nil {
				return err
			}
			for slot := range stats.dcFreq {
				if stats.dcFreq[slot] != nil {
					dc[slot] = optimalTable(stats.dcFreq[slot])
				}
				if stats.acFreq[slot] != nil {
					ac[slot] = optimalTable(stats.acFreq[slot])
				}
			}
		}
	} else {
		for _, ci := range s.Components {
			slot := tableSlot(h.ColorSpace, ci)
			if slot == 0 {
				dc[0], ac[0] = StdDCLuminance, StdACLuminance
			} else {
				dc[1], ac[1] = StdDCChrominance, StdACChrominance
			}
		}
	}

	var dht []byte
	for slot := range dc {
		if needDC && dc[slot] != nil && w.sentDC[slot] != dc[slot] {
			dht = dc[slot].appendDHT(dht, 0, slot)
			w.sentDC[slot] = dc[slot]
		}
		if needAC && ac[slot] != nil && w.sentAC[slot] != ac[slot] {
			dht = ac[slot].appendDHT(dht, 1, slot)
			w.sentAC[slot] = ac[slot]
		}
	}
	if len(dht) > 0 {
		if err := w.writeSegment(MarkerDHT, dht); err != nil {
			return err
		}
	}

	sos := []byte{byte(len(s.Components))}
	for _, ci := range s.Components {
		slot := byte(tableSlot(h.ColorSpace, ci))
		td, ta := slot, slot
		if w.opts.Progressive {
			if s.Ss == 0 {
				ta = 0
				if s.Ah != 0 {
					td = 0
				}
			} else {
				td = 0
			}
		}
		sos = append(sos, h.Components[ci].ID, td<<4|ta)
	}
	sos = append(sos, byte(s.Ss), byte(s.Se), byte(s.Ah<<4|s.Al))
	if err := w.writeSegment(MarkerSOS, sos); err != nil {
		return err
	}

	var tables scanTables
	for slot := range dc {
		if dc[slot] != nil {
			tables.dc[slot] = newEncodeTable(dc[slot])
		}
		if ac[slot] != nil {
			tables.ac[slot] = newEncodeTable(ac[slot])
		}
	}
	enc := newScanEncoder(w, s, &tables)
	if err := enc.run(); err != nil {
		return err
	}
	w.bw.Pad()
	if err := w.bw.FlushTo(w.out); err != nil {
		return wrapError(CodeOsError, "writing jpeg", err)
	}
	return nil
}
