package jpegcoef

// maxCorrBits bounds the correction bits buffered while an EOB run is open
const maxCorrBits = 1000

// scanTables holds the encoding tables of a scan, indexed by table slot
type scanTables struct {
	dc, ac [4]*encodeTable
}

// scanEncoder entropy codes one scan. Without tables it only counts symbol
// frequencies, which is the statistics pass of an optimized encode.
type scanEncoder struct {
	w      *jpegWriter
	scan   *ScanSpec
	tables *scanTables
	bw     *BitWriter

	dcFreq, acFreq [4]*symbolFrequencies

	lastDC    [MaxComponents]int32
	eobRun    int
	eobSlot   int
	corrBits  []uint8
	blockBits []uint8
	err       error
}

func newScanEncoder(w *jpegWriter, scan *ScanSpec, tables *scanTables) *scanEncoder {
	e := &scanEncoder{w: w, scan: scan, tables: tables, bw: w.bw}
	if tables == nil {
		cs := w.h.ColorSpace
		for _, ci := range scan.Components {
			slot := tableSlot(cs, ci)
			if scan.Ss == 0 && e.dcFreq[slot] == nil {
				e.dcFreq[slot] = new(symbolFrequencies)
			}
			if scan.Se > 0 && e.acFreq[slot] == nil {
				e.acFreq[slot] = new(symbolFrequencies)
			}
		}
	}
	return e
}

func (e *scanEncoder) gathering() bool {
	return e.tables == nil
}

type blockEncodeFunc func(b *Block, ci int)

func (e *scanEncoder) blockEncoder() blockEncodeFunc {
	s := e.scan
	switch {
	case !e.w.opts.Progressive:
		return e.encodeSequential
	case s.Ss == 0 && s.Ah == 0:
		return e.encodeDCFirst
	case s.Ss == 0:
		return e.encodeDCRefine
	case s.Ah == 0:
		return e.encodeACFirst
	default:
		return e.encodeACRefine
	}
}

// run walks the scan's blocks in coding order
func (e *scanEncoder) run() error {
	encodeBlock := e.blockEncoder()
	h := e.w.h
	stores := e.w.stores

	if len(e.scan.Components) == 1 {
		ci := e.scan.Components[0]
		c := &h.Components[ci]
		for by := 0; by < c.BlocksHigh; by++ {
			rows, err := stores[ci].AccessRows(by, 1, false)
			if err != nil {
				return err
			}
			for bx := 0; bx < c.BlocksWide; bx++ {
				encodeBlock(&rows[0][bx], ci)
			}
			if err := e.flushRow(); err != nil {
				return err
			}
		}
		return e.finish()
	}

	var rows [MaxComponents][][]Block
	for my := 0; my < h.McusHigh; my++ {
		for _, ci := range e.scan.Components {
			c := &h.Components[ci]
			r, err := stores[ci].AccessRows(my*c.V, c.V, false)
			if err != nil {
				return err
			}
			rows[ci] = r
		}
		for mx := 0; mx < h.McusWide; mx++ {
			for _, ci := range e.scan.Components {
				c := &h.Components[ci]
				for y := 0; y < c.V; y++ {
					row := rows[ci][y]
					for x := 0; x < c.H; x++ {
						encodeBlock(&row[mx*c.H+x], ci)
					}
				}
			}
		}
		if err := e.flushRow(); err != nil {
			return err
		}
	}
	return e.finish()
}

func (e *scanEncoder) flushRow() error {
	if e.err != nil {
		return e.err
	}
	if e.gathering() {
		return nil
	}
	if err := e.bw.FlushTo(e.w.out); err != nil {
		return wrapError(CodeOsError, "writing scan data", err)
	}
	return nil
}

func (e *scanEncoder) finish() error {
	e.encodeEOBRun()
	return e.err
}

// emit writes the Huffman code of sym, or counts it when gathering
func (e *scanEncoder) emit(ac bool, slot int, sym uint8) {
	if e.gathering() {
		if ac {
			e.acFreq[slot][sym]++
		} else {
			e.dcFreq[slot][sym]++
		}
		return
	}
	t := e.tables.dc[slot]
	if ac {
		t = e.tables.ac[slot]
	}
	if t == nil || t.lengths[sym] == 0 {
		if e.err == nil {
			e.err = errorf(CodeAssertionFailure, "symbol %#02x missing from Huffman table (enable table optimization)", sym)
		}
		return
	}
	e.bw.Write(uint32(t.codes[sym]), uint32(t.lengths[sym]))
}

func (e *scanEncoder) bits(val uint32, n uint32) {
	if !e.gathering() {
		e.bw.Write(val, n)
	}
}

// category returns the number of bits needed for the magnitude of v
func category(v int32) uint32 {
	if v < 0 {
		v = -v
	}
	n := uint32(0)
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// writeCoef writes a run/size symbol followed by the value's extra bits
func (e *scanEncoder) writeCoef(ac bool, slot int, v int32, zeroRunLength int) {
	size := category(v)
	e.emit(ac, slot, uint8(zeroRunLength<<4)|uint8(size))
	if size > 0 {
		if v < 0 {
			v--
		}
		e.bits(uint32(v)&(1<<size-1), size)
	}
}

func (e *scanEncoder) encodeSequential(b *Block, ci int) {
	slot := tableSlot(e.w.h.ColorSpace, ci)
	dc := int32(b[0])
	e.writeCoef(false, slot, dc-e.lastDC[ci], 0)
	e.lastDC[ci] = dc

	zeroRunLength := 0
	for k := 1; k < 64; k++ {
		coef := b.Zigzag(k)
		if coef == 0 {
			zeroRunLength++
			continue
		}
		for zeroRunLength >= 16 {
			e.emit(true, slot, 0xF0)
			zeroRunLength -= 16
		}
		e.writeCoef(true, slot, int32(coef), zeroRunLength)
		zeroRunLength = 0
	}
	if zeroRunLength > 0 {
		e.emit(true, slot, 0x00)
	}
}

func (e *scanEncoder) encodeDCFirst(b *Block, ci int) {
	slot := tableSlot(e.w.h.ColorSpace, ci)
	dc := int32(b[0]) >> e.scan.Al
	e.writeCoef(false, slot, dc-e.lastDC[ci], 0)
	e.lastDC[ci] = dc
}

func (e *scanEncoder) encodeDCRefine(b *Block, _ int) {
	e.bits(uint32(b[0]>>e.scan.Al)&1, 1)
}

func (e *scanEncoder) encodeACFirst(b *Block, ci int) {
	slot := tableSlot(e.w.h.ColorSpace, ci)
	e.eobSlot = slot
	al := uint8(e.scan.Al)

	zeroRunLength := 0
	for k := e.scan.Ss; k <= e.scan.Se; k++ {
		coef := divPow2(b.Zigzag(k), al)
		if coef == 0 {
			zeroRunLength++
			continue
		}
		e.encodeEOBRun()
		for zeroRunLength >= 16 {
			e.emit(true, slot, 0xF0)
			zeroRunLength -= 16
		}
		e.writeCoef(true, slot, int32(coef), zeroRunLength)
		zeroRunLength = 0
	}

	if zeroRunLength > 0 {
		e.eobRun++
		if e.eobRun == maxEOBRun {
			e.encodeEOBRun()
		}
	}
}

func (e *scanEncoder) encodeACRefine(b *Block, ci int) {
	slot := tableSlot(e.w.h.ColorSpace, ci)
	e.eobSlot = slot
	al := uint8(e.scan.Al)
	from, to := e.scan.Ss, e.scan.Se

	// eob is one past the last coefficient that becomes nonzero in this scan
	eob := from
	for k := to; k >= from; k-- {
		if coef := divPow2(b.Zigzag(k), al); coef == 1 || coef == -1 {
			eob = k + 1
			break
		}
	}

	if eob > from {
		e.encodeEOBRun()
	}

	e.blockBits = e.blockBits[:0]
	zeroRunLength := 0
	for k := from; k < eob; k++ {
		coef := divPow2(b.Zigzag(k), al)
		switch {
		case coef == 0:
			zeroRunLength++
			if zeroRunLength == 16 {
				e.emit(true, slot, 0xF0)
				e.writeCorrectionBits(&e.blockBits)
				zeroRunLength = 0
			}
		case coef == 1 || coef == -1:
			e.writeCoef(true, slot, int32(coef), zeroRunLength)
			e.writeCorrectionBits(&e.blockBits)
			zeroRunLength = 0
		default:
			e.blockBits = append(e.blockBits, uint8(coef&1))
		}
	}

	for k := eob; k <= to; k++ {
		if coef := divPow2(b.Zigzag(k), al); coef != 0 {
			e.blockBits = append(e.blockBits, uint8(coef&1))
		}
	}

	if eob <= to {
		e.eobRun++
		e.corrBits = append(e.corrBits, e.blockBits...)
		if e.eobRun == maxEOBRun || len(e.corrBits) > maxCorrBits-63 {
			e.encodeEOBRun()
		}
	}
}

// encodeEOBRun writes the pending EOB run and the correction bits buffered
// with it
func (e *scanEncoder) encodeEOBRun() {
	if e.eobRun == 0 {
		return
	}
	nbits := category(int32(e.eobRun)) - 1
	e.emit(true, e.eobSlot, uint8(nbits<<4))
	if nbits > 0 {
		e.bits(uint32(e.eobRun)&(1<<nbits-1), nbits)
	}
	e.eobRun = 0
	e.writeCorrectionBits(&e.corrBits)
}

func (e *scanEncoder) writeCorrectionBits(bits *[]uint8) {
	for _, b := range *bits {
		e.bits(uint32(b), 1)
	}
	*bits = (*bits)[:0]
}

// divPow2 divides by 2^p rounding toward zero, as successive approximation
// requires
func divPow2(v int16, p uint8) int16 {
	if p == 0 {
		return v
	}
	val := int32(v)
	if val < 0 {
		val += (1 << p) - 1
	}
	return int16(val >> p)
}
