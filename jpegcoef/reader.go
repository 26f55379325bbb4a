package jpegcoef

import (
	"bufio"
	"errors"
	"io"
)

// Image is a decoded JPEG: its header and one coefficient store per
// component, in frame order
type Image struct {
	Header *Header
	Stores []*Store

	// Truncated reports that the entropy-coded data ended early. Missing
	// coefficients are zero.
	Truncated bool

	mm    *MemoryManager
	ownMM bool
}

// Release frees all coefficient stores. Releasing twice is a no-op.
func (im *Image) Release() error {
	var firstErr error
	for _, s := range im.Stores {
		if err := s.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if im.ownMM && im.mm != nil {
		if err := im.mm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		im.mm = nil
	}
	return firstErr
}

// ReadHeader parses the header segments of in up to the first scan
func ReadHeader(in Input) (*Header, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	h, _, err := readHeader(bufio.NewReader(rc))
	return h, err
}

// Decode reads in and decodes all coefficients into stores allocated from
// mm. A nil mm uses a private manager with no memory limit.
func Decode(in Input, mm *MemoryManager) (*Image, error) {
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return DecodeReader(rc, mm)
}

// DecodeReader is like Decode but reads from r
func DecodeReader(r io.Reader, mm *MemoryManager) (*Image, error) {
	reader := bufio.NewReader(r)
	h, scan, err := readHeader(reader)
	if err != nil {
		return nil, err
	}
	if h.Arithmetic {
		return nil, NewError(CodeArithmeticCoding, "arithmetic coding not supported")
	}

	im := &Image{Header: h, mm: mm}
	if mm == nil {
		im.mm = NewMemoryManager(MemoryConfig{})
		im.ownMM = true
	}
	for i := range h.Components {
		c := &h.Components[i]
		im.Stores = append(im.Stores, im.mm.NewStore(c.PaddedWide, c.PaddedHigh, c.V))
	}

	if err := decodeScans(reader, h, scan, im); err != nil {
		im.Release()
		return nil, err
	}
	return im, nil
}

// readHeader parses segments from SOI through the first SOS
func readHeader(reader *bufio.Reader) (*Header, *scanHeader, error) {
	soi := make([]byte, 2)
	if _, err := io.ReadFull(reader, soi); err != nil {
		return nil, nil, shortRead(err)
	}
	if soi[0] != 0xFF || soi[1] != MarkerSOI {
		return nil, nil, NewError(CodeSyntaxError, "not a JPEG: missing SOI marker")
	}

	h := &Header{}
	for {
		code, err := nextMarker(reader)
		if err != nil {
			return nil, nil, shortRead(err)
		}
		scan, done, err := h.parseSegment(reader, code)
		if err != nil {
			return nil, nil, err
		}
		if done {
			h.ColorSpace = detectColorSpace(h)
			return h, scan, nil
		}
	}
}

// parseSegment reads and interprets one marker segment. It reports done when
// the segment was an SOS.
func (h *Header) parseSegment(reader *bufio.Reader, code byte) (*scanHeader, bool, error) {
	switch {
	case code == MarkerSOI:
		return nil, false, NewError(CodeUnsupportedJpeg, "unexpected SOI marker")
	case code == MarkerEOI:
		return nil, false, NewError(CodeUnsupportedJpeg, "unexpected EOI marker")
	case code == MarkerTEM || (code >= MarkerRST0 && code <= MarkerRST7):
		// Markers without a length
		return nil, false, nil
	}

	data, err := readSegment(reader)
	if err != nil {
		return nil, false, err
	}

	switch {
	case code >= MarkerSOF0 && code <= MarkerSOF15 && code != MarkerDHT && code != MarkerJPG && code != MarkerDAC:
		err = h.parseSOF(code, data)
	case code == MarkerDHT:
		err = h.parseDHT(data)
	case code == MarkerDQT:
		err = h.parseDQT(data)
	case code == MarkerDRI:
		err = h.parseDRI(data)
	case code == MarkerDAC:
		h.Arithmetic = true
	case code == MarkerSOS:
		scan, err := h.parseSOS(data)
		return scan, err == nil, err
	case (code >= MarkerAPP0 && code <= MarkerAPP15) || code == MarkerCOM:
		h.parseApp(code, data)
	default:
		// DNL, DHP, EXP and reserved markers carry nothing we use
	}
	return nil, false, err
}

func readSegment(reader *bufio.Reader) ([]byte, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(reader, lenBytes[:]); err != nil {
		return nil, shortRead(err)
	}
	segmentLen := int(lenBytes[0])<<8 | int(lenBytes[1])
	if segmentLen < 2 {
		return nil, NewError(CodeUnsupportedJpeg, "segment too short")
	}
	data := make([]byte, segmentLen-2)
	if _, err := io.ReadFull(reader, data); err != nil {
		return nil, shortRead(err)
	}
	return data, nil
}

func shortRead(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrShortRead
	}
	return wrapError(CodeOsError, "reading header", err)
}

// decodeScans decodes the first scan and every scan after it until EOI
func decodeScans(reader *bufio.Reader, h *Header, scan *scanHeader, im *Image) error {
	br := NewBitReader(reader)
	for {
		d := &scanDecoder{h: h, scan: scan, br: br, stores: im.Stores}
		if err := d.decode(); err != nil {
			return err
		}
		if d.truncated {
			im.Truncated = true
		}

		// Parse segments until the next scan or the end of the image
		var next *scanHeader
		for next == nil {
			code, err := br.Finish()
			if err != nil {
				if errors.Is(err, io.EOF) {
					im.Truncated = true
					return nil
				}
				return wrapError(CodeOsError, "reading marker", err)
			}
			switch {
			case code == MarkerEOI:
				return nil
			case code >= MarkerRST0 && code <= MarkerRST7:
				// Stray restart marker after the scan
				continue
			case code >= MarkerSOF0 && code <= MarkerSOF15 && code != MarkerDHT && code != MarkerJPG && code != MarkerDAC:
				return NewError(CodeUnsupportedJpeg, "multiple SOF markers")
			}
			s, done, err := h.parseSegment(reader, code)
			if err != nil {
				return err
			}
			if h.Arithmetic {
				return NewError(CodeArithmeticCoding, "arithmetic coding not supported")
			}
			if done {
				next = s
			}
		}
		scan = next
	}
}

// scanDecoder decodes one scan into the component stores
type scanDecoder struct {
	h         *Header
	scan      *scanHeader
	br        *BitReader
	stores    []*Store
	dcPred    [MaxComponents]int32
	eobRun    int
	truncated bool
}

type blockDecodeFunc func(b *Block, sc *scanComponent) error

func (d *scanDecoder) decode() error {
	decodeBlock, err := d.blockDecoder()
	if err != nil {
		return err
	}
	if len(d.scan.components) == 1 {
		return d.decodeNonInterleaved(decodeBlock)
	}
	return d.decodeInterleaved(decodeBlock)
}

// blockDecoder selects the block decoding routine for the scan type and
// checks that the tables it needs are present
func (d *scanDecoder) blockDecoder() (blockDecodeFunc, error) {
	s := d.scan
	needDC := !d.h.Progressive() || (s.ss == 0 && s.ah == 0)
	needAC := !d.h.Progressive() || s.ss > 0
	for _, sc := range s.components {
		if needDC && d.h.DCTables[sc.dcTable] == nil {
			return nil, errorf(CodeUnsupportedJpeg, "missing DC Huffman table %d", sc.dcTable)
		}
		if needAC && d.h.ACTables[sc.acTable] == nil {
			return nil, errorf(CodeUnsupportedJpeg, "missing AC Huffman table %d", sc.acTable)
		}
	}

	switch {
	case !d.h.Progressive():
		return d.decodeSequential, nil
	case s.ss == 0 && s.ah == 0:
		return d.decodeDCFirst, nil
	case s.ss == 0:
		return d.decodeDCRefine, nil
	case s.ah == 0:
		return d.decodeACFirst, nil
	default:
		return d.decodeACRefine, nil
	}
}

// beginMCU handles restart intervals and starvation before each MCU. It
// reports false when the rest of the scan is missing.
func (d *scanDecoder) beginMCU(mcu int) (bool, error) {
	if d.br.Starved() {
		d.truncated = true
		return false, nil
	}
	if ri := d.h.RestartInterval; ri > 0 && mcu > 0 && mcu%ri == 0 {
		if err := d.br.Restart(); err != nil {
			return false, err
		}
		d.dcPred = [MaxComponents]int32{}
		d.eobRun = 0
	}
	return true, nil
}

func (d *scanDecoder) decodeNonInterleaved(decodeBlock blockDecodeFunc) error {
	sc := &d.scan.components[0]
	c := &d.h.Components[sc.index]
	store := d.stores[sc.index]
	mcu := 0
	for by := 0; by < c.BlocksHigh; by++ {
		rows, err := store.AccessRows(by, 1, true)
		if err != nil {
			return err
		}
		row := rows[0]
		for bx := 0; bx < c.BlocksWide; bx++ {
			ok, err := d.beginMCU(mcu)
			if err != nil || !ok {
				return err
			}
			if err := decodeBlock(&row[bx], sc); err != nil {
				return err
			}
			mcu++
		}
	}
	return nil
}

func (d *scanDecoder) decodeInterleaved(decodeBlock blockDecodeFunc) error {
	rows := make([][][]Block, len(d.scan.components))
	mcu := 0
	for my := 0; my < d.h.McusHigh; my++ {
		for i, sc := range d.scan.components {
			c := &d.h.Components[sc.index]
			r, err := d.stores[sc.index].AccessRows(my*c.V, c.V, true)
			if err != nil {
				return err
			}
			rows[i] = r
		}
		for mx := 0; mx < d.h.McusWide; mx++ {
			ok, err := d.beginMCU(mcu)
			if err != nil || !ok {
				return err
			}
			for i := range d.scan.components {
				sc := &d.scan.components[i]
				c := &d.h.Components[sc.index]
				for v := 0; v < c.V; v++ {
					for u := 0; u < c.H; u++ {
						if err := decodeBlock(&rows[i][v][mx*c.H+u], sc); err != nil {
							return err
						}
					}
				}
			}
			mcu++
		}
	}
	return nil
}

// readDCDiff reads one DC difference
func (d *scanDecoder) readDCDiff(sc *scanComponent) (int32, error) {
	s, err := nextSymbol(d.br, d.h.DCTables[sc.dcTable])
	if err != nil {
		return 0, err
	}
	if s > 15 {
		return 0, errorf(CodeStreamInconsistent, "DC difference category %d out of range", s)
	}
	bits, err := d.br.Read(uint32(s))
	if err != nil {
		return 0, err
	}
	return decodeVLI(s, bits), nil
}

func (d *scanDecoder) decodeSequential(b *Block, sc *scanComponent) error {
	*b = Block{}
	diff, err := d.readDCDiff(sc)
	if err != nil {
		return err
	}
	d.dcPred[sc.index] += diff
	b[0] = int16(d.dcPred[sc.index])

	ac := d.h.ACTables[sc.acTable]
	for k := 1; k < 64; k++ {
		sym, err := nextSymbol(d.br, ac)
		if err != nil {
			return err
		}
		r, s := int(sym>>4), sym&0x0F
		if s == 0 {
			if r != 15 {
				break
			}
			k += 15
			continue
		}
		k += r
		bits, err := d.br.Read(uint32(s))
		if err != nil {
			return err
		}
		b[ZigzagToNatural[min(k, len(ZigzagToNatural)-1)]] = int16(decodeVLI(s, bits))
	}
	return nil
}

func (d *scanDecoder) decodeDCFirst(b *Block, sc *scanComponent) error {
	diff, err := d.readDCDiff(sc)
	if err != nil {
		return err
	}
	d.dcPred[sc.index] += diff
	b[0] = int16(d.dcPred[sc.index] << d.scan.al)
	return nil
}

func (d *scanDecoder) decodeDCRefine(b *Block, _ *scanComponent) error {
	bit, err := d.br.Read(1)
	if err != nil {
		return err
	}
	if bit != 0 {
		b[0] |= 1 << d.scan.al
	}
	return nil
}

func (d *scanDecoder) decodeACFirst(b *Block, sc *scanComponent) error {
	if d.eobRun > 0 {
		d.eobRun--
		return nil
	}
	ac := d.h.ACTables[sc.acTable]
	for k := d.scan.ss; k <= d.scan.se; k++ {
		sym, err := nextSymbol(d.br, ac)
		if err != nil {
			return err
		}
		r, s := int(sym>>4), sym&0x0F
		if s == 0 {
			if r != 15 {
				run, err := d.readEOBRun(r)
				if err != nil {
					return err
				}
				d.eobRun = run - 1
				break
			}
			k += 15
			continue
		}
		k += r
		bits, err := d.br.Read(uint32(s))
		if err != nil {
			return err
		}
		b[ZigzagToNatural[min(k, len(ZigzagToNatural)-1)]] = int16(decodeVLI(s, bits) << d.scan.al)
	}
	return nil
}

// readEOBRun reads the extra bits of an EOBn symbol
func (d *scanDecoder) readEOBRun(r int) (int, error) {
	run := 1 << r
	if r > 0 {
		extra, err := d.br.Read(uint32(r))
		if err != nil {
			return 0, err
		}
		run += int(extra)
	}
	return run, nil
}

func (d *scanDecoder) decodeACRefine(b *Block, sc *scanComponent) error {
	p1 := int16(1) << d.scan.al
	m1 := int16(-1) << d.scan.al
	se := d.scan.se
	k := d.scan.ss

	// refine adds a correction bit to a coefficient with history
	refine := func(pos uint8) error {
		bit, err := d.br.Read(1)
		if err != nil {
			return err
		}
		if bit != 0 && b[pos]&p1 == 0 {
			if b[pos] >= 0 {
				b[pos] += p1
			} else {
				b[pos] += m1
			}
		}
		return nil
	}

	if d.eobRun == 0 {
		ac := d.h.ACTables[sc.acTable]
		for ; k <= se; k++ {
			sym, err := nextSymbol(d.br, ac)
			if err != nil {
				return err
			}
			r, s := int(sym>>4), int(sym&0x0F)
			var v int16
			if s != 0 {
				if s != 1 {
					return errorf(CodeStreamInconsistent, "AC refinement coefficient size %d", s)
				}
				bit, err := d.br.Read(1)
				if err != nil {
					return err
				}
				if bit != 0 {
					v = p1
				} else {
					v = m1
				}
			} else if r != 15 {
				run, err := d.readEOBRun(r)
				if err != nil {
					return err
				}
				d.eobRun = run
				break
			}

			// Skip r zero-history coefficients, refining those with history
			for ; k <= se; k++ {
				pos := ZigzagToNatural[k]
				if b[pos] != 0 {
					if err := refine(pos); err != nil {
						return err
					}
				} else {
					if r == 0 {
						break
					}
					r--
				}
			}
			if v != 0 && k <= se {
				b[ZigzagToNatural[k]] = v
			}
		}
	}

	if d.eobRun > 0 {
		for ; k <= se; k++ {
			pos := ZigzagToNatural[k]
			if b[pos] != 0 {
				if err := refine(pos); err != nil {
					return err
				}
			}
		}
		d.eobRun--
	}
	return nil
}
