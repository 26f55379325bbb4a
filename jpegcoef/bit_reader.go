package jpegcoef

import (
	"bufio"
	"io"
)

// BitReader reads a JPEG Huffman-encoded bitstream, handling 0xFF escape
// codes. It consumes the shared header reader byte by byte so that the marker
// ending a scan is never read past; once a marker is seen it is held as
// pending and the register is fed zero bits.
type BitReader struct {
	inner    *bufio.Reader
	bits     uint64
	bitsLeft uint32
	cpos     uint32 // restart counter position
	marker   byte   // pending marker found inside entropy-coded data
	eof      bool
	fake     uint32 // zero bits fed after the data ran out
}

// NewBitReader creates a new BitReader
func NewBitReader(reader *bufio.Reader) *BitReader {
	return &BitReader{inner: reader}
}

// Read reads the specified number of bits from the stream
func (r *BitReader) Read(bitsToRead uint32) (uint16, error) {
	if bitsToRead == 0 {
		return 0, nil
	}
	if r.bitsLeft < bitsToRead {
		if err := r.fill(bitsToRead); err != nil {
			return 0, err
		}
	}
	retval := uint16((r.bits >> (r.bitsLeft - bitsToRead)) & (1<<bitsToRead - 1))
	r.bitsLeft -= bitsToRead
	return retval, nil
}

// peek8 returns the next 8 bits without consuming them. fill(8) must have
// succeeded first.
func (r *BitReader) peek8() uint8 {
	return uint8(r.bits >> (r.bitsLeft - 8))
}

// skip consumes bits already in the register
func (r *BitReader) skip(bits uint32) {
	r.bitsLeft -= bits
}

// fill reads more bytes into the bit register
func (r *BitReader) fill(bitsToRead uint32) error {
	for r.bitsLeft < bitsToRead {
		if r.marker != 0 || r.eof {
			// In case of a truncated scan, treat the rest as zeros
			r.bits <<= 8
			r.bitsLeft += 8
			r.fake += 8
			continue
		}

		b, err := r.inner.ReadByte()
		if err != nil {
			if err == io.EOF {
				r.eof = true
				continue
			}
			return wrapError(CodeOsError, "reading scan data", err)
		}

		// 0xff is an escape code
		if b == 0xff {
			next, err := r.inner.ReadByte()
			for err == nil && next == 0xff {
				next, err = r.inner.ReadByte()
			}
			if err != nil {
				if err == io.EOF {
					r.eof = true
					continue
				}
				return wrapError(CodeOsError, "reading scan data", err)
			}
			if next != 0 {
				r.marker = next
				continue
			}
		}
		r.bits = r.bits<<8 | uint64(b)
		r.bitsLeft += 8
	}
	return nil
}

// IsEOF returns true if the stream ended inside entropy-coded data
func (r *BitReader) IsEOF() bool {
	return r.eof
}

// Starved reports whether decoding has consumed zero bits fed in place of
// missing data. Filling ahead of need does not count.
func (r *BitReader) Starved() bool {
	return r.fake > r.bitsLeft
}

func (r *BitReader) resetRegister() {
	r.bits = 0
	r.bitsLeft = 0
	r.fake = 0
}

// Restart discards the remaining bits of the interval and consumes the
// restart marker that must follow it.
func (r *BitReader) Restart() error {
	r.resetRegister()
	if r.eof {
		return nil
	}

	m := r.marker
	if m == 0 {
		var err error
		m, err = nextMarker(r.inner)
		if err != nil {
			if err == io.EOF {
				r.eof = true
				return nil
			}
			return err
		}
	}

	expected := byte(MarkerRST0) + byte(r.cpos&7)
	if m >= MarkerRST0 && m <= MarkerRST7 {
		if m != expected {
			return errorf(CodeInvalidResetCode,
				"invalid reset code ff %02x found in stream (expected ff %02x)", m, expected)
		}
		r.marker = 0
		r.cpos++
		return nil
	}

	// Any other marker means the interval was cut short; keep it for the
	// scan loop and decode the rest as zeros.
	r.marker = m
	return nil
}

// Finish ends the scan and returns the marker that follows it
func (r *BitReader) Finish() (byte, error) {
	r.resetRegister()
	r.cpos = 0
	if r.marker != 0 {
		m := r.marker
		r.marker = 0
		return m, nil
	}
	if r.eof {
		return 0, io.EOF
	}
	return nextMarker(r.inner)
}

// nextMarker skips to the next marker and returns its code, skipping any
// extraneous bytes and 0xff fill bytes before it.
func nextMarker(reader *bufio.Reader) (byte, error) {
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0xff {
			continue
		}
		for b == 0xff {
			b, err = reader.ReadByte()
			if err != nil {
				return 0, err
			}
		}
		if b != 0 {
			return b, nil
		}
	}
}
