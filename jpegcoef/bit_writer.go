package jpegcoef

import "io"

// BitWriter writes bits to a byte buffer with JPEG-style FF escaping
type BitWriter struct {
	dataBuffer   []byte
	fillRegister uint64
	currentBit   uint32
}

// NewBitWriter creates a new BitWriter with the given initial buffer
func NewBitWriter(initialCapacity int) *BitWriter {
	return &BitWriter{
		dataBuffer: make([]byte, 0, initialCapacity),
		currentBit: 64,
	}
}

// Write writes the given value using the specified number of bits. Bits of
// val above numBits must be zero.
func (w *BitWriter) Write(val uint32, numBits uint32) {
	if numBits == 0 {
		return
	}

	// Check if everything fits in the current register
	if numBits <= w.currentBit {
		w.fillRegister |= uint64(val) << (w.currentBit - numBits)
		w.currentBit -= numBits
		return
	}

	// Fill up the register to 64 bits and flush
	fill := w.fillRegister | uint64(val)>>(numBits-w.currentBit)
	leftoverNewBits := numBits - w.currentBit
	leftoverVal := uint64(val) & (1<<leftoverNewBits - 1)

	w.writeFFEncoded(fill)

	w.fillRegister = leftoverVal << (64 - leftoverNewBits)
	w.currentBit = 64 - leftoverNewBits
}

// writeFFEncoded writes 8 bytes, escaping any 0xFF bytes
func (w *BitWriter) writeFFEncoded(fill uint64) {
	for i := 0; i < 8; i++ {
		b := byte(fill >> (56 - (i * 8)))
		w.dataBuffer = append(w.dataBuffer, b)
		if b == 0xFF {
			w.dataBuffer = append(w.dataBuffer, 0x00)
		}
	}
}

// Pad pads to the next byte boundary with one bits and flushes whole bytes
func (w *BitWriter) Pad() {
	if rem := w.currentBit & 7; rem != 0 {
		w.Write(1<<rem-1, rem)
	}
	w.flushWholeBytes()
}

// WriteMarker writes an unescaped two-byte marker. The writer must be byte
// aligned.
func (w *BitWriter) WriteMarker(code byte) {
	w.flushWholeBytes()
	w.dataBuffer = append(w.dataBuffer, 0xFF, code)
}

// flushWholeBytes flushes complete bytes from the register to the buffer
func (w *BitWriter) flushWholeBytes() {
	for w.currentBit <= 56 {
		b := byte(w.fillRegister >> 56)
		w.dataBuffer = append(w.dataBuffer, b)
		if b == 0xFF {
			w.dataBuffer = append(w.dataBuffer, 0x00)
		}
		w.fillRegister <<= 8
		w.currentBit += 8
	}
}

// FlushTo writes the complete bytes buffered so far to out. Bits that do
// not yet form a whole byte stay in the register.
func (w *BitWriter) FlushTo(out io.Writer) error {
	if len(w.dataBuffer) == 0 {
		return nil
	}
	_, err := out.Write(w.dataBuffer)
	w.dataBuffer = w.dataBuffer[:0]
	return err
}

// HasNoRemainder returns true if there are no bits waiting to be written
func (w *BitWriter) HasNoRemainder() bool {
	return w.currentBit == 64
}

// Len returns the current length of the buffer
func (w *BitWriter) Len() int {
	return len(w.dataBuffer)
}
