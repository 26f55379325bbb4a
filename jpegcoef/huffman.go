package jpegcoef

// HuffmanTable represents a Huffman table for encoding/decoding
type HuffmanTable struct {
	// Counts is the count of codes for each bit length (1-16)
	Counts [17]uint8

	// Symbols are the symbols in order of code length
	Symbols []uint8

	// lookup provides fast symbol lookup for codes up to 8 bits:
	// symbol | length<<8, or -1 when the code is longer
	lookup [256]int16

	// maxCode contains the maximum code for each bit length
	maxCode [18]int32

	// valPtr contains value pointers for each bit length
	valPtr [17]int32
}

// NewHuffmanTable builds a table from DHT-style counts and symbols
func NewHuffmanTable(counts [17]uint8, symbols []uint8) (*HuffmanTable, error) {
	h := &HuffmanTable{Counts: counts, Symbols: append([]uint8(nil), symbols...)}
	if err := h.buildDerived(); err != nil {
		return nil, err
	}
	return h, nil
}

func mustHuffmanTable(counts [16]uint8, symbols []uint8) *HuffmanTable {
	var c [17]uint8
	copy(c[1:], counts[:])
	h, err := NewHuffmanTable(c, symbols)
	if err != nil {
		panic(err)
	}
	return h
}

// buildDerived builds derived lookup tables for fast decoding
func (h *HuffmanTable) buildDerived() error {
	total := 0
	for i := 1; i <= 16; i++ {
		total += int(h.Counts[i])
	}
	if total > 256 || total != len(h.Symbols) {
		return errorf(CodeUnsupportedJpeg, "bad Huffman table: %d codes for %d symbols", total, len(h.Symbols))
	}

	for i := range h.lookup {
		h.lookup[i] = -1
	}

	code := 0
	symbolIdx := 0
	for bits := 1; bits <= 16; bits++ {
		n := int(h.Counts[bits])
		if n > 0 && code+n > 1<<bits {
			return errorf(CodeUnsupportedJpeg, "bad Huffman table: too many codes of length %d", bits)
		}
		h.valPtr[bits] = int32(symbolIdx) - int32(code)
		if n > 0 {
			h.maxCode[bits] = int32(code + n - 1)
		} else {
			h.maxCode[bits] = -1
		}
		for i := 0; i < n; i++ {
			if bits <= 8 {
				shift := 8 - bits
				base := code << shift
				for j := 0; j < 1<<shift; j++ {
					h.lookup[base+j] = int16(h.Symbols[symbolIdx]) | int16(bits<<8)
				}
			}
			code++
			symbolIdx++
		}
		code <<= 1
	}
	h.maxCode[17] = 0x7FFFFFFF
	return nil
}

// appendDHT appends one table definition (without marker and length) to dst
func (h *HuffmanTable) appendDHT(dst []byte, class, slot int) []byte {
	dst = append(dst, byte(class<<4|slot))
	dst = append(dst, h.Counts[1:]...)
	return append(dst, h.Symbols...)
}

// nextSymbol reads the next Huffman-coded symbol
func nextSymbol(br *BitReader, table *HuffmanTable) (uint8, error) {
	if err := br.fill(8); err != nil {
		return 0, err
	}
	peek := br.peek8()
	if lookup := table.lookup[peek]; lookup >= 0 {
		br.skip(uint32(lookup >> 8))
		return uint8(lookup & 0xFF), nil
	}

	// Slow path - read bit by bit
	code := int32(0)
	for bits := 1; bits <= 16; bits++ {
		bit, err := br.Read(1)
		if err != nil {
			return 0, err
		}
		code = code<<1 | int32(bit)
		if code <= table.maxCode[bits] {
			return table.Symbols[table.valPtr[bits]+code], nil
		}
	}
	return 0, NewError(CodeStreamInconsistent, "invalid Huffman code")
}

// decodeVLI decodes a variable length integer
func decodeVLI(size uint8, bits uint16) int32 {
	if size == 0 {
		return 0
	}
	// If MSB is 0, value is negative
	if bits < 1<<(size-1) {
		return int32(bits) - int32(1<<size) + 1
	}
	return int32(bits)
}

// encodeTable contains precomputed codes and lengths for encoding
type encodeTable struct {
	codes   [256]uint16
	lengths [256]uint8
}

// newEncodeTable builds a Huffman encoding table from a decode table
func newEncodeTable(t *HuffmanTable) *encodeTable {
	enc := &encodeTable{}
	code := uint16(0)
	symbolIdx := 0
	for bits := 1; bits <= 16; bits++ {
		for i := 0; i < int(t.Counts[bits]); i++ {
			symbol := t.Symbols[symbolIdx]
			enc.codes[symbol] = code
			enc.lengths[symbol] = uint8(bits)
			code++
			symbolIdx++
		}
		code <<= 1
	}
	return enc
}

// Standard tables from ITU-T T.81 Annex K.3
var (
	StdDCLuminance = mustHuffmanTable(
		[16]uint8{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0},
		[]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	)
	StdDCChrominance = mustHuffmanTable(
		[16]uint8{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0},
		[]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	)
	StdACLuminance = mustHuffmanTable(
		[16]uint8{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 125},
		[]uint8{
			0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
			0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
			0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
			0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
			0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
			0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
			0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
			0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
			0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
			0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
			0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
			0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
			0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
			0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
			0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
			0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
			0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
			0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
			0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
			0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	)
	StdACChrominance = mustHuffmanTable(
		[16]uint8{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 119},
		[]uint8{
			0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
			0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
			0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
			0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
			0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
			0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
			0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
			0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
			0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
			0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
			0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
			0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
			0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
			0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
			0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
			0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
			0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
			0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
			0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
			0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	)
)

// symbolFrequencies counts symbol usage for one table during a statistics
// pass. Index 256 is reserved.
type symbolFrequencies [257]int64

// optimalTable generates a code-length-limited Huffman table for the observed
// frequencies, following ITU-T T.81 Annex K.2.
func optimalTable(counts *symbolFrequencies) *HuffmanTable {
	// 257 leaves give a tree at most 256 deep
	const maxCodeLen = 256
	var (
		freq     = *counts
		bits     [maxCodeLen + 1]int
		codesize [257]int
		others   [257]int
	)
	for i := range others {
		others[i] = -1
	}
	used := false
	for _, f := range freq[:256] {
		if f != 0 {
			used = true
			break
		}
	}
	if !used {
		freq[0] = 1
	}
	// The reserved symbol guarantees no real code is all ones.
	freq[256] = 1

	for {
		// c1 is the least frequent nonzero symbol, c2 the next least.
		// Ties go to the larger symbol value.
		c1, c2 := -1, -1
		var v int64 = 1 << 62
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v {
				v = freq[i]
				c1 = i
			}
		}
		v = 1 << 62
		for i := 0; i <= 256; i++ {
			if freq[i] != 0 && freq[i] <= v && i != c1 {
				v = freq[i]
				c2 = i
			}
		}
		if c2 < 0 {
			break
		}

		freq[c1] += freq[c2]
		freq[c2] = 0

		codesize[c1]++
		for others[c1] >= 0 {
			c1 = others[c1]
			codesize[c1]++
		}
		others[c1] = c2

		codesize[c2]++
		for others[c2] >= 0 {
			c2 = others[c2]
			codesize[c2]++
		}
	}

	for i := 0; i <= 256; i++ {
		if codesize[i] > 0 {
			bits[codesize[i]]++
		}
	}

	// Limit code lengths to 16 bits by moving pairs of leaves up the tree.
	for i := maxCodeLen; i > 16; i-- {
		for bits[i] > 0 {
			j := i - 2
			for bits[j] == 0 {
				j--
			}
			bits[i] -= 2
			bits[i-1]++
			bits[j+1] += 2
			bits[j]--
		}
	}

	// Remove the reserved code from the longest length in use.
	i := 16
	for bits[i] == 0 {
		i--
	}
	bits[i]--

	var tableCounts [17]uint8
	for i := 1; i <= 16; i++ {
		tableCounts[i] = uint8(bits[i])
	}
	symbols := make([]uint8, 0, 256)
	for size := 1; size <= maxCodeLen; size++ {
		for sym := 0; sym <= 255; sym++ {
			if codesize[sym] == size {
				symbols = append(symbols, uint8(sym))
			}
		}
	}

	t, err := NewHuffmanTable(tableCounts, symbols)
	if err != nil {
		fatalf("generated Huffman table is invalid: %v", err)
	}
	return t
}
