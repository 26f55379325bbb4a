package jpegcoef

// Block holds the 64 quantized DCT coefficients of one 8x8 block in natural
// (row-major) order. Index 0 is the DC coefficient.
type Block [64]int16

// Zigzag returns the coefficient at zigzag index k
func (b *Block) Zigzag(k int) int16 {
	return b[ZigzagToNatural[k]]
}

// SetZigzag sets the coefficient at zigzag index k
func (b *Block) SetZigzag(k int, v int16) {
	b[ZigzagToNatural[k]] = v
}

// ToZigzag returns a copy of the block in zigzag order
func (b *Block) ToZigzag() [64]int16 {
	var out [64]int16
	for k := 0; k < 64; k++ {
		out[k] = b[ZigzagToNatural[k]]
	}
	return out
}

// IsZero reports whether every coefficient is zero
func (b *Block) IsZero() bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Compare orders two blocks by their coefficients in natural order, returning
// -1, 0 or +1.
func (b *Block) Compare(o *Block) int {
	for i := range b {
		if b[i] != o[i] {
			if b[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
