package jpegcoef

// Component holds metadata about a JPEG color component
type Component struct {
	// ID is the component identifier from the frame header
	ID uint8

	// H is the horizontal sampling factor
	H int

	// V is the vertical sampling factor
	V int

	// QuantIndex is the quantization table slot
	QuantIndex int

	// BlocksWide is the block count horizontal (non-interleaved)
	BlocksWide int

	// BlocksHigh is the block count vertical (non-interleaved)
	BlocksHigh int

	// PaddedWide is the block count horizontal, padded to whole MCUs
	PaddedWide int

	// PaddedHigh is the block count vertical, padded to whole MCUs
	PaddedHigh int
}

// BlocksPerMCU returns the number of blocks the component contributes to an
// interleaved MCU
func (c *Component) BlocksPerMCU() int {
	return c.H * c.V
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func isPowerOfTwo(v int) bool {
	return v > 0 && v&(v-1) == 0
}
