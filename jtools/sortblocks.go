package jtools

import (
	"io"
	"slices"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// SortBlocks writes a copy of in in which each component's blocks are
// sorted by their coefficients. Padding blocks outside the image stay zero.
func SortBlocks(in jpegcoef.Input, w io.Writer) error {
	mm := jpegcoef.NewMemoryManager(jpegcoef.MemoryConfigFromEnv())
	defer mm.Close()

	im, err := jpegcoef.Decode(in, mm)
	if err != nil {
		return err
	}
	defer im.Release()

	h := im.Header.Clone()
	stores := make([]*jpegcoef.Store, len(h.Components))
	for ci, c := range h.Components {
		dst := mm.NewStore(c.PaddedWide, c.PaddedHigh, c.V)
		defer dst.Release()
		stores[ci] = dst

		blocks, err := collectBlocks(im.Stores[ci], c.BlocksWide, c.BlocksHigh)
		if err != nil {
			return err
		}
		slices.SortFunc(blocks, func(a, b jpegcoef.Block) int {
			return a.Compare(&b)
		})
		for y := 0; y < c.BlocksHigh; y++ {
			row, err := dst.AccessRows(y, 1, true)
			if err != nil {
				return err
			}
			copy(row[0], blocks[y*c.BlocksWide:(y+1)*c.BlocksWide])
		}
	}
	return jpegcoef.Encode(w, h, stores, jpegcoef.EncodeOptions{Optimize: true})
}

func collectBlocks(s *jpegcoef.Store, wide, high int) ([]jpegcoef.Block, error) {
	blocks := make([]jpegcoef.Block, 0, wide*high)
	for y := 0; y < high; y++ {
		row, err := s.AccessRows(y, 1, false)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, row[0][:wide]...)
	}
	return blocks, nil
}
