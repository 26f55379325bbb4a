package jtools

import (
	"fmt"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// CompareCoefficients returns an error describing the first block that
// differs between a and b. Only blocks inside the image area are compared;
// padding blocks may legitimately differ after a progressive re-encode.
func CompareCoefficients(a, b *jpegcoef.Image) error {
	ha, hb := a.Header, b.Header
	if ha.Width != hb.Width || ha.Height != hb.Height {
		return fmt.Errorf("size %dx%d != %dx%d", ha.Width, ha.Height, hb.Width, hb.Height)
	}
	if len(ha.Components) != len(hb.Components) {
		return fmt.Errorf("%d components != %d", len(ha.Components), len(hb.Components))
	}
	for ci, c := range ha.Components {
		for y := 0; y < c.BlocksHigh; y++ {
			ra, err := a.Stores[ci].AccessRows(y, 1, false)
			if err != nil {
				return err
			}
			rb, err := b.Stores[ci].AccessRows(y, 1, false)
			if err != nil {
				return err
			}
			for x := 0; x < c.BlocksWide; x++ {
				if ra[0][x] != rb[0][x] {
					return fmt.Errorf("component %d block (%d,%d) differs", ci, x, y)
				}
			}
		}
	}
	return nil
}
