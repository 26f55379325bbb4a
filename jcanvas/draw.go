package jcanvas

import "github.com/leijurv/jpegtools_go/jpegcoef"

// Self names the canvas itself as the source of a Draw
const Self = -2

// Info describes the geometry of a source or of the destination
type Info struct {
	// Width and Height are the image size in pixels
	Width, Height int

	// DataWidth and DataHeight are the size rounded up to whole blocks;
	// this is the area Draw may address
	DataWidth, DataHeight int

	// BlockWidth and BlockHeight are the alignment of Draw coordinates,
	// 8 times the largest sampling factor
	BlockWidth, BlockHeight int
}

func roundUp(v, to int) int {
	return (v + to - 1) / to * to
}

func headerInfo(h *jpegcoef.Header, width, height int) Info {
	in := Info{
		Width:       width,
		Height:      height,
		BlockWidth:  h.MCUWidth(),
		BlockHeight: h.MCUHeight(),
	}
	in.DataWidth = roundUp(width, in.BlockWidth)
	in.DataHeight = roundUp(height, in.BlockHeight)
	return in
}

// Info returns the geometry of source idx, or of the destination for Self
func (c *Canvas) Info(idx int) (Info, error) {
	const op = "info"
	if err := c.checkState(op, StateComposing); err != nil {
		return Info{}, err
	}
	return c.info(op, idx)
}

func (c *Canvas) info(op string, idx int) (Info, error) {
	if idx == Self {
		return headerInfo(c.header, c.header.Width, c.header.Height), nil
	}
	if idx < 0 || idx >= len(c.sources) {
		return Info{}, newError(KindGeometry, op, "unknown source %d", idx)
	}
	h := c.sources[idx].header
	return headerInfo(h, h.Width, h.Height), nil
}

// Draw binds the destination rectangle at (destX, destY) to the blocks of
// source src at (srcX, srcY). All values are in pixels and must be multiples
// of the block size given by Info. A width or height of -1 takes the largest
// size that fits both data areas. src may be Self to rearrange cells already
// drawn; the source rectangle is read in full before any cell is written.
// A rejected draw leaves the grid unchanged.
func (c *Canvas) Draw(src, destX, destY, srcX, srcY, width, height int) error {
	const op = "draw"
	if err := c.checkState(op, StateComposing); err != nil {
		return err
	}

	dst, err := c.info(op, Self)
	if err != nil {
		return err
	}
	si, err := c.info(op, src)
	if err != nil {
		return err
	}

	if destX < 0 || destY < 0 || srcX < 0 || srcY < 0 {
		return newError(KindGeometry, op, "negative offset (%d,%d) <- (%d,%d)", destX, destY, srcX, srcY)
	}
	if width == -1 {
		width = min(si.DataWidth-srcX, dst.DataWidth-destX)
	}
	if height == -1 {
		height = min(si.DataHeight-srcY, dst.DataHeight-destY)
	}
	if width <= 0 || height <= 0 {
		return newError(KindGeometry, op, "empty rectangle %dx%d", width, height)
	}
	if width > si.DataWidth-srcX || height > si.DataHeight-srcY {
		return newError(KindGeometry, op, "source rectangle %dx%d+%d+%d exceeds %dx%d data area",
			width, height, srcX, srcY, si.DataWidth, si.DataHeight)
	}
	if width > dst.DataWidth-destX || height > dst.DataHeight-destY {
		return newError(KindGeometry, op, "destination rectangle %dx%d+%d+%d exceeds %dx%d data area",
			width, height, destX, destY, dst.DataWidth, dst.DataHeight)
	}

	bw, bh := si.BlockWidth, si.BlockHeight
	if srcX%bw != 0 || width%bw != 0 || destX%dst.BlockWidth != 0 ||
		srcY%bh != 0 || height%bh != 0 || destY%dst.BlockHeight != 0 {
		return newError(KindGeometry, op, "rectangle %dx%d+%d+%d <- +%d+%d not aligned to %dx%d blocks",
			width, height, destX, destY, srcX, srcY, bw, bh)
	}

	const bs = jpegcoef.BlockSize
	if src == Self {
		c.grid.copyWithin(destX/bs, destY/bs, srcX/bs, srcY/bs, width/bs, height/bs)
	} else {
		c.grid.fill(src, destX/bs, destY/bs, srcX/bs, srcY/bs, width/bs, height/bs)
	}
	c.logf("draw %d: %dx%d+%d+%d <- +%d+%d", src, width, height, destX, destY, srcX, srcY)
	return nil
}
