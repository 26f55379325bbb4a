package jcanvas

import "fmt"

// Cell binds one 8x8 luma block of the destination to the block of a source
// image it is filled from. X and Y are in 8x8 luma block units of the source.
type Cell struct {
	Source      int
	X, Y        int
	Initialized bool
}

// Index2D addresses a cell of a Grid. It can only be obtained from
// Grid.index, which checks bounds.
type Index2D struct {
	x, y int
	i    int
}

// X returns the column of the cell
func (p Index2D) X() int { return p.x }

// Y returns the row of the cell
func (p Index2D) Y() int { return p.y }

// Grid is a dense table of cells covering the destination's data area at
// 8x8 luma block granularity.
type Grid struct {
	width, height int
	cells         []Cell
}

func newGrid(width, height int) *Grid {
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
}

// Width returns the grid width in blocks
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in blocks
func (g *Grid) Height() int { return g.height }

// index returns the address of cell (x, y). An out of range address is a
// programming error and panics.
func (g *Grid) index(x, y int) Index2D {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		panic(fmt.Sprintf("jcanvas: cell (%d,%d) outside %dx%d grid", x, y, g.width, g.height))
	}
	return Index2D{x: x, y: y, i: y*g.width + x}
}

func (g *Grid) at(p Index2D) *Cell {
	return &g.cells[p.i]
}

// Cell returns a copy of the cell at (x, y)
func (g *Grid) Cell(x, y int) Cell {
	return *g.at(g.index(x, y))
}

// snapshot returns a copy of every cell in row-major order
func (g *Grid) snapshot() []Cell {
	return append([]Cell(nil), g.cells...)
}

// firstUninitialized returns the first cell in row-major order that was
// never drawn
func (g *Grid) firstUninitialized() (Index2D, bool) {
	for i := range g.cells {
		if !g.cells[i].Initialized {
			return g.index(i%g.width, i/g.width), true
		}
	}
	return Index2D{}, false
}

// fill binds the w×h cells at (dx, dy) to the blocks of source src at
// (sx, sy). All values are in blocks.
func (g *Grid) fill(src, dx, dy, sx, sy, w, h int) {
	for off := 0; off < h; off++ {
		for x := 0; x < w; x++ {
			*g.at(g.index(dx+x, dy+off)) = Cell{
				Source:      src,
				X:           sx + x,
				Y:           sy + off,
				Initialized: true,
			}
		}
	}
}

// copyWithin rebinds the w×h cells at (dx, dy) to the bindings of the cells
// at (sx, sy). The source rectangle is captured before any cell is written,
// so overlapping rectangles behave like a copy through a temporary.
func (g *Grid) copyWithin(dx, dy, sx, sy, w, h int) {
	tmp := make([]Cell, 0, w*h)
	for off := 0; off < h; off++ {
		for x := 0; x < w; x++ {
			tmp = append(tmp, *g.at(g.index(sx+x, sy+off)))
		}
	}
	for off := 0; off < h; off++ {
		for x := 0; x < w; x++ {
			*g.at(g.index(dx+x, dy+off)) = tmp[off*w+x]
		}
	}
}
