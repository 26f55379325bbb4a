package jcanvas

import (
	"io"
	"math/bits"
	"os"
	"path/filepath"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// Finalize copies every bound block into the destination and writes the
// resulting JPEG to w. It can be called once; on success or failure it
// releases everything the canvas holds. If any cell of the data area was
// never drawn it fails with KindIncomplete before writing anything.
func (c *Canvas) Finalize(w io.Writer) error {
	const op = "finalize"
	if err := c.checkState(op, StateCreated, StateComposing); err != nil {
		return err
	}

	err := c.finalize(op, w)
	if rerr := c.release(); err == nil && rerr != nil {
		err = &Error{Kind: KindOutput, Op: op, Message: "releasing stores", Err: rerr}
	}
	if err != nil {
		c.state = StateFailed
		c.logf("%s: %v", op, err)
		return err
	}
	c.state = StateFinalized
	return nil
}

func (c *Canvas) finalize(op string, w io.Writer) error {
	if len(c.sources) == 0 {
		return newError(KindState, op, "no image added")
	}
	if p, ok := c.grid.firstUninitialized(); ok {
		return newError(KindIncomplete, op, "block at (%d,%d) was never drawn", p.X()*jpegcoef.BlockSize, p.Y()*jpegcoef.BlockSize)
	}

	return c.guard(op, func(*cleanups) error {
		if err := c.compose(); err != nil {
			return err
		}
		opts := jpegcoef.EncodeOptions{
			Optimize:    c.opts.Optimize,
			Progressive: c.opts.Progressive,
			Markers:     c.markers,
		}
		if err := jpegcoef.Encode(w, c.header, c.stores, opts); err != nil {
			return &Error{Kind: KindOutput, Op: op, Message: "encoding output", Err: err}
		}
		c.logf("%s: wrote %dx%d from %d images", op, c.header.Width, c.header.Height, len(c.sources))
		return nil
	})
}

// compose copies the block bound to each destination position. For a
// subsampled component one block covers several grid cells; the top-left
// cell decides where it comes from.
func (c *Canvas) compose() error {
	h := c.header
	g := c.grid
	for ci, comp := range h.Components {
		stepX := h.MaxH / comp.H
		stepY := h.MaxV / comp.V
		shiftX := bits.TrailingZeros(uint(stepX))
		shiftY := bits.TrailingZeros(uint(stepY))
		dst := c.stores[ci]

		for dy := 0; dy < g.Height(); dy += stepY {
			row, err := dst.AccessRows(dy>>shiftY, 1, true)
			if err != nil {
				return &Error{Kind: KindOutput, Op: "finalize", Message: "accessing destination", Err: err}
			}
			for dx := 0; dx < g.Width(); dx += stepX {
				cell := g.at(g.index(dx, dy))
				src := c.sources[cell.Source]
				srow, err := src.stores[ci].AccessRows(cell.Y>>shiftY, 1, false)
				if err != nil {
					return &Error{Kind: KindOutput, Op: "finalize", Message: "reading " + src.name, Err: err}
				}
				row[0][dx>>shiftX] = srow[0][cell.X>>shiftX]
			}
		}
	}
	return nil
}

// SaveFile finalizes into a temporary file next to path and renames it over
// path once the output is complete.
func (c *Canvas) SaveFile(path string) error {
	const op = "save"
	if err := c.checkState(op, StateCreated, StateComposing); err != nil {
		return err
	}

	fail := func(msg string, err error) error {
		c.release()
		c.state = StateFailed
		ferr := &Error{Kind: KindOutput, Op: op, Message: msg, Err: err}
		c.logf("%s: %v", op, ferr)
		return ferr
	}

	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fail("creating output", err)
	}
	tmp := f.Name()
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		os.Remove(tmp)
		return fail("creating output", err)
	}

	if err := c.Finalize(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fail("closing output", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fail("renaming output to "+path, err)
	}
	return nil
}
