package jcanvas

import (
	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// AddImage decodes the JPEG file at path and registers it as a source
func (c *Canvas) AddImage(path string) (int, error) {
	return c.Add(jpegcoef.PathInput(path))
}

// AddImageBytes decodes an in-memory JPEG and registers it as a source
func (c *Canvas) AddImageBytes(data []byte) (int, error) {
	return c.Add(jpegcoef.BytesInput(data))
}

// Add decodes in and registers it as a source, returning its id. Ids are
// assigned in add order starting at 0. The first image fixes the
// destination's encoding parameters; later images must be compatible with
// it. A failed add leaves the canvas as it was.
func (c *Canvas) Add(in jpegcoef.Input) (int, error) {
	const op = "add image"
	if err := c.checkState(op, StateCreated, StateComposing); err != nil {
		return -1, err
	}

	id := -1
	err := c.guard(op, func(cl *cleanups) error {
		im, err := jpegcoef.Decode(in, c.mm)
		if err != nil {
			return codecError(op, err)
		}
		src := &source{
			name:      in.String(),
			header:    im.Header,
			stores:    im.Stores,
			truncated: im.Truncated,
		}
		cl.add(src.release)

		if len(c.sources) > 0 {
			if r := checkCompatible(c.sources[0].header, src.header); r != ReasonNone {
				return incompatible(op, r)
			}
		} else if err := c.allocate(src.header, cl); err != nil {
			return err
		}

		if src.truncated {
			c.logf("%s: warning: image data is truncated", src.name)
		}
		c.sources = append(c.sources, src)
		c.state = StateComposing
		id = len(c.sources) - 1
		return nil
	})
	if err != nil {
		c.logf("%s: rejected: %v", in, err)
		return -1, err
	}

	h := c.sources[id].header
	c.logf("added image %d: %s, %dx%d %v, %d components", id, in, h.Width, h.Height, h.ColorSpace, len(h.Components))
	return id, nil
}

// checkCompatible reports why blocks of img cannot be copied next to blocks
// of ref, or ReasonNone if they can
func checkCompatible(ref, img *jpegcoef.Header) Reason {
	if img.ColorSpace != ref.ColorSpace {
		return ReasonColorSpace
	}
	if len(img.Components) != len(ref.Components) {
		return ReasonComponentCount
	}
	if img.ColorSpace == jpegcoef.ColorUnknown {
		return ReasonUnknownColorSpace
	}

	for i := range ref.Components {
		c0 := &ref.Components[i]
		cx := &img.Components[i]
		if c0.H != cx.H || c0.V != cx.V {
			return ReasonSampling
		}
		if c0.QuantIndex != cx.QuantIndex {
			return ReasonQuantIndex
		}
		if ref.QuantTables[c0.QuantIndex].Values != img.QuantTables[c0.QuantIndex].Values {
			return ReasonQuantValues
		}
	}
	return ReasonNone
}

// allocate sets up the destination from the first image: its header, one
// store per component and the block grid covering the data area
func (c *Canvas) allocate(first *jpegcoef.Header, cl *cleanups) error {
	w, h := c.opts.Width, c.opts.Height
	if w <= 0 {
		w = first.Width
	}
	if h <= 0 {
		h = first.Height
	}

	dst := first.Clone()
	dst.SetSize(w, h)

	stores := make([]*jpegcoef.Store, len(dst.Components))
	for i, comp := range dst.Components {
		st := c.mm.NewStore(comp.PaddedWide, comp.PaddedHigh, comp.V)
		cl.add(st.Release)
		stores[i] = st
	}

	dataW := dst.McusWide * dst.MCUWidth()
	dataH := dst.McusHigh * dst.MCUHeight()

	c.header = dst
	c.stores = stores
	c.grid = newGrid(dataW/jpegcoef.BlockSize, dataH/jpegcoef.BlockSize)
	if c.opts.CopyMarkers {
		c.markers = append([]jpegcoef.Marker(nil), first.Markers...)
	}
	c.logf("destination %dx%d, data area %dx%d, %d components", w, h, dataW, dataH, len(stores))
	return nil
}
