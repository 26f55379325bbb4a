// Package jcanvas assembles a new JPEG by copying 8x8 coefficient blocks from
// one or more source JPEGs, without decoding to pixels. All sources must share
// color space, sampling factors and quantization tables, so blocks can be
// copied verbatim.
//
// A Canvas is used in three steps: add sources with AddImage, bind regions of
// the destination to regions of the sources with Draw, then write the result
// with Finalize or SaveFile. A Canvas is not safe for concurrent use.
package jcanvas

import (
	"fmt"
	"log"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// State is the lifecycle stage of a Canvas
type State int

const (
	// StateCreated means no image has been added yet
	StateCreated State = iota
	// StateComposing means the destination is allocated and accepts draws
	StateComposing
	// StateFinalized means the output was written
	StateFinalized
	// StateFailed means Finalize failed; the canvas is unusable
	StateFailed
	// StateClosed means the canvas was abandoned with Close
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateComposing:
		return "composing"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures a Canvas. The zero value infers the destination size
// from the first image and takes memory limits from the environment.
type Options struct {
	// Width and Height fix the destination size in pixels. Zero or -1
	// takes the size of the first image added.
	Width, Height int

	// MaxMemory bounds resident coefficient memory in bytes; stores beyond
	// it spill to TempDir. Zero defers to JPEGTOOLS_MAX_MEMORY.
	MaxMemory int64
	TempDir   string

	// CopyMarkers carries the APPn and COM segments of the first image
	// into the output.
	CopyMarkers bool

	// Optimize and Progressive select the output entropy coding
	Optimize    bool
	Progressive bool

	// Logger receives progress messages; nil discards them
	Logger *log.Logger
}

// source is one decoded image in the registry
type source struct {
	name      string
	header    *jpegcoef.Header
	stores    []*jpegcoef.Store
	truncated bool
}

func (s *source) release() error {
	var firstErr error
	for _, st := range s.stores {
		if err := st.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Canvas is a composition session
type Canvas struct {
	opts  Options
	state State
	mm    *jpegcoef.MemoryManager

	sources []*source

	// destination, allocated by the first successful add
	header  *jpegcoef.Header
	stores  []*jpegcoef.Store
	markers []jpegcoef.Marker
	grid    *Grid

	released bool
}

// New creates an empty canvas
func New(opts Options) (*Canvas, error) {
	for _, v := range []int{opts.Width, opts.Height} {
		if v < -1 || v > 65535 {
			return nil, newError(KindGeometry, "new", "invalid destination size %dx%d", opts.Width, opts.Height)
		}
	}

	cfg := jpegcoef.MemoryConfigFromEnv()
	if opts.MaxMemory != 0 {
		cfg.MaxMemory = opts.MaxMemory
	}
	if opts.TempDir != "" {
		cfg.TempDir = opts.TempDir
	}
	return &Canvas{
		opts: opts,
		mm:   jpegcoef.NewMemoryManager(cfg),
	}, nil
}

// State returns the canvas' lifecycle stage
func (c *Canvas) State() State {
	return c.state
}

// NumImages returns the number of sources added
func (c *Canvas) NumImages() int {
	return len(c.sources)
}

// Grid returns the destination's block grid, or nil before the first image
// is added. It must not be modified.
func (c *Canvas) Grid() *Grid {
	return c.grid
}

// Close abandons the canvas and releases everything it holds. Closing a
// finalized or already closed canvas is a no-op.
func (c *Canvas) Close() error {
	if c.state == StateCreated || c.state == StateComposing {
		c.state = StateClosed
	}
	return c.release()
}

// release frees every store and the memory manager exactly once
func (c *Canvas) release() error {
	if c.released {
		return nil
	}
	c.released = true

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, s := range c.sources {
		keep(s.release())
	}
	for _, st := range c.stores {
		keep(st.Release())
	}
	keep(c.mm.Close())
	c.sources = nil
	c.stores = nil
	c.grid = nil
	return firstErr
}

func (c *Canvas) logf(format string, args ...any) {
	if c.opts.Logger != nil {
		c.opts.Logger.Printf(format, args...)
	}
}

func (c *Canvas) checkState(op string, allowed ...State) error {
	for _, s := range allowed {
		if c.state == s {
			return nil
		}
	}
	return newError(KindState, op, "not allowed on a %s canvas", c.state)
}
