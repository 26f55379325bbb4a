package jtools

import (
	"fmt"
	"os"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// ResaveOptions selects how Resave rewrites an image
type ResaveOptions struct {
	// Grayscale keeps only the first component
	Grayscale bool

	Optimize    bool
	Progressive bool
}

// Resave rewrites the JPEG at in to out without touching its coefficients.
// The output is written to out+".tmp" and renamed over out when complete.
func Resave(in, out string, opts ResaveOptions) error {
	mm := jpegcoef.NewMemoryManager(jpegcoef.MemoryConfigFromEnv())
	defer mm.Close()

	im, err := jpegcoef.Decode(jpegcoef.PathInput(in), mm)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", in, err)
	}
	defer im.Release()

	h := im.Header.Clone()
	stores := im.Stores
	if opts.Grayscale {
		h, stores = grayscaleHeader(h), stores[:1]
	}

	return writeAtomic(out, func(f *os.File) error {
		return jpegcoef.Encode(f, h, stores, jpegcoef.EncodeOptions{
			Optimize:    opts.Optimize,
			Progressive: opts.Progressive,
		})
	})
}

// grayscaleHeader turns h into a single-component grayscale header. The luma
// store of the original image covers the new geometry.
func grayscaleHeader(h *jpegcoef.Header) *jpegcoef.Header {
	luma := h.Components[0]
	luma.H, luma.V = 1, 1
	h.Components = []jpegcoef.Component{luma}
	h.ColorSpace = jpegcoef.ColorGray
	h.Adobe = nil
	h.SetSize(h.Width, h.Height)
	return h
}

// writeAtomic calls write with path+".tmp" and renames it over path on
// success. The temporary file is removed on failure.
func writeAtomic(path string, write func(f *os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming %s: %w", tmp, err)
	}
	return nil
}
