package jpegcoef

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
)

// Input is a JPEG source: either a file path or an in-memory buffer. Both
// kinds go through the same decode path.
type Input interface {
	// Open returns a reader over the whole JPEG stream
	Open() (io.ReadCloser, error)
	// String describes the input for error messages
	String() string
	isInput()
}

// PathInput reads a JPEG from a file
type PathInput string

// BytesInput reads a JPEG from memory
type BytesInput []byte

func (p PathInput) Open() (io.ReadCloser, error) {
	f, err := os.Open(string(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, wrapError(CodeFileNotFound, "opening "+string(p), err)
		}
		return nil, wrapError(CodeOsError, "opening "+string(p), err)
	}
	return f, nil
}

func (p PathInput) String() string {
	return string(p)
}

func (PathInput) isInput() {}

func (b BytesInput) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (b BytesInput) String() string {
	return "<memory>"
}

func (BytesInput) isInput() {}
