package jpegcoef

import (
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/zstd"
)

type spillEntry struct {
	off int64
	n   int32
}

// spillFile stores compressed block rows in a temporary file. Rewritten rows
// are appended; the index always points at the latest copy.
type spillFile struct {
	f     *os.File
	index []spillEntry
	end   int64
	raw   []byte
	comp  []byte
}

func newSpillFile(dir string, rows, blocksWide int) (*spillFile, error) {
	f, err := os.CreateTemp(dir, "jpegcoef-*.spill")
	if err != nil {
		return nil, wrapError(CodeOsError, "creating spill file", err)
	}
	return &spillFile{
		f:     f,
		index: make([]spillEntry, rows),
		raw:   make([]byte, blocksWide*blockBytes),
	}, nil
}

func (sf *spillFile) writeRow(enc *zstd.Encoder, row int, blocks []Block) error {
	p := sf.raw[:0]
	for i := range blocks {
		for _, v := range blocks[i] {
			p = binary.LittleEndian.AppendUint16(p, uint16(v))
		}
	}
	sf.comp = enc.EncodeAll(p, sf.comp[:0])
	if _, err := sf.f.WriteAt(sf.comp, sf.end); err != nil {
		return wrapError(CodeOsError, "writing spill file", err)
	}
	sf.index[row] = spillEntry{off: sf.end, n: int32(len(sf.comp))}
	sf.end += int64(len(sf.comp))
	return nil
}

// readRow fills blocks with a row; rows never written read as zero
func (sf *spillFile) readRow(dec *zstd.Decoder, row int, blocks []Block) error {
	e := sf.index[row]
	if e.n == 0 {
		clear(blocks)
		return nil
	}
	if cap(sf.comp) < int(e.n) {
		sf.comp = make([]byte, e.n)
	}
	buf := sf.comp[:e.n]
	if _, err := sf.f.ReadAt(buf, e.off); err != nil {
		return wrapError(CodeOsError, "reading spill file", err)
	}
	raw, err := dec.DecodeAll(buf, sf.raw[:0])
	if err != nil {
		return wrapError(CodeOsError, "decompressing spilled row", err)
	}
	if len(raw) != len(blocks)*blockBytes {
		return errorf(CodeAssertionFailure, "spilled row %d has %d bytes, want %d", row, len(raw), len(blocks)*blockBytes)
	}
	for i := range blocks {
		for j := range blocks[i] {
			blocks[i][j] = int16(binary.LittleEndian.Uint16(raw[(i*64+j)*2:]))
		}
	}
	return nil
}

func (sf *spillFile) close() error {
	name := sf.f.Name()
	err := sf.f.Close()
	if rerr := os.Remove(name); err == nil {
		err = rerr
	}
	if err != nil {
		return wrapError(CodeOsError, "removing spill file", err)
	}
	return nil
}
