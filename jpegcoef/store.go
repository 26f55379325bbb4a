package jpegcoef

import (
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// blockBytes is the in-memory size of one Block
const blockBytes = 64 * 2

// MemoryConfig bounds the memory used by coefficient stores
type MemoryConfig struct {
	// MaxMemory is the budget in bytes for resident coefficient rows.
	// Zero means unlimited.
	MaxMemory int64

	// TempDir holds spill files; empty means os.TempDir()
	TempDir string
}

// MemoryConfigFromEnv reads JPEGTOOLS_MAX_MEMORY (bytes, with an optional
// k, m or g suffix) and JPEGTOOLS_TMPDIR.
func MemoryConfigFromEnv() MemoryConfig {
	cfg := MemoryConfig{TempDir: os.Getenv("JPEGTOOLS_TMPDIR")}
	if v := os.Getenv("JPEGTOOLS_MAX_MEMORY"); v != "" {
		if n, err := ParseMemorySize(v); err == nil {
			cfg.MaxMemory = n
		}
	}
	return cfg
}

// ParseMemorySize parses sizes such as "512k", "64m" or "2g"
func ParseMemorySize(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "k"):
		mult = 1 << 10
	case strings.HasSuffix(s, "m"):
		mult = 1 << 20
	case strings.HasSuffix(s, "g"):
		mult = 1 << 30
	}
	if mult != 1 {
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, errorf(CodeSyntaxError, "invalid memory size %q", s)
	}
	return n * mult, nil
}

// MemoryManager allocates coefficient stores against a shared memory budget.
// Stores that do not fit keep a small window of rows in memory and spill the
// rest to a temporary file, each row compressed with zstd. A MemoryManager is
// not safe for concurrent use.
type MemoryManager struct {
	cfg  MemoryConfig
	used int64
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewMemoryManager creates a MemoryManager with the given budget
func NewMemoryManager(cfg MemoryConfig) *MemoryManager {
	return &MemoryManager{cfg: cfg}
}

// InUse returns the bytes currently held by resident rows
func (m *MemoryManager) InUse() int64 {
	return m.used
}

// Close releases the zstd encoder and decoder. Stores must be released first.
func (m *MemoryManager) Close() error {
	if m.enc != nil {
		err := m.enc.Close()
		m.enc = nil
		if err != nil {
			return wrapError(CodeOsError, "closing zstd encoder", err)
		}
	}
	if m.dec != nil {
		m.dec.Close()
		m.dec = nil
	}
	return nil
}

func (m *MemoryManager) encoder() (*zstd.Encoder, error) {
	if m.enc == nil {
		enc, err := zstd.NewWriter(
			nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithLowerEncoderMem(true),
		)
		if err != nil {
			return nil, wrapError(CodeOsError, "creating zstd encoder", err)
		}
		m.enc = enc
	}
	return m.enc, nil
}

func (m *MemoryManager) decoder() (*zstd.Decoder, error) {
	if m.dec == nil {
		dec, err := zstd.NewReader(
			nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderLowmem(true),
		)
		if err != nil {
			return nil, wrapError(CodeOsError, "creating zstd decoder", err)
		}
		m.dec = dec
	}
	return m.dec, nil
}

// NewStore allocates a zeroed store of rows × blocksWide blocks. maxAccess is
// the most rows a single AccessRows call may request.
func (m *MemoryManager) NewStore(blocksWide, rows, maxAccess int) *Store {
	if blocksWide <= 0 || rows <= 0 || maxAccess <= 0 {
		fatalf("invalid store geometry %dx%d (maxAccess %d)", blocksWide, rows, maxAccess)
	}
	maxAccess = min(maxAccess, rows)
	s := &Store{mm: m, blocksWide: blocksWide, rows: rows, maxAccess: maxAccess}

	rowBytes := int64(blocksWide) * blockBytes
	full := rowBytes * int64(rows)
	if m.cfg.MaxMemory == 0 || m.used+full <= m.cfg.MaxMemory {
		s.winRows = rows
	} else {
		// Window as many rows as the remaining budget allows, but never
		// fewer than one access.
		avail := (m.cfg.MaxMemory - m.used) / rowBytes
		s.winRows = int(max(int64(maxAccess), min(avail, int64(rows))))
		s.winStart = -1
	}
	s.blocks = make([]Block, s.winRows*blocksWide)
	s.held = int64(s.winRows) * rowBytes
	m.used += s.held
	return s
}

// Store holds the coefficient blocks of one component as rows of blocks.
type Store struct {
	mm         *MemoryManager
	blocksWide int
	rows       int
	maxAccess  int
	held       int64

	// blocks holds every row when resident, otherwise a window of winRows
	// rows starting at winStart (-1 when nothing is loaded)
	blocks   []Block
	winStart int
	winRows  int
	dirty    bool

	spill    *spillFile
	released bool
}

// BlocksWide returns the number of blocks in each row
func (s *Store) BlocksWide() int {
	return s.blocksWide
}

// Rows returns the number of block rows
func (s *Store) Rows() int {
	return s.rows
}

// MaxAccess returns the most rows one AccessRows call may request
func (s *Store) MaxAccess() int {
	return s.maxAccess
}

// Spilled reports whether the store keeps only a window of rows in memory
func (s *Store) Spilled() bool {
	return s.winRows < s.rows
}

// AccessRows returns n rows starting at start. The returned slices alias the
// store and are valid until the next AccessRows call on the same store. When
// writable is false, changes made through the slices may be lost.
func (s *Store) AccessRows(start, n int, writable bool) ([][]Block, error) {
	if s.released {
		fatalf("access to released store")
	}
	if start < 0 || n < 1 || n > s.maxAccess || start+n > s.rows {
		fatalf("rows [%d,%d) out of range for store with %d rows (maxAccess %d)",
			start, start+n, s.rows, s.maxAccess)
	}

	if s.Spilled() && (s.winStart < 0 || start < s.winStart || start+n > s.winStart+s.winRows) {
		if err := s.load(start); err != nil {
			return nil, err
		}
	}
	if writable {
		s.dirty = true
	}

	out := make([][]Block, n)
	base := start
	if s.Spilled() {
		base -= s.winStart
	}
	for i := range out {
		off := (base + i) * s.blocksWide
		out[i] = s.blocks[off : off+s.blocksWide : off+s.blocksWide]
	}
	return out, nil
}

// load writes back the current window if dirty and loads the window
// beginning at start
func (s *Store) load(start int) error {
	if err := s.writeBack(); err != nil {
		return err
	}
	start = min(start, s.rows-s.winRows)
	s.winStart = start
	clear(s.blocks)
	if s.spill == nil {
		return nil
	}
	dec, err := s.mm.decoder()
	if err != nil {
		return err
	}
	for i := 0; i < s.winRows; i++ {
		row := s.blocks[i*s.blocksWide : (i+1)*s.blocksWide]
		if err := s.spill.readRow(dec, start+i, row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) writeBack() error {
	if !s.dirty || s.winStart < 0 {
		s.dirty = false
		return nil
	}
	if s.spill == nil {
		sf, err := newSpillFile(s.mm.cfg.TempDir, s.rows, s.blocksWide)
		if err != nil {
			return err
		}
		s.spill = sf
	}
	enc, err := s.mm.encoder()
	if err != nil {
		return err
	}
	for i := 0; i < s.winRows; i++ {
		row := s.blocks[i*s.blocksWide : (i+1)*s.blocksWide]
		if err := s.spill.writeRow(enc, s.winStart+i, row); err != nil {
			return err
		}
	}
	s.dirty = false
	return nil
}

// Release frees the store's memory and deletes its spill file. Releasing
// twice is a no-op.
func (s *Store) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	s.blocks = nil
	s.mm.used -= s.held
	s.held = 0
	if s.spill != nil {
		err := s.spill.close()
		s.spill = nil
		return err
	}
	return nil
}
