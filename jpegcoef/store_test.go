package jpegcoef

import (
	"os"
	"testing"
)

func TestStoreSpillRoundTrip(t *testing.T) {
	dir := t.TempDir()
	const wide, rows = 10, 50
	mm := NewMemoryManager(MemoryConfig{MaxMemory: 4 * wide * blockBytes, TempDir: dir})
	defer mm.Close()

	s := mm.NewStore(wide, rows, 2)
	if !s.Spilled() {
		t.Fatalf("Expected store to exceed the budget")
	}

	for r := 0; r < rows; r++ {
		row, err := s.AccessRows(r, 1, true)
		if err != nil {
			t.Fatalf("Failed to access row %d: %v", r, err)
		}
		for x := range row[0] {
			row[0][x][0] = int16(r*100 + x)
			row[0][x][63] = int16(-r)
		}
	}

	// Read back out of order, including two-row accesses.
	for _, r := range []int{49, 0, 17, 33, 1, 48} {
		n := 1
		if r+1 < rows {
			n = 2
		}
		got, err := s.AccessRows(r, n, false)
		if err != nil {
			t.Fatalf("Failed to access row %d: %v", r, err)
		}
		for i := 0; i < n; i++ {
			for x, b := range got[i] {
				if b[0] != int16((r+i)*100+x) || b[63] != int16(-(r+i)) {
					t.Fatalf("Row %d block %d: got dc=%d last=%d", r+i, x, b[0], b[63])
				}
			}
		}
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected one spill file, found %d", len(entries))
	}
	if err := s.Release(); err != nil {
		t.Fatalf("Failed to release: %v", err)
	}
	if err := s.Release(); err != nil {
		t.Errorf("Second release should be a no-op: %v", err)
	}
	entries, _ = os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("Spill file not removed on release")
	}
	if mm.InUse() != 0 {
		t.Errorf("Memory still accounted after release: %d", mm.InUse())
	}
}

func TestStoreUnwrittenRowsAreZero(t *testing.T) {
	mm := NewMemoryManager(MemoryConfig{MaxMemory: 2 * 4 * blockBytes, TempDir: t.TempDir()})
	defer mm.Close()
	s := mm.NewStore(4, 20, 1)
	defer s.Release()

	row, _ := s.AccessRows(3, 1, true)
	row[0][2][5] = 9
	for r := 0; r < 20; r++ {
		got, err := s.AccessRows(r, 1, false)
		if err != nil {
			t.Fatalf("Failed to access row %d: %v", r, err)
		}
		for x, b := range got[0] {
			want := int16(0)
			if r == 3 && x == 2 {
				want = 9
			}
			if b[5] != want {
				t.Fatalf("Row %d block %d: want %d, got %d", r, x, want, b[5])
			}
		}
	}
}

func TestStoreResidentWithinBudget(t *testing.T) {
	mm := NewMemoryManager(MemoryConfig{MaxMemory: 1 << 20})
	s := mm.NewStore(8, 8, 1)
	defer s.Release()
	if s.Spilled() {
		t.Errorf("Small store should stay resident")
	}
	if mm.InUse() != 8*8*blockBytes {
		t.Errorf("InUse: want %d, got %d", 8*8*blockBytes, mm.InUse())
	}
}

func expectFatal(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		r := recover()
		if _, ok := r.(*FatalError); !ok {
			t.Errorf("%s: expected *FatalError panic, got %v", name, r)
		}
	}()
	f()
}

func TestStoreContractViolations(t *testing.T) {
	mm := NewMemoryManager(MemoryConfig{})
	s := mm.NewStore(4, 4, 2)

	expectFatal(t, "past end", func() { s.AccessRows(3, 2, false) })
	expectFatal(t, "negative start", func() { s.AccessRows(-1, 1, false) })
	expectFatal(t, "too many rows", func() { s.AccessRows(0, 3, false) })
	expectFatal(t, "bad geometry", func() { mm.NewStore(0, 4, 1) })

	s.Release()
	expectFatal(t, "released", func() { s.AccessRows(0, 1, false) })
}

func TestParseMemorySize(t *testing.T) {
	testCases := []struct {
		in    string
		want  int64
		valid bool
	}{
		{"1024", 1024, true},
		{"512k", 512 << 10, true},
		{"64M", 64 << 20, true},
		{" 2g ", 2 << 30, true},
		{"", 0, false},
		{"lots", 0, false},
		{"-5m", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMemorySize(tc.in)
			if tc.valid != (err == nil) {
				t.Fatalf("ParseMemorySize(%q) error = %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("ParseMemorySize(%q) = %d, want %d", tc.in, got, tc.want)
			}
		})
	}
}

func TestMemoryConfigFromEnv(t *testing.T) {
	t.Setenv("JPEGTOOLS_MAX_MEMORY", "3m")
	t.Setenv("JPEGTOOLS_TMPDIR", "/var/tmp")
	cfg := MemoryConfigFromEnv()
	if cfg.MaxMemory != 3<<20 || cfg.TempDir != "/var/tmp" {
		t.Errorf("Unexpected config %+v", cfg)
	}
}
