package jpegcoef

import (
	"bufio"
	"bytes"
	"testing"
)

// roundTripSymbols encodes symbols with table and decodes them back
func roundTripSymbols(t *testing.T, table *HuffmanTable, symbols []uint8) {
	t.Helper()
	enc := newEncodeTable(table)
	bw := NewBitWriter(256)
	for _, s := range symbols {
		if enc.lengths[s] == 0 {
			t.Fatalf("Symbol %#02x has no code", s)
		}
		bw.Write(uint32(enc.codes[s]), uint32(enc.lengths[s]))
	}
	bw.Pad()
	var buf bytes.Buffer
	if err := bw.FlushTo(&buf); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	br := NewBitReader(bufio.NewReader(&buf))
	for i, want := range symbols {
		got, err := nextSymbol(br, table)
		if err != nil {
			t.Fatalf("Failed to decode symbol %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("Symbol %d: want %#02x, got %#02x", i, want, got)
		}
	}
}

func TestStandardTablesRoundTrip(t *testing.T) {
	testCases := []struct {
		name  string
		table *HuffmanTable
	}{
		{"dc luminance", StdDCLuminance},
		{"dc chrominance", StdDCChrominance},
		{"ac luminance", StdACLuminance},
		{"ac chrominance", StdACChrominance},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			roundTripSymbols(t, tc.table, tc.table.Symbols)
		})
	}
}

func TestOptimalTable(t *testing.T) {
	testCases := []struct {
		name string
		freq map[uint8]int64
	}{
		{"single symbol", map[uint8]int64{0x00: 10}},
		{"empty", map[uint8]int64{}},
		{"skewed", map[uint8]int64{0x00: 1 << 30, 0x01: 3, 0x11: 1, 0xF0: 2, 0x0A: 1}},
	}

	// A geometric distribution forces the length limit.
	deep := map[uint8]int64{}
	for i := 0; i < 40; i++ {
		deep[uint8(i)] = 1 << (i % 40)
	}
	// Deeper still: a 61 level tree before limiting.
	deeper := map[uint8]int64{}
	for i := 0; i < 61; i++ {
		deeper[uint8(i*4)] = 1 << i
	}
	testCases = append(testCases, []struct {
		name string
		freq map[uint8]int64
	}{{"length limited", deep}, {"length limited past 32 bits", deeper}}...)

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var freq symbolFrequencies
			var used []uint8
			for s, f := range tc.freq {
				freq[s] = f
				used = append(used, s)
			}
			table := optimalTable(&freq)

			// Kraft inequality must hold strictly: no all-ones code.
			var kraft float64
			total := 0
			for l := 1; l <= 16; l++ {
				total += int(table.Counts[l])
				kraft += float64(table.Counts[l]) / float64(int(1)<<l)
			}
			if kraft >= 1 {
				t.Errorf("Kraft sum %v leaves no room for the reserved code", kraft)
			}
			if total != len(table.Symbols) {
				t.Errorf("Counts sum %d, symbols %d", total, len(table.Symbols))
			}
			if len(used) > 0 {
				roundTripSymbols(t, table, used)
			}
		})
	}
}

func TestNewHuffmanTableRejectsOversubscribed(t *testing.T) {
	var counts [17]uint8
	counts[1] = 3
	if _, err := NewHuffmanTable(counts, []uint8{1, 2, 3}); err == nil {
		t.Errorf("Expected error for three 1-bit codes")
	}
}

func TestDecodeVLI(t *testing.T) {
	testCases := []struct {
		size uint8
		bits uint16
		want int32
	}{
		{0, 0, 0},
		{1, 1, 1},
		{1, 0, -1},
		{3, 0b100, 4},
		{3, 0b011, -4},
		{11, 0, -2047},
	}
	for _, tc := range testCases {
		if got := decodeVLI(tc.size, tc.bits); got != tc.want {
			t.Errorf("decodeVLI(%d, %b) = %d, want %d", tc.size, tc.bits, got, tc.want)
		}
	}
}
