package jpegcoef

import (
	"bytes"
	"testing"
)

func TestEncodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		gray bool
		opts EncodeOptions
	}{
		{"color baseline", false, EncodeOptions{}},
		{"color optimized", false, EncodeOptions{Optimize: true}},
		{"color progressive", false, EncodeOptions{Progressive: true}},
		{"gray baseline", true, EncodeOptions{}},
		{"gray optimized", true, EncodeOptions{Optimize: true}},
		{"gray progressive", true, EncodeOptions{Progressive: true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := makeJPEG(t, 75, 53, tc.gray, 7)
			src := decodeBytes(t, data)

			var out bytes.Buffer
			if err := Encode(&out, src.Header, src.Stores, tc.opts); err != nil {
				t.Fatalf("Failed to encode: %v", err)
			}

			got := decodeBytes(t, out.Bytes())
			if got.Truncated {
				t.Errorf("Re-encoded image decoded as truncated")
			}
			wantFrame := FrameBaseline
			if tc.opts.Progressive {
				wantFrame = FrameProgressive
			}
			if got.Header.Frame != wantFrame {
				t.Errorf("Frame type: want %v, got %v", wantFrame, got.Header.Frame)
			}
			if got.Header.ColorSpace != src.Header.ColorSpace {
				t.Errorf("Color space: want %v, got %v", src.Header.ColorSpace, got.Header.ColorSpace)
			}
			compareCoefficients(t, src, got)
			comparePixels(t, data, out.Bytes())
		})
	}
}

func TestEncodeOptimizedIsSmaller(t *testing.T) {
	data := makeJPEG(t, 160, 96, false, 8)
	src := decodeBytes(t, data)

	var std, opt bytes.Buffer
	if err := Encode(&std, src.Header, src.Stores, EncodeOptions{}); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	if err := Encode(&opt, src.Header, src.Stores, EncodeOptions{Optimize: true}); err != nil {
		t.Fatalf("Failed to encode optimized: %v", err)
	}
	if opt.Len() >= std.Len() {
		t.Errorf("Optimized output (%d bytes) not smaller than standard (%d bytes)", opt.Len(), std.Len())
	}
}

func TestEncodeFromSpilledStores(t *testing.T) {
	data := makeJPEG(t, 200, 120, false, 9)
	want := decodeBytes(t, data)

	mm := NewMemoryManager(MemoryConfig{MaxMemory: 8 << 10, TempDir: t.TempDir()})
	defer mm.Close()
	src, err := Decode(BytesInput(data), mm)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	defer src.Release()

	var out bytes.Buffer
	if err := Encode(&out, src.Header, src.Stores, EncodeOptions{Progressive: true}); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	compareCoefficients(t, want, decodeBytes(t, out.Bytes()))
}

func TestEncodeKeepsMarkers(t *testing.T) {
	data := makeJPEG(t, 16, 16, true, 10)
	src := decodeBytes(t, data)
	comment := Marker{Code: MarkerCOM, Data: []byte("hello")}

	var out bytes.Buffer
	if err := Encode(&out, src.Header, src.Stores, EncodeOptions{Markers: []Marker{comment}}); err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	h, err := ReadHeader(BytesInput(out.Bytes()))
	if err != nil {
		t.Fatalf("Failed to read header: %v", err)
	}
	if h.JFIF == nil {
		t.Errorf("Expected JFIF marker on gray output")
	}
	if len(h.Markers) != 1 || !bytes.Equal(h.Markers[0].Data, comment.Data) {
		t.Errorf("Expected comment marker to survive, got %v", h.Markers)
	}
}

func TestEncodeRejectsMismatchedStores(t *testing.T) {
	src := decodeBytes(t, makeJPEG(t, 32, 32, false, 11))
	var out bytes.Buffer
	err := Encode(&out, src.Header, src.Stores[:1], EncodeOptions{})
	if e, ok := AsError(err); !ok || e.Code != CodeAssertionFailure {
		t.Errorf("Expected assertion failure, got %v", err)
	}
}

func TestSimpleProgressionIsValid(t *testing.T) {
	for _, tc := range []struct {
		name string
		gray bool
	}{{"color", false}, {"gray", true}} {
		t.Run(tc.name, func(t *testing.T) {
			h := decodeBytes(t, makeJPEG(t, 16, 16, tc.gray, 12)).Header
			script := SimpleProgression(len(h.Components), h.ColorSpace)
			if err := validateScanScript(h, script); err != nil {
				t.Errorf("Simple progression rejected: %v", err)
			}
		})
	}
}

func TestValidateScanScript(t *testing.T) {
	h := decodeBytes(t, makeJPEG(t, 16, 16, true, 13)).Header
	dc := ScanSpec{Components: []int{0}, Ss: 0, Se: 0}
	ac := ScanSpec{Components: []int{0}, Ss: 1, Se: 63}

	testCases := []struct {
		name   string
		script []ScanSpec
		valid  bool
	}{
		{"dc then ac", []ScanSpec{dc, ac}, true},
		{"empty", nil, false},
		{"ac before dc", []ScanSpec{ac, dc}, false},
		{"missing ac", []ScanSpec{dc}, false},
		{"mixed dc and ac", []ScanSpec{{Components: []int{0}, Ss: 0, Se: 63}}, false},
		{"bad component", []ScanSpec{{Components: []int{1}, Ss: 0, Se: 0}, ac}, false},
		{"duplicate coding", []ScanSpec{dc, ac, ac}, false},
		{"refine without first", []ScanSpec{dc, {Components: []int{0}, Ss: 1, Se: 63, Ah: 1, Al: 0}}, false},
		{"unfinished refinement", []ScanSpec{dc, {Components: []int{0}, Ss: 1, Se: 63, Al: 1}}, false},
		{
			"successive approximation",
			[]ScanSpec{
				{Components: []int{0}, Ss: 0, Se: 0, Al: 1},
				{Components: []int{0}, Ss: 1, Se: 63, Al: 1},
				{Components: []int{0}, Ss: 0, Se: 0, Ah: 1},
				{Components: []int{0}, Ss: 1, Se: 63, Ah: 1},
			},
			true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateScanScript(h, tc.script)
			if tc.valid && err != nil {
				t.Errorf("Expected valid script, got %v", err)
			}
			if !tc.valid {
				if e, ok := AsError(err); !ok || e.Code != CodeInvalidScanScript {
					t.Errorf("Expected invalid scan script error, got %v", err)
				}
			}
		})
	}
}

func TestDivPow2(t *testing.T) {
	testCases := []struct {
		v    int16
		p    uint8
		want int16
	}{
		{7, 0, 7},
		{7, 1, 3},
		{-7, 1, -3},
		{-1, 2, 0},
		{-8, 2, -2},
	}
	for _, tc := range testCases {
		if got := divPow2(tc.v, tc.p); got != tc.want {
			t.Errorf("divPow2(%d, %d) = %d, want %d", tc.v, tc.p, got, tc.want)
		}
	}
}
