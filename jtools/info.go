package jtools

import (
	"bytes"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/leijurv/jpegtools_go/jpegcoef"
)

// SchemaVersion selects how much Info reports
type SchemaVersion int

const (
	// SchemaV1 reports the image size only
	SchemaV1 SchemaVersion = 1
	// SchemaV2 adds the coding parameters and the EXIF orientation
	SchemaV2 SchemaVersion = 2
)

// Sampling is one component's sampling factors
type Sampling struct {
	H int `json:"h"`
	V int `json:"v"`
}

// ImageInfo describes a JPEG without decoding its scans
type ImageInfo struct {
	Schema SchemaVersion `json:"schema"`
	Width  int           `json:"width"`
	Height int           `json:"height"`

	Components  int        `json:"components,omitempty"`
	ColorSpace  string     `json:"color_space,omitempty"`
	Sampling    []Sampling `json:"sampling,omitempty"`
	Progressive bool       `json:"progressive,omitempty"`
	Arithmetic  bool       `json:"arithmetic,omitempty"`

	// Orientation is the EXIF orientation tag, 1 if absent
	Orientation int `json:"orientation,omitempty"`
}

var exifIdent = []byte("Exif\x00\x00")

// Info reads the header of in and fills the fields of schema version v
func Info(in jpegcoef.Input, v SchemaVersion) (*ImageInfo, error) {
	if v != SchemaV1 && v != SchemaV2 {
		return nil, fmt.Errorf("unknown schema version %d", v)
	}
	h, err := jpegcoef.ReadHeader(in)
	if err != nil {
		return nil, err
	}

	info := &ImageInfo{Schema: v, Width: h.Width, Height: h.Height}
	if v == SchemaV1 {
		return info, nil
	}

	info.Components = len(h.Components)
	info.ColorSpace = h.ColorSpace.String()
	for _, c := range h.Components {
		info.Sampling = append(info.Sampling, Sampling{H: c.H, V: c.V})
	}
	info.Progressive = h.Progressive()
	info.Arithmetic = h.Arithmetic
	info.Orientation = orientation(h)
	return info, nil
}

// orientation returns the orientation tag of the first EXIF segment. A
// missing or unreadable tag counts as the default, 1.
func orientation(h *jpegcoef.Header) int {
	for _, m := range h.Markers {
		if m.Code != jpegcoef.MarkerAPP1 || !bytes.HasPrefix(m.Data, exifIdent) {
			continue
		}
		x, err := exif.Decode(bytes.NewReader(m.Data[len(exifIdent):]))
		if err != nil {
			return 1
		}
		tag, err := x.Get(exif.Orientation)
		if err != nil {
			return 1
		}
		o, err := tag.Int(0)
		if err != nil || o < 1 || o > 8 {
			return 1
		}
		return o
	}
	return 1
}
