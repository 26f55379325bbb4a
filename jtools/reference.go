package jtools

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// DrawOp is one block copy in pixel coordinates
type DrawOp struct {
	DestX, DestY int
	SrcX, SrcY   int
	Width        int
	Height       int
}

// RenderReference applies ops to decoded pixels instead of coefficients. The
// result starts as src on a black width×height canvas; with no ops it is
// just that.
func RenderReference(src image.Image, width, height int, ops []DrawOp) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	sb := src.Bounds()
	draw.Copy(dst, image.Point{}, src, sb, draw.Src, nil)

	for _, op := range ops {
		sr := image.Rect(op.SrcX, op.SrcY, op.SrcX+op.Width, op.SrcY+op.Height).Add(sb.Min)
		draw.Copy(dst, image.Pt(op.DestX, op.DestY), src, sr, draw.Src, nil)
	}
	return dst
}

// CountDifferences returns how many pixels in the overlap of a and b differ
// by more than tolerance in any 8-bit channel
func CountDifferences(a, b image.Image, tolerance int) int {
	r := a.Bounds().Intersect(b.Bounds())
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			ca := color.RGBAModel.Convert(a.At(x, y)).(color.RGBA)
			cb := color.RGBAModel.Convert(b.At(x, y)).(color.RGBA)
			if channelDiff(ca.R, cb.R) > tolerance || channelDiff(ca.G, cb.G) > tolerance ||
				channelDiff(ca.B, cb.B) > tolerance {
				n++
			}
		}
	}
	return n
}

func channelDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
