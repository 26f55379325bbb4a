// Command scramble rearranges the blocks of a JPEG without recompressing it.
// It reads a JSON array of [destX, destY, srcX, srcY, width, height]
// operations from stdin and applies each as a draw from the input image.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log"
	"os"

	"github.com/leijurv/jpegtools_go/jcanvas"
	"github.com/leijurv/jpegtools_go/jtools"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: scramble [options] <infile> <outfile>
options:
    -c WIDTHxHEIGHT  set dimensions of the output image
    -r               apply the operations in reverse
    -s               strict - exit with status 1 if any draw fails
    -0               no operations, just copy the image (for benchmarking)
    -verify          compare the result with a pixel-space rendering
    -v               log every draw
`)
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("scramble: ")

	dims := flag.String("c", "", "")
	reverse := flag.Bool("r", false, "")
	strict := flag.Bool("s", false, "")
	zero := flag.Bool("0", false, "")
	verify := flag.Bool("verify", false, "")
	verbose := flag.Bool("v", false, "")
	flag.Usage = usage
	flag.Parse()

	width, height := -1, -1
	if *dims != "" {
		var err error
		width, height, err = parseDimensions(*dims)
		if err != nil {
			log.Print(err)
			usage()
			os.Exit(1)
		}
	}
	if flag.NArg() != 2 {
		usage()
		os.Exit(1)
	}
	inPath, outPath := flag.Arg(0), flag.Arg(1)

	var ops []jtools.DrawOp
	if !*zero {
		if fi, err := os.Stdin.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprintln(os.Stderr, "(reading decode data from stdin)")
		}
		var err error
		ops, err = readOps(os.Stdin)
		if err != nil {
			log.Fatal(err)
		}
		if *reverse {
			for i := range ops {
				op := &ops[i]
				op.DestX, op.SrcX = op.SrcX, op.DestX
				op.DestY, op.SrcY = op.SrcY, op.DestY
			}
		}
	}

	opts := jcanvas.Options{Width: width, Height: height}
	if *verbose {
		opts.Logger = log.New(os.Stderr, "scramble: ", 0)
	}
	drawOK, err := run(inPath, outPath, ops, opts, *verify)
	if !drawOK {
		level := "warning"
		if *strict {
			level = "error"
		}
		log.Printf("%s: one or more draws failed", level)
	}
	if err != nil {
		log.Fatal(err)
	}
	if *strict && !drawOK {
		os.Exit(1)
	}
}

// run applies ops from inPath onto a new canvas and saves it to outPath. It
// reports whether every draw succeeded; a failed draw is not an error. The
// canvas is closed on every return.
func run(inPath, outPath string, ops []jtools.DrawOp, opts jcanvas.Options, verify bool) (bool, error) {
	canvas, err := jcanvas.New(opts)
	if err != nil {
		return true, err
	}
	defer canvas.Close()

	idx, err := canvas.AddImage(inPath)
	if err != nil {
		return true, err
	}

	drawOK := true
	for _, op := range ops {
		if err := canvas.Draw(idx, op.DestX, op.DestY, op.SrcX, op.SrcY, op.Width, op.Height); err != nil {
			if opts.Logger != nil {
				opts.Logger.Print(err)
			}
			drawOK = false
		}
	}
	if len(ops) == 0 {
		if err := canvas.Draw(idx, 0, 0, 0, 0, -1, -1); err != nil {
			log.Print(err)
			drawOK = false
		}
	}

	if err := canvas.SaveFile(outPath); err != nil {
		return drawOK, err
	}

	if verify {
		n, err := verifyOutput(inPath, outPath, ops)
		if err != nil {
			return drawOK, fmt.Errorf("verify: %w", err)
		}
		if n > 0 {
			return drawOK, fmt.Errorf("verify: %d pixels differ from the reference rendering", n)
		}
	}
	return drawOK, nil
}

func parseDimensions(s string) (int, int, error) {
	var w, h int
	var rest string
	if n, _ := fmt.Sscanf(s, "%dx%d%s", &w, &h, &rest); n != 2 || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("failed to parse dimensions from %q", s)
	}
	return w, h, nil
}

// readOps parses the JSON operation list
func readOps(r io.Reader) ([]jtools.DrawOp, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("json parse error: %v", err)
	}
	rows, ok := data.([]any)
	if !ok {
		return nil, fmt.Errorf("input is not a json array")
	}

	ops := make([]jtools.DrawOp, 0, len(rows))
	for i, row := range rows {
		var nums [6]int
		items, ok := row.([]any)
		if ok && len(items) == len(nums) {
			for j, item := range items {
				n, isNum := item.(json.Number)
				v, err := n.Int64()
				if !isNum || err != nil {
					ok = false
					break
				}
				nums[j] = int(v)
			}
		} else {
			ok = false
		}
		if !ok {
			return nil, fmt.Errorf("bad decode data: item at index %d has wrong type or length", i)
		}
		ops = append(ops, jtools.DrawOp{
			DestX: nums[0], DestY: nums[1],
			SrcX: nums[2], SrcY: nums[3],
			Width: nums[4], Height: nums[5],
		})
	}
	return ops, nil
}

// verifyOutput renders ops on the decoded input and counts the pixels of the
// output that disagree. A -1 size in an op is resolved against the images.
func verifyOutput(inPath, outPath string, ops []jtools.DrawOp) (int, error) {
	src, err := decodeFile(inPath)
	if err != nil {
		return 0, err
	}
	out, err := decodeFile(outPath)
	if err != nil {
		return 0, err
	}

	sb, ob := src.Bounds(), out.Bounds()
	for i := range ops {
		op := &ops[i]
		if op.Width == -1 {
			op.Width = min(sb.Dx()-op.SrcX, ob.Dx()-op.DestX)
		}
		if op.Height == -1 {
			op.Height = min(sb.Dy()-op.SrcY, ob.Dy()-op.DestY)
		}
	}
	ref := jtools.RenderReference(src, ob.Dx(), ob.Dy(), ops)
	return jtools.CountDifferences(ref, out, 0), nil
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}
