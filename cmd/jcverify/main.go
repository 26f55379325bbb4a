// Command jcverify copies every JPEG in a directory through a canvas and
// checks that the coefficients and decoded pixels survive unchanged.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/leijurv/jpegtools_go/jcanvas"
	"github.com/leijurv/jpegtools_go/jpegcoef"
	"github.com/leijurv/jpegtools_go/jtools"
)

type testResult struct {
	skipped     bool
	copyOK      bool
	roundtripOK bool
	pixelsOK    bool
	pixelsSkip  bool
	errMsg      string
	inSize      int
	outSize     int
}

type options struct {
	verbose     bool
	optimize    bool
	progressive bool
	maxMemory   int64
}

func main() {
	dirPath := flag.String("dir", ".", "Directory containing .jpg files")
	limit := flag.Int("limit", 0, "Limit number of files to test (0 = no limit)")
	workers := flag.Int("workers", runtime.NumCPU(), "Number of parallel workers")
	verbose := flag.Bool("v", false, "Verbose output")
	optimize := flag.Bool("optimize", false, "Write optimized Huffman tables")
	progressive := flag.Bool("progressive", false, "Write progressive output")
	maxMemory := flag.String("maxmem", "", "Coefficient memory budget per canvas, e.g. 64m")
	status := flag.Duration("status", time.Minute, "Interval between progress lines")
	flag.Parse()

	opts := options{verbose: *verbose, optimize: *optimize, progressive: *progressive}
	if *maxMemory != "" {
		n, err := jpegcoef.ParseMemorySize(*maxMemory)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -maxmem: %v\n", err)
			os.Exit(1)
		}
		opts.maxMemory = n
	}

	entries, err := os.ReadDir(*dirPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading directory: %v\n", err)
		os.Exit(1)
	}

	var jpegFiles []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if !e.IsDir() && (strings.HasSuffix(name, ".jpg") || strings.HasSuffix(name, ".jpeg")) {
			jpegFiles = append(jpegFiles, e.Name())
		}
	}
	if *limit > 0 && len(jpegFiles) > *limit {
		jpegFiles = jpegFiles[:*limit]
	}
	fmt.Printf("Testing %d files with %d workers...\n", len(jpegFiles), *workers)

	var copyPass, copyFail, roundtripPass, pixelPass, pixelSkip, skipped int64
	var processed, totalIn, totalOut int64
	var mu sync.Mutex
	var failedFiles []string

	jobs := make(chan string, len(jpegFiles))
	var wg sync.WaitGroup

	done := make(chan struct{})
	var statusWg sync.WaitGroup
	statusWg.Add(1)
	go func() {
		defer statusWg.Done()
		ticker := time.NewTicker(*status)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Printf("Progress: %d/%d (copy: %d/%d, roundtrip: %d, pixels: %d, skip: %d)\n",
					atomic.LoadInt64(&processed), len(jpegFiles),
					atomic.LoadInt64(&copyPass), atomic.LoadInt64(&copyPass)+atomic.LoadInt64(&copyFail),
					atomic.LoadInt64(&roundtripPass), atomic.LoadInt64(&pixelPass), atomic.LoadInt64(&skipped))
			case <-done:
				return
			}
		}
	}()

	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for filename := range jobs {
				result := testFile(*dirPath, filename, opts)
				atomic.AddInt64(&processed, 1)

				if result.skipped {
					atomic.AddInt64(&skipped, 1)
					continue
				}
				if !result.copyOK {
					atomic.AddInt64(&copyFail, 1)
				} else {
					atomic.AddInt64(&copyPass, 1)
					atomic.AddInt64(&totalIn, int64(result.inSize))
					atomic.AddInt64(&totalOut, int64(result.outSize))
					if result.roundtripOK {
						atomic.AddInt64(&roundtripPass, 1)
					}
					if result.pixelsSkip {
						atomic.AddInt64(&pixelSkip, 1)
					} else if result.pixelsOK {
						atomic.AddInt64(&pixelPass, 1)
					}
				}
				if result.errMsg != "" {
					mu.Lock()
					failedFiles = append(failedFiles, result.errMsg)
					mu.Unlock()
				}
			}
		}()
	}

	for _, f := range jpegFiles {
		jobs <- f
	}
	close(jobs)
	wg.Wait()
	close(done)
	statusWg.Wait()

	fmt.Println()
	fmt.Printf("Copy:      %d/%d passed\n", copyPass, copyPass+copyFail)
	if copyPass > 0 {
		fmt.Printf("Roundtrip: %d/%d passed (%.1f%%)\n",
			roundtripPass, copyPass, 100*float64(roundtripPass)/float64(copyPass))
		fmt.Printf("Pixels:    %d/%d passed (%d not decodable by image/jpeg)\n",
			pixelPass, copyPass-pixelSkip, pixelSkip)
		if totalIn > 0 {
			fmt.Printf("Size ratio: %.4f (output %d bytes / input %d bytes)\n",
				float64(totalOut)/float64(totalIn), totalOut, totalIn)
		}
	}
	if skipped > 0 {
		fmt.Printf("Skipped (unsupported): %d\n", skipped)
	}

	if len(failedFiles) > 0 && len(failedFiles) <= 50 {
		fmt.Println("\nFailed files:")
		for _, f := range failedFiles {
			fmt.Println("  " + f)
		}
	}
	if copyFail > 0 || roundtripPass < copyPass {
		os.Exit(1)
	}
}

func testFile(dirPath, filename string, opts options) testResult {
	result := testResult{}

	data, err := os.ReadFile(filepath.Join(dirPath, filename))
	if err != nil {
		result.errMsg = fmt.Sprintf("%s: read error: %v", filename, err)
		return result
	}
	result.inSize = len(data)

	// Step 1: copy every block through a canvas
	out, err := copyThroughCanvas(data, opts)
	if errors.Is(err, jcanvas.ErrUnsupported) {
		result.skipped = true
		if opts.verbose {
			fmt.Printf("SKIP: %s: %v\n", filename, err)
		}
		return result
	}
	if err != nil {
		result.errMsg = fmt.Sprintf("%s: copy error: %v", filename, err)
		return result
	}
	result.copyOK = true
	result.outSize = len(out)

	// Step 2: compare coefficients
	if err := compareCoefficients(data, out); err != nil {
		result.errMsg = fmt.Sprintf("%s: roundtrip mismatch: %v", filename, err)
		return result
	}
	result.roundtripOK = true

	// Step 3: compare decoded pixels where the standard decoder can read both
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		result.pixelsSkip = true
		return result
	}
	dst, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		result.errMsg = fmt.Sprintf("%s: output not decodable: %v", filename, err)
		return result
	}
	if n := jtools.CountDifferences(src, dst, 0); n > 0 {
		result.errMsg = fmt.Sprintf("%s: %d pixels differ", filename, n)
		return result
	}
	result.pixelsOK = true

	if opts.verbose {
		fmt.Printf("PASS: %s (input: %d bytes, output: %d bytes)\n", filename, len(data), len(out))
	}
	return result
}

func copyThroughCanvas(data []byte, opts options) ([]byte, error) {
	c, err := jcanvas.New(jcanvas.Options{
		MaxMemory:   opts.maxMemory,
		Optimize:    opts.optimize,
		Progressive: opts.progressive,
	})
	if err != nil {
		return nil, err
	}
	defer c.Close()

	idx, err := c.AddImageBytes(data)
	if err != nil {
		return nil, err
	}
	if err := c.Draw(idx, 0, 0, 0, 0, -1, -1); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := c.Finalize(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func compareCoefficients(a, b []byte) error {
	ia, err := jpegcoef.Decode(jpegcoef.BytesInput(a), nil)
	if err != nil {
		return err
	}
	defer ia.Release()
	ib, err := jpegcoef.Decode(jpegcoef.BytesInput(b), nil)
	if err != nil {
		return err
	}
	defer ib.Release()
	return jtools.CompareCoefficients(ia, ib)
}
