// Command jresave rewrites a JPEG from its coefficients, optionally dropping
// color or changing the entropy coding.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/leijurv/jpegtools_go/jtools"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("jresave: ")

	var opts jtools.ResaveOptions
	flag.BoolVar(&opts.Grayscale, "grayscale", false, "drop color channels from the image")
	flag.BoolVar(&opts.Optimize, "optimize", false, "save with optimized huffman tables")
	flag.BoolVar(&opts.Progressive, "progressive", false, "save as progressive jpeg")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: jresave [options] <infile> <outfile>")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	if err := jtools.Resave(flag.Arg(0), flag.Arg(1), opts); err != nil {
		log.Fatal(err)
	}
}
