// Command jsort writes a copy of a JPEG whose blocks are sorted by their
// coefficients, component by component.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"

	"github.com/leijurv/jpegtools_go/jpegcoef"
	"github.com/leijurv/jpegtools_go/jtools"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("jsort: ")

	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: jsort <infile> <outfile>")
		os.Exit(1)
	}
	out, err := os.Create(os.Args[2])
	if err != nil {
		log.Fatal(err)
	}
	w := bufio.NewWriter(out)
	if err := jtools.SortBlocks(jpegcoef.PathInput(os.Args[1]), w); err != nil {
		out.Close()
		os.Remove(os.Args[2])
		log.Fatal(err)
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	if err := out.Close(); err != nil {
		log.Fatal(err)
	}
}
