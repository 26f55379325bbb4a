// Command jinfo prints the header information of JPEG files as JSON, one
// object per line.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/leijurv/jpegtools_go/jpegcoef"
	"github.com/leijurv/jpegtools_go/jtools"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("jinfo: ")

	schema := flag.Int("schema", int(jtools.SchemaV2), "output schema version (1 or 2)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: jinfo [-schema N] <file>...")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	failed := false
	for _, path := range flag.Args() {
		info, err := jtools.Info(jpegcoef.PathInput(path), jtools.SchemaVersion(*schema))
		if err != nil {
			log.Printf("%s: %v", path, err)
			failed = true
			continue
		}
		if err := enc.Encode(info); err != nil {
			log.Fatal(err)
		}
	}
	if failed {
		os.Exit(1)
	}
}
