// Command isgrayscale exits with status 0 if a JPEG is grayscale, 1 if it has
// color and 2 on error.
package main

import (
	"log"
	"os"

	"github.com/leijurv/jpegtools_go/jtools"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("isgrayscale: ")

	if len(os.Args) != 2 {
		log.Print("usage: isgrayscale <file>")
		os.Exit(int(jtools.GrayscaleError))
	}
	status, err := jtools.IsGrayscale(os.Args[1])
	if err != nil {
		log.Print(err)
	}
	os.Exit(int(status))
}
