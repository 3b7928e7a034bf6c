package main

import (
	"fmt"
	"os"

	"github.com/marabu-network/marabu/cmd/marabu"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "marabu"

// Version & commit strings injected at build with -ldflags -X...
var version string
var commit string

func main() {
	if err := marabu.Run(progname, version, commit, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", progname, err)
		os.Exit(1)
	}
}
