package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"hemlockc/hemlock"

	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	output := flag.String("o", "", "output C file (default: input with .c extension)")
	stdlib := flag.String("stdlib", "", "stdlib root directory (default: HEMLOCK_STDLIB or next to the executable)")
	verbose := flag.Int("v", 0, "log verbosity")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: hemlockc [flags] program.hml")
		flag.PrintDefaults()
		os.Exit(2)
	}
	commonlog.Configure(*verbose, nil)

	srcName := flag.Arg(0)
	outName := *output
	if outName == "" {
		outName = strings.TrimSuffix(srcName, ".hml") + ".c"
	}

	outFile, err := os.Create(outName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating output file: %s\n", err)
		os.Exit(1)
	}
	defer outFile.Close()

	if err := hemlock.CompileFile(srcName, *stdlib, outFile); err != nil {
		if herr, ok := err.(*hemlock.HemlockError); ok {
			source, readErr := os.ReadFile(herr.Loc.FileName)
			if readErr == nil {
				fmt.Fprintln(os.Stderr, herr.ShowSource(string(source)))
			} else {
				fmt.Fprintln(os.Stderr, herr.Error())
			}
		} else {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		os.Remove(outName)
		os.Exit(1)
	}
}
