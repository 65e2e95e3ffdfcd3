// Command noirc compiles Noir source read from stdin into an NMF file
// written to stdout.
package main

import (
	"fmt"
	"os"

	"noirc/internal/codec"
	"noirc/internal/compile"
	"noirc/internal/noirerr"
)

func main() {
	data, err := compile.Compile(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, noirerr.Diagnostic("noirc", err))
		os.Exit(1)
	}

	if err := codec.Serialize(data, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "noirc: %s!\n", err)
		os.Exit(1)
	}
}
