// Command nmfdump reads an NMF file from stdin and prints its section
// table and note list, one per line. It exercises the codec as a
// downstream consumer would: reading only, never compiling.
package main

import (
	"fmt"
	"os"

	"noirc/internal/codec"
)

func main() {
	data, err := codec.Parse(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "nmfdump: %s!\n", err)
		os.Exit(1)
	}

	fmt.Printf("basis %d, %d sections, %d notes\n", data.Basis(), data.SectionCount(), data.NoteCount())
	for i := 0; i < data.SectionCount(); i++ {
		fmt.Printf("section %d: offset %d\n", i, data.Offset(i))
	}
	for i := 0; i < data.NoteCount(); i++ {
		n := data.GetNote(i)
		if n.Dur == 0 {
			cue := (int32(n.Art) << 16) | int32(n.LayerI)
			fmt.Printf("cue  t=%d sect=%d cue=%d\n", n.T, n.Sect, cue)
			continue
		}
		fmt.Printf("note t=%d dur=%d pitch=%d art=%d sect=%d layer=%d\n",
			n.T, n.Dur, n.Pitch, n.Art, n.Sect, n.LayerI+1)
	}
}
