// Package compile wires the lexer, entity parser, and virtual machine into
// a single Noir-to-NMF pipeline, then hands the finished event buffer to
// the codec for sorting and serialization.
package compile

import (
	"io"

	"noirc/internal/codec"
	"noirc/internal/entity"
	"noirc/internal/eventbuf"
	"noirc/internal/lexer"
	"noirc/internal/noirerr"
	"noirc/internal/vm"
)

// Compile reads Noir source from r and returns a sorted, ready-to-
// serialize NMF Data, or the first error encountered.
func Compile(r io.Reader) (*codec.Data, error) {
	buf := eventbuf.New()
	machine := vm.New(buf)
	lex := lexer.New(r)
	parser := entity.New(lex, machine)

	if err := parser.Run(); err != nil {
		return nil, err
	}

	if buf.NoteCount() == 0 {
		return nil, noirerr.New(noirerr.Empty, 0)
	}

	data := codec.Alloc()
	for i := 1; i < buf.SectionCount(); i++ {
		if !data.AddSection(buf.SectionOffset(i)) {
			return nil, noirerr.New(noirerr.ManySect, 0)
		}
	}
	for _, n := range buf.Notes() {
		if !data.AppendNote(n) {
			return nil, noirerr.New(noirerr.ManyNotes, 0)
		}
	}
	data.SetBasis(codec.Q96)
	data.Sort()

	return data, nil
}
