// Package eventbuf holds the append-only section table and note list the
// VM appends to, plus the sort and grace-flip operations that reach back
// into already-emitted output. It is index-based and never deletes: each
// table is a single owned slice with a monotonic count.
package eventbuf

import (
	"sort"

	"noirc/internal/codec"
)

const (
	maxSections = 65535
	maxNotes    = 1048576
)

// Buffer accumulates section offsets and note events for one compile. The
// zero value is not usable; construct with New.
type Buffer struct {
	sections []int32
	notes    []codec.Note
}

// New returns a Buffer seeded with section 0 at offset 0, matching the
// data model's invariant that section 0 always exists.
func New() *Buffer {
	return &Buffer{sections: []int32{0}}
}

// SectionCount reports how many section offsets have been recorded.
func (b *Buffer) SectionCount() int {
	return len(b.sections)
}

// NoteCount reports how many notes (including cues) have been recorded.
func (b *Buffer) NoteCount() int {
	return len(b.notes)
}

// SectionOffset returns the starting offset of section i.
func (b *Buffer) SectionOffset(i int) int32 {
	return b.sections[i]
}

// AddSection appends a new section offset, which must be greater than or
// equal to the previous one. It reports false once the section table is
// full.
func (b *Buffer) AddSection(offset int32) bool {
	if len(b.sections) >= maxSections {
		return false
	}
	if offset < b.sections[len(b.sections)-1] {
		panic("eventbuf: section offset out of order")
	}
	b.sections = append(b.sections, offset)
	return true
}

// AppendNote appends a note or cue event. It reports false once the note
// table is full.
func (b *Buffer) AppendNote(n codec.Note) bool {
	if len(b.notes) >= maxNotes {
		return false
	}
	b.notes = append(b.notes, n)
	return true
}

// Flip retrofits the dur field of the last count events, which must all be
// grace notes (negative dur), reversing their run so that the last note
// emitted (nearest the beat) gets -1 and the first gets -maxOffs. maxOffs
// is the final grace_offset reached by the run.
func (b *Buffer) Flip(count int32, maxOffs int32) {
	if count == 0 {
		return
	}
	if count < 0 || maxOffs < 1 || int(count) > len(b.notes) {
		panic("eventbuf: invalid flip parameters")
	}

	n := len(b.notes)
	for i := int32(1); i <= count; i++ {
		pn := &b.notes[n-int(i)]
		if pn.Dur >= 0 {
			panic("eventbuf: flip target is not a grace note")
		}
		flipped := (maxOffs + 1) + pn.Dur
		if flipped < 1 {
			panic("eventbuf: flipped grace offset out of range")
		}
		pn.Dur = -flipped
	}
}

// Notes returns the accumulated notes in append order.
func (b *Buffer) Notes() []codec.Note {
	return b.notes
}

// Sections returns the accumulated section offsets in order.
func (b *Buffer) Sections() []int32 {
	return b.sections
}

// Sort orders notes by (t ascending, dur ascending). Ascending dur already
// puts grace notes (negative) before non-grace (positive) at the same t,
// and orders grace notes by decreasing magnitude.
func (b *Buffer) Sort() {
	sort.SliceStable(b.notes, func(i, j int) bool {
		if b.notes[i].T != b.notes[j].T {
			return b.notes[i].T < b.notes[j].T
		}
		return b.notes[i].Dur < b.notes[j].Dur
	})
}
