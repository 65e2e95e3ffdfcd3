// Package codec reads and writes the NMF binary score format: two
// big-endian signature words, a basis tag, a section offset table, and a
// note record table with biased signed fields.
package codec

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
)

const (
	sigPrimary   uint32 = 1928196216
	sigSecondary uint32 = 1313818926

	maxSections = 65535
	maxNotes    = 1048576

	minPitch = -39
	maxPitch = 48
	maxArt   = 61

	bias32 = int64(1) << 31
	bias16 = int32(1) << 15

	// maxUint32 bounds a plain uint32 field to a zero most-significant bit:
	// values above 2147483647 are rejected.
	maxUint32 = uint32(1)<<31 - 1
)

// Basis identifies the time-unit interpretation of a file's quanta.
type Basis uint16

const (
	Q96 Basis = iota
	R44100
	R48000
)

func (b Basis) valid() bool {
	return b == Q96 || b == R44100 || b == R48000
}

// Note is one note or cue record. Dur == 0 marks a cue: Pitch is unused,
// Art holds the high 16 bits of the cue number and LayerI the low 16 bits.
// Dur < 0 marks a grace note whose magnitude is its position within the
// grace run counted back from the beat: -1 is nearest the beat, -2 just
// before it, and so on.
type Note struct {
	T      int32
	Dur    int32
	Pitch  int16
	Art    uint16
	Sect   uint16
	LayerI uint16
}

// Data is an in-memory NMF file: a basis tag, a section offset table, and
// a note table. The zero value is not usable; construct with Alloc or
// Parse.
type Data struct {
	basis    Basis
	sections []int32
	notes    []Note
}

// Alloc returns an empty Data seeded with section 0 at offset 0.
func Alloc() *Data {
	return &Data{sections: []int32{0}}
}

// Basis reports the file's time-unit basis.
func (d *Data) Basis() Basis { return d.basis }

// SetBasis sets the file's time-unit basis. It aborts on an invalid value.
func (d *Data) SetBasis(b Basis) {
	if !b.valid() {
		panic("codec: invalid basis")
	}
	d.basis = b
}

// SectionCount reports the number of section offsets.
func (d *Data) SectionCount() int { return len(d.sections) }

// NoteCount reports the number of note records.
func (d *Data) NoteCount() int { return len(d.notes) }

// Offset returns the starting offset of section i.
func (d *Data) Offset(i int) int32 { return d.sections[i] }

// GetNote returns note record i.
func (d *Data) GetNote(i int) Note { return d.notes[i] }

// SetNote overwrites note record i after range-checking it.
func (d *Data) SetNote(i int, n Note) {
	validateNote(n, len(d.sections))
	d.notes[i] = n
}

// AddSection appends a new section offset, which must be greater than or
// equal to the previous one. It reports false once the section table has
// reached its maximum size.
func (d *Data) AddSection(offset int32) bool {
	if len(d.sections) >= maxSections {
		return false
	}
	if offset < d.sections[len(d.sections)-1] {
		panic("codec: section offsets must be non-decreasing")
	}
	d.sections = append(d.sections, offset)
	return true
}

// AppendNote range-checks and appends a note record. It reports false
// once the note table has reached its maximum size.
func (d *Data) AppendNote(n Note) bool {
	validateNote(n, len(d.sections))
	if len(d.notes) >= maxNotes {
		return false
	}
	d.notes = append(d.notes, n)
	return true
}

// validateNote checks the invariants of a note event, treating dur == 0
// (a cue) as exempt from the pitch/articulation range checks since those
// fields carry the cue number's halves instead.
func validateNote(n Note, sectionCount int) {
	if n.Dur != 0 {
		if int(n.Pitch) < minPitch || int(n.Pitch) > maxPitch {
			panic("codec: pitch out of range")
		}
		if n.Art > maxArt {
			panic("codec: articulation out of range")
		}
	}
	if int(n.Sect) >= sectionCount {
		panic("codec: section index out of range")
	}
}

// Sort orders notes by (t ascending, dur ascending): ascending dur already
// puts grace notes (negative) before non-grace (positive) at equal t, and
// orders a grace run by decreasing magnitude.
func (d *Data) Sort() {
	sort.SliceStable(d.notes, func(i, j int) bool {
		if d.notes[i].T != d.notes[j].T {
			return d.notes[i].T < d.notes[j].T
		}
		return d.notes[i].Dur < d.notes[j].Dur
	})
}

// Serialize writes d to w in NMF wire format. It fails if d has no notes.
func Serialize(d *Data, w io.Writer) error {
	if len(d.notes) < 1 {
		return errors.New("codec: cannot serialize a file with zero notes")
	}

	bw := bufio.NewWriter(w)

	fields := []interface{}{
		sigPrimary,
		sigSecondary,
		uint16(d.basis),
		uint16(len(d.sections)),
		uint32(len(d.notes)),
	}
	for _, f := range fields {
		if err := binary.Write(bw, binary.BigEndian, f); err != nil {
			return errors.Wrap(err, "codec: writing header")
		}
	}

	for _, off := range d.sections {
		if err := binary.Write(bw, binary.BigEndian, uint32(off)); err != nil {
			return errors.Wrap(err, "codec: writing section table")
		}
	}

	for _, n := range d.notes {
		if err := binary.Write(bw, binary.BigEndian, uint32(n.T)); err != nil {
			return errors.Wrap(err, "codec: writing note")
		}
		if err := writeBias32(bw, n.Dur); err != nil {
			return err
		}
		if err := writeBias16(bw, int32(n.Pitch)); err != nil {
			return err
		}
		for _, f := range []uint16{n.Art, n.Sect, n.LayerI} {
			if err := binary.Write(bw, binary.BigEndian, f); err != nil {
				return errors.Wrap(err, "codec: writing note")
			}
		}
	}

	return bw.Flush()
}

func writeBias32(w io.Writer, v int32) error {
	raw := uint32(int64(v) + bias32)
	if err := binary.Write(w, binary.BigEndian, raw); err != nil {
		return errors.Wrap(err, "codec: writing bias32")
	}
	return nil
}

func writeBias16(w io.Writer, v int32) error {
	raw := uint16(int32(v) + bias16)
	if err := binary.Write(w, binary.BigEndian, raw); err != nil {
		return errors.Wrap(err, "codec: writing bias16")
	}
	return nil
}

// readUint32 reads a plain uint32 primitive and enforces its MSB-zero
// range constraint, rejecting any raw value above 2147483647.
func readUint32(r io.Reader) (uint32, error) {
	var raw uint32
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return 0, errors.Wrap(err, "codec: reading uint32")
	}
	if raw > maxUint32 {
		return 0, errors.New(fmt.Sprintf("codec: uint32 value %d exceeds 2^31-1", raw))
	}
	return raw, nil
}

func readBias32(r io.Reader) (int32, error) {
	var raw uint32
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return 0, errors.Wrap(err, "codec: reading bias32")
	}
	if raw == 0 {
		return 0, errors.New("codec: reserved raw value 0 in bias32 field")
	}
	return int32(int64(raw) - bias32), nil
}

func readBias16(r io.Reader) (int32, error) {
	var raw uint16
	if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
		return 0, errors.Wrap(err, "codec: reading bias16")
	}
	if raw == 0 {
		return 0, errors.New("codec: reserved raw value 0 in bias16 field")
	}
	return int32(raw) - bias16, nil
}

// Parse reads an NMF file from r, validating signatures and field ranges
// but not the sort order of notes. Use ParseStrict to also require sorted
// order.
func Parse(r io.Reader) (*Data, error) {
	return parse(r, false)
}

// ParseStrict behaves like Parse but additionally rejects files whose
// notes are not ordered by (t ascending, dur ascending).
func ParseStrict(r io.Reader) (*Data, error) {
	return parse(r, true)
}

func parse(r io.Reader, strict bool) (*Data, error) {
	br := bufio.NewReader(r)

	var sigA, sigB uint32
	if err := binary.Read(br, binary.BigEndian, &sigA); err != nil {
		return nil, errors.Wrap(err, "codec: reading primary signature")
	}
	if err := binary.Read(br, binary.BigEndian, &sigB); err != nil {
		return nil, errors.Wrap(err, "codec: reading secondary signature")
	}
	if sigA != sigPrimary || sigB != sigSecondary {
		return nil, errors.New(fmt.Sprintf("codec: bad signature %d/%d", sigA, sigB))
	}

	var basisRaw uint16
	if err := binary.Read(br, binary.BigEndian, &basisRaw); err != nil {
		return nil, errors.Wrap(err, "codec: reading basis")
	}
	if !Basis(basisRaw).valid() {
		return nil, errors.New(fmt.Sprintf("codec: invalid basis %d", basisRaw))
	}

	var sectCount uint16
	if err := binary.Read(br, binary.BigEndian, &sectCount); err != nil {
		return nil, errors.Wrap(err, "codec: reading section count")
	}
	if sectCount < 1 {
		return nil, errors.New("codec: section count must be at least 1")
	}

	var noteCount uint32
	if err := binary.Read(br, binary.BigEndian, &noteCount); err != nil {
		return nil, errors.Wrap(err, "codec: reading note count")
	}
	if noteCount < 1 || noteCount > maxNotes {
		return nil, errors.New(fmt.Sprintf("codec: note count %d out of range", noteCount))
	}

	sections := make([]int32, sectCount)
	for i := range sections {
		v, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		if i == 0 && v != 0 {
			return nil, errors.New("codec: first section offset must be 0")
		}
		if i > 0 && int32(v) < sections[i-1] {
			return nil, errors.New("codec: section offsets must be non-decreasing")
		}
		sections[i] = int32(v)
	}

	notes := make([]Note, noteCount)
	for i := range notes {
		t, err := readUint32(br)
		if err != nil {
			return nil, err
		}
		dur, err := readBias32(br)
		if err != nil {
			return nil, err
		}
		pitch, err := readBias16(br)
		if err != nil {
			return nil, err
		}
		var art, sect, layerI uint16
		if err := binary.Read(br, binary.BigEndian, &art); err != nil {
			return nil, errors.Wrap(err, "codec: reading note")
		}
		if err := binary.Read(br, binary.BigEndian, &sect); err != nil {
			return nil, errors.Wrap(err, "codec: reading note")
		}
		if err := binary.Read(br, binary.BigEndian, &layerI); err != nil {
			return nil, errors.Wrap(err, "codec: reading note")
		}

		if int(sect) >= int(sectCount) {
			return nil, errors.New(fmt.Sprintf("codec: note %d references section %d out of range", i, sect))
		}
		if int32(t) < sections[sect] {
			return nil, errors.New(fmt.Sprintf("codec: note %d has t before its section start", i))
		}
		if dur != 0 {
			if pitch < minPitch || pitch > maxPitch {
				return nil, errors.New(fmt.Sprintf("codec: note %d pitch out of range", i))
			}
			if art > maxArt {
				return nil, errors.New(fmt.Sprintf("codec: note %d articulation out of range", i))
			}
		}

		notes[i] = Note{T: int32(t), Dur: dur, Pitch: int16(pitch), Art: art, Sect: sect, LayerI: layerI}

		if strict && i > 0 {
			prev := notes[i-1]
			if notes[i].T < prev.T || (notes[i].T == prev.T && notes[i].Dur < prev.Dur) {
				return nil, errors.New(fmt.Sprintf("codec: note %d out of sort order", i))
			}
		}
	}

	return &Data{basis: Basis(basisRaw), sections: sections, notes: notes}, nil
}
