// Package vm implements the compiler's stateful virtual machine: the
// cursor and current-pitch/duration registers, the four bounded stacks,
// note emission, and grace-note flush. State lives on a VM value with the
// lifetime of one compile, and each method performs one step of
// interpretation against that owned state.
package vm

import (
	"math"

	"noirc/internal/codec"
	"noirc/internal/eventbuf"
	"noirc/internal/noirerr"
	"noirc/internal/pitchset"
)

const (
	maxStackDepth = 1024
	maxLayer      = 65536
	maxSect       = 65535
	maxCue        = 0x3dffff
)

// layerReg pairs a section index with a zero-based layer index, matching
// NVM_LAYERREG.
type layerReg struct {
	sect   uint16
	layerI uint16
}

// VM drives one compile: it owns every register and stack, and appends
// finished events to buf.
type VM struct {
	buf *eventbuf.Buffer

	cursor int32

	pitchFilled bool
	pitchReg    pitchset.Set

	// durReg: -1 undefined, 0 grace, >0 measured duration.
	durReg int32

	sect  int32
	baset int32

	baseLayer layerReg

	// immArt: -1 empty.
	immArt int32

	graceCount  int32
	graceOffset int32

	locStack   []int32
	transStack []int32
	artStack   []int32
	layerStack []layerReg
}

// New returns a VM with all registers at their initial state, appending
// notes and sections to buf.
func New(buf *eventbuf.Buffer) *VM {
	return &VM{
		buf:    buf,
		durReg: -1,
		immArt: -1,
	}
}

func (v *VM) stacksLinger() bool {
	return len(v.locStack) != 0 || len(v.transStack) != 0 ||
		len(v.layerStack) != 0 || len(v.artStack) != 0
}

func (v *VM) graceFlush() {
	if v.graceCount > 0 {
		v.buf.Flip(v.graceCount, v.graceOffset)
	}
	v.graceCount = 0
	v.graceOffset = 0
}

// resetCurrent flushes any pending grace run and clears the pitch and
// duration registers, matching nvm_resetCurrent.
func (v *VM) resetCurrent() {
	v.graceFlush()
	v.pitchFilled = false
	v.pitchReg = pitchset.Set{}
	v.durReg = -1
}

// PitchSet applies the current transposition to ps, stores it in the
// pitch register, and runs repeat semantics.
func (v *VM) PitchSet(ps pitchset.Set, line int32) error {
	var trans int32
	if n := len(v.transStack); n > 0 {
		trans = v.transStack[n-1]
	}

	transposed, ok := ps.Transpose(int(trans))
	if !ok {
		return noirerr.New(noirerr.TransRng, line)
	}

	v.pitchReg = transposed
	v.pitchFilled = true
	return v.repeat(line)
}

// Duration flushes a pending grace run if the duration is changing away
// from grace, then stores q in the duration register.
func (v *VM) Duration(q int32, line int32) error {
	if v.durReg == 0 && q != 0 {
		v.graceFlush()
	}
	v.durReg = q
	return nil
}

// Repeat runs repeat semantics once, for the bare "/" operator.
func (v *VM) Repeat(line int32) error {
	return v.repeat(line)
}

// RepeatN runs repeat semantics n times, for the "\n" operator.
func (v *VM) RepeatN(n int32, line int32) error {
	if n < 1 {
		return noirerr.New(noirerr.MultCount, line)
	}
	for i := int32(0); i < n; i++ {
		if err := v.repeat(line); err != nil {
			return err
		}
	}
	return nil
}

// repeat chooses duration, articulation, and layer, emits one event per
// pitch in ascending order, and advances the cursor.
func (v *VM) repeat(line int32) error {
	if !v.pitchFilled {
		return noirerr.New(noirerr.NoPitch, line)
	}
	if v.durReg < 0 {
		return noirerr.New(noirerr.NoDur, line)
	}

	if v.durReg == 0 {
		if v.graceOffset == math.MaxInt32 {
			return noirerr.New(noirerr.HugeGrace, line)
		}
		v.graceOffset++
	}

	var d int32
	if v.graceOffset > 0 {
		d = -v.graceOffset
	} else {
		d = v.durReg
	}

	var art int32
	if v.immArt >= 0 {
		art = v.immArt
		v.immArt = -1
	} else if n := len(v.artStack); n > 0 {
		art = v.artStack[n-1]
	}

	lr := v.baseLayer
	if n := len(v.layerStack); n > 0 {
		lr = v.layerStack[n-1]
	}

	ps := v.pitchReg
	for !ps.IsEmpty() {
		pitch := ps.Least()
		ps.Drop(pitch)

		note := codec.Note{
			T:      v.cursor,
			Dur:    d,
			Pitch:  int16(pitch),
			Art:    uint16(art),
			Sect:   lr.sect,
			LayerI: lr.layerI,
		}
		if !v.buf.AppendNote(note) {
			return noirerr.New(noirerr.ManyNotes, line)
		}

		if d < 0 {
			if v.graceCount == math.MaxInt32 {
				return noirerr.New(noirerr.HugeGrace, line)
			}
			v.graceCount++
		}
	}

	if d > 0 {
		if v.cursor > math.MaxInt32-d {
			return noirerr.New(noirerr.LongPiece, line)
		}
		v.cursor += d
	}

	return nil
}

// NewSection starts a new section at the cursor's current position.
func (v *VM) NewSection(line int32) error {
	if v.stacksLinger() {
		return noirerr.New(noirerr.Linger, line)
	}
	if v.immArt >= 0 {
		return noirerr.New(noirerr.DangleArt, line)
	}
	if v.sect >= maxSect-1 {
		return noirerr.New(noirerr.ManySect, line)
	}

	v.sect++
	if !v.buf.AddSection(v.cursor) {
		return noirerr.New(noirerr.ManySect, line)
	}

	v.resetCurrent()
	v.baset = v.cursor
	v.baseLayer = layerReg{sect: uint16(v.sect), layerI: 0}
	return nil
}

// Rewind jumps the cursor back to the start of the current section.
func (v *VM) Rewind(line int32) error {
	if v.stacksLinger() {
		return noirerr.New(noirerr.Linger, line)
	}
	if v.immArt >= 0 {
		return noirerr.New(noirerr.DangleArt, line)
	}

	v.resetCurrent()
	v.cursor = v.baset
	v.baseLayer.layerI = 0
	return nil
}

// PushLoc bookmarks the cursor on the location stack.
func (v *VM) PushLoc(line int32) error {
	if len(v.locStack) >= maxStackDepth {
		return noirerr.New(noirerr.StackFull, line)
	}
	v.locStack = append(v.locStack, v.cursor)
	return nil
}

// ReturnLoc jumps the cursor to the bookmark on top of the location
// stack, without popping it.
func (v *VM) ReturnLoc(line int32) error {
	if v.immArt >= 0 {
		return noirerr.New(noirerr.DangleArt, line)
	}
	n := len(v.locStack)
	if n == 0 {
		return noirerr.New(noirerr.NoLoc, line)
	}

	newloc := v.locStack[n-1]
	v.resetCurrent()
	v.cursor = newloc
	return nil
}

// PopLoc discards the bookmark on top of the location stack.
func (v *VM) PopLoc(line int32) error {
	n := len(v.locStack)
	if n == 0 {
		return noirerr.New(noirerr.Underflow, line)
	}
	v.locStack = v.locStack[:n-1]
	return nil
}

// PushTrans pushes a new cumulative transposition (relative to the
// current top of the stack, or zero if empty).
func (v *VM) PushTrans(n int32, line int32) error {
	var newtrans int64
	if top := len(v.transStack); top > 0 {
		newtrans = int64(v.transStack[top-1]) + int64(n)
		if newtrans < math.MinInt32 || newtrans > math.MaxInt32 {
			return noirerr.New(noirerr.HugeTrans, line)
		}
	} else {
		newtrans = int64(n)
	}

	if len(v.transStack) >= maxStackDepth {
		return noirerr.New(noirerr.StackFull, line)
	}
	v.transStack = append(v.transStack, int32(newtrans))
	return nil
}

// PopTrans discards the transposition on top of the stack.
func (v *VM) PopTrans(line int32) error {
	n := len(v.transStack)
	if n == 0 {
		return noirerr.New(noirerr.Underflow, line)
	}
	v.transStack = v.transStack[:n-1]
	return nil
}

// ImmArt sets the one-shot articulation register.
func (v *VM) ImmArt(k int32, line int32) error {
	v.immArt = k
	return nil
}

// PushArt pushes an articulation onto the articulation stack.
func (v *VM) PushArt(k int32, line int32) error {
	if len(v.artStack) >= maxStackDepth {
		return noirerr.New(noirerr.StackFull, line)
	}
	v.artStack = append(v.artStack, k)
	return nil
}

// PopArt discards the articulation on top of the stack.
func (v *VM) PopArt(line int32) error {
	n := len(v.artStack)
	if n == 0 {
		return noirerr.New(noirerr.Underflow, line)
	}
	v.artStack = v.artStack[:n-1]
	return nil
}

// SetBaseLayer sets the default layer used when the layer stack is empty.
func (v *VM) SetBaseLayer(n int32, line int32) error {
	if n < 1 || n > maxLayer {
		return noirerr.New(noirerr.BadLayer, line)
	}
	v.baseLayer.layerI = uint16(n - 1)
	return nil
}

// PushLayer pushes a layer, tagged with the current section, onto the
// layer stack.
func (v *VM) PushLayer(n int32, line int32) error {
	if n < 1 || n > maxLayer {
		return noirerr.New(noirerr.BadLayer, line)
	}
	if len(v.layerStack) >= maxStackDepth {
		return noirerr.New(noirerr.StackFull, line)
	}
	v.layerStack = append(v.layerStack, layerReg{sect: uint16(v.sect), layerI: uint16(n - 1)})
	return nil
}

// PopLayer discards the layer on top of the stack.
func (v *VM) PopLayer(line int32) error {
	n := len(v.layerStack)
	if n == 0 {
		return noirerr.New(noirerr.Underflow, line)
	}
	v.layerStack = v.layerStack[:n-1]
	return nil
}

// Cue flushes any pending grace run and emits a cue event at the cursor,
// encoding c across the art (high 16 bits) and layer_i (low 16 bits)
// fields.
func (v *VM) Cue(c int32, line int32) error {
	if c < 0 || c > maxCue {
		return noirerr.New(noirerr.CueNum, line)
	}
	v.graceFlush()

	note := codec.Note{
		T:      v.cursor,
		Dur:    0,
		Pitch:  0,
		Art:    uint16(c >> 16),
		Sect:   uint16(v.sect),
		LayerI: uint16(c & 0xFFFF),
	}
	if !v.buf.AppendNote(note) {
		return noirerr.New(noirerr.ManyNotes, line)
	}
	return nil
}

// EOF checks that every stack and the immediate articulation register is
// empty, then flushes any pending grace run.
func (v *VM) EOF(line int32) error {
	if v.stacksLinger() {
		return noirerr.New(noirerr.Linger, line)
	}
	if v.immArt >= 0 {
		return noirerr.New(noirerr.DangleArt, line)
	}
	v.graceFlush()
	return nil
}
