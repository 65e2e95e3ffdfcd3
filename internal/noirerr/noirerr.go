// Package noirerr defines the single error-kind enumeration shared by every
// stage of the Noir compiler: lexer, entity parser, virtual machine, and
// the compile pipeline. A Kind carries no payload of its own; callers attach the source
// line via New, and internal invariant violations that should never occur
// with well-formed callers still panic rather than returning an error.
package noirerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the reason a compile failed. The zero value is never a
// valid Kind in an Error; OK exists only for callers that want to compare
// against "no error occurred" without a nil check.
type Kind int

const (
	OK Kind = iota
	IoRead
	NulChar
	BadChar
	OverLine
	KeyToken
	ParamTk
	LongToken
	Right
	Unclosed
	TooDeep
	InGrace
	LongDur
	BadDur
	BadPitch
	PitchR
	TransRng
	BadOp
	MultCount
	BadLayer
	Underflow
	StackFull
	Linger
	DangleArt
	NoLoc
	NoPitch
	NoDur
	HugeTrans
	HugeGrace
	LongPiece
	ManySect
	ManyNotes
	CueNum
	Empty
)

var messages = map[Kind]string{
	IoRead:    "read error",
	NulChar:   "nul character in input",
	BadChar:   "invalid character",
	OverLine:  "too many lines",
	KeyToken:  "bad key operation token",
	ParamTk:   "bad parameter operation token",
	LongToken: "token too long",
	Right:     "unmatched closing bracket",
	Unclosed:  "unclosed pitch group",
	TooDeep:   "pitch group nesting too deep",
	InGrace:   "grace note cannot appear in a rhythm group",
	LongDur:   "duration overflow",
	BadDur:    "invalid duration",
	BadPitch:  "invalid pitch",
	PitchR:    "pitch out of range",
	TransRng:  "transposed pitch out of range",
	BadOp:     "invalid operator parameter",
	MultCount: "invalid repeat count",
	BadLayer:  "invalid layer number",
	Underflow: "stack underflow",
	StackFull: "stack overflow",
	Linger:    "stacks not empty at section boundary",
	DangleArt: "articulation not consumed",
	NoLoc:     "no location on stack",
	NoPitch:   "no pitch set defined",
	NoDur:     "no duration defined",
	HugeTrans: "transposition overflow",
	HugeGrace: "grace note run too long",
	LongPiece: "cursor overflow",
	ManySect:  "too many sections",
	ManyNotes: "too many notes",
	CueNum:    "cue number out of range",
	Empty:     "compilation yielded zero notes",
}

func (k Kind) String() string {
	if s, ok := messages[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is a Kind paired with the source line at which the fault was
// detected. Line is zero when the location is not meaningful (e.g. Empty,
// which is only ever raised once the whole input has been consumed).
type Error struct {
	Kind Kind
	Line int32
}

func (e *Error) Error() string {
	return e.Kind.String()
}

// New builds an Error for the given kind and line.
func New(kind Kind, line int32) error {
	return errors.WithStack(&Error{Kind: kind, Line: line})
}

// As extracts the *Error carried by err, unwrapping github.com/pkg/errors
// wrapping along the way. The second return is false if err does not
// carry a *noirerr.Error anywhere in its chain.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Diagnostic renders the CLI-facing message "<module>: [Line <n>]
// <message>!" with the line clause omitted when the line is not
// meaningful.
func Diagnostic(module string, err error) string {
	ne, ok := As(err)
	if !ok {
		return fmt.Sprintf("%s: %s!", module, err.Error())
	}
	if ne.Line > 0 {
		return fmt.Sprintf("%s: [Line %d] %s!", module, ne.Line, ne.Kind.String())
	}
	return fmt.Sprintf("%s: %s!", module, ne.Kind.String())
}
