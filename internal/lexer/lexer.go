// Package lexer implements the Noir byte-stream filter and tokenizer: it
// strips a UTF-8 BOM, rejects NUL, normalizes line endings, discards
// "#" comments, and classifies whatever remains into tokens.
package lexer

import (
	"bufio"
	"io"

	"noirc/internal/noirerr"
	"noirc/internal/token"
)

const (
	byteNul = 0x00
	byteHT  = 0x09
	byteLF  = 0x0A
	byteCR  = 0x0D
	byteSP  = 0x20

	byteExclaim = '!'
	byteNumsign = '#'
	byteDollar  = '$'
	byteAmp     = '&'
	byteApos    = '\''
	byteLParen  = '('
	byteRParen  = ')'
	byteStar    = '*'
	bytePlus    = '+'
	byteComma   = ','
	byteHyphen  = '-'
	bytePeriod  = '.'
	byteSlash   = '/'
	byteZero    = '0'
	byteNine    = '9'
	byteColon   = ':'
	byteSemicol = ';'
	byteEquals  = '='
	byteAtsign  = '@'
	byteAUpper  = 'A'
	byteGUpper  = 'G'
	byteHUpper  = 'H'
	byteNUpper  = 'N'
	byteRUpper  = 'R'
	byteSUpper  = 'S'
	byteTUpper  = 'T'
	byteXUpper  = 'X'
	byteLSquare = '['
	byteBSlash  = '\\'
	byteRSquare = ']'
	byteCaret   = '^'
	byteALower  = 'a'
	byteGLower  = 'g'
	byteHLower  = 'h'
	byteNLower  = 'n'
	byteRLower  = 'r'
	byteSLower  = 's'
	byteTLower  = 't'
	byteXLower  = 'x'
	byteLCurly  = '{'
	byteRCurly  = '}'
	byteTilde   = '~'
	byteGraveOp = '`'

	byteMinPrint = 0x21
	byteMaxPrint = 0x7E
)

// Lexer turns a byte stream into a sequence of tokens: UTF-8 BOM
// stripped, NUL rejected, line endings normalized to LF, "#" comments
// discarded, and the five-way token classification applied to whatever
// remains.
type Lexer struct {
	r         *bufio.Reader
	first     bool
	prev      int  // previous filtered byte, or -1 if none read yet, or 0 for EOF
	line      int32
	pushback  int // -1 if empty
}

// New wraps r for tokenization. The line counter starts at 1, counting
// from the first line rather than from zero.
func New(r io.Reader) *Lexer {
	return &Lexer{
		r:        bufio.NewReader(r),
		first:    true,
		prev:     -1,
		line:     1,
		pushback: -1,
	}
}

// Line reports the current line counter, for embedding in errors raised
// outside of Next (e.g. by the entity parser after a successful token
// read).
func (l *Lexer) Line() int32 {
	return l.line
}

// readByteFilter reads one raw byte and strips the UTF-8 BOM, rejects
// NUL, and normalizes CRLF/LFCR pairs to a single line break. It
// returns the filtered byte (1-255), 0 for EOF, or an error.
func (l *Lexer) readByteFilter() (int, error) {
	c, err := l.r.ReadByte()
	var ci int
	if err == io.EOF {
		// End of file: represented as a successful read of a terminating
		// zero, distinct from an actual NUL byte because no error was
		// returned to read it. A real NUL is only ever detected in the
		// branch below, where a byte was genuinely read.
		ci = 0
	} else if err != nil {
		return -1, noirerr.New(noirerr.IoRead, l.line)
	} else {
		ci = int(c)
		if ci == byteNul {
			return -1, noirerr.New(noirerr.NulChar, l.line)
		}
	}

	if l.first {
		l.first = false
		if ci == 0xEF {
			b1, err1 := l.r.ReadByte()
			b2, err2 := l.r.ReadByte()
			if err1 != nil || err2 != nil || b1 != 0xBB || b2 != 0xBF {
				return -1, noirerr.New(noirerr.BadChar, l.line)
			}
			return l.readByteFilter()
		}
	}

	if (ci == byteLF && l.prev == int(byteCR)) || (ci == byteCR && l.prev == int(byteLF)) {
		l.prev = -1
		return l.readByteFilter()
	}

	l.prev = ci
	if ci == byteCR {
		ci = byteLF
	}
	return ci, nil
}

// readByteFinal applies comment stripping and line counting on top of
// readByteFilter, and serves the pushback register first when non-empty.
func (l *Lexer) readByteFinal() (int, error) {
	if l.pushback >= 0 {
		c := l.pushback
		l.pushback = -1
		return c, nil
	}

	c, err := l.readByteFilter()
	if err != nil {
		return -1, err
	}

	if c == byteNumsign {
		for {
			c, err = l.readByteFilter()
			if err != nil {
				return -1, err
			}
			if c <= 0 || c == byteLF {
				break
			}
		}
	}

	if c == byteLF {
		if l.line < 1<<31-1 {
			l.line++
		} else {
			return -1, noirerr.New(noirerr.OverLine, l.line)
		}
	}

	return c, nil
}

func (l *Lexer) pushbackByte(c int) {
	l.pushback = c
}

func isWhitespace(c int) bool {
	return c == int(byteSP) || c == int(byteHT) || c == int(byteLF) || c == int(byteCR)
}

func isPrinting(c int) bool {
	return c >= byteMinPrint && c <= byteMaxPrint
}

func isSuffix(c int) bool {
	return c == byteApos || c == byteComma || c == bytePeriod
}

func isAccidental(c int) bool {
	switch c {
	case byteXLower, byteXUpper, byteSLower, byteSUpper,
		byteNLower, byteNUpper, byteHLower, byteHUpper,
		byteTLower, byteTUpper:
		return true
	}
	return false
}

func isAtomic(c int) bool {
	switch c {
	case byteLParen, byteRParen, byteRUpper, byteRLower,
		byteLSquare, byteRSquare, byteSlash, byteDollar,
		byteAtsign, byteLCurly, byteColon, byteRCurly,
		byteEquals, byteTilde, byteHyphen:
		return true
	}
	return false
}

func isPitchStart(c int) bool {
	return (c >= byteAUpper && c <= byteGUpper) || (c >= byteALower && c <= byteGLower)
}

func isRhythmStart(c int) bool {
	return c >= byteZero && c <= byteNine
}

func isParamOp(c int) bool {
	switch c {
	case byteBSlash, byteCaret, byteAmp, bytePlus, byteGraveOp:
		return true
	}
	return false
}

func isKeyOp(c int) bool {
	return c == byteStar || c == byteExclaim
}

// Next reads and returns the next token. End of input is reported as a
// successful token.Token{Kind: token.EOF, Text: ""}.
func (l *Lexer) Next() (token.Token, error) {
	var buf []byte

	var c int
	var err error
	for {
		c, err = l.readByteFinal()
		if err != nil {
			return token.Token{}, err
		}
		if c > 0 && isWhitespace(c) {
			continue
		}
		break
	}

	line := l.line

	if c <= 0 {
		return token.Token{Kind: token.EOF, Text: "", Line: line}, nil
	}

	buf = append(buf, byte(c))

	if isAtomic(c) {
		return token.Token{Kind: token.Atomic, Text: string(buf), Line: line}, nil
	}

	switch {
	case isPitchStart(c):
		for {
			c, err = l.readByteFinal()
			if err != nil {
				return token.Token{}, err
			}
			if !isAccidental(c) {
				break
			}
			if len(buf) >= token.MaxChars {
				return token.Token{}, noirerr.New(noirerr.LongToken, line)
			}
			buf = append(buf, byte(c))
		}
		if c < 0 {
			return token.Token{}, noirerr.New(noirerr.IoRead, line)
		}
		l.pushbackByte(c)

		for {
			c, err = l.readByteFinal()
			if err != nil {
				return token.Token{}, err
			}
			if !isSuffix(c) {
				break
			}
			if len(buf) >= token.MaxChars {
				return token.Token{}, noirerr.New(noirerr.LongToken, line)
			}
			buf = append(buf, byte(c))
		}
		l.pushbackByte(c)
		return token.Token{Kind: token.PitchStart, Text: string(buf), Line: line}, nil

	case isRhythmStart(c):
		c, err = l.readByteFinal()
		if err != nil {
			return token.Token{}, err
		}
		if isSuffix(c) {
			buf = append(buf, byte(c))
		} else {
			l.pushbackByte(c)
		}
		return token.Token{Kind: token.RhythmStart, Text: string(buf), Line: line}, nil

	case isParamOp(c):
		for {
			c, err = l.readByteFinal()
			if err != nil {
				return token.Token{}, err
			}
			if !isPrinting(c) || c == byteSemicol {
				break
			}
			if len(buf) >= token.MaxChars {
				return token.Token{}, noirerr.New(noirerr.LongToken, line)
			}
			buf = append(buf, byte(c))
		}
		if c != byteSemicol {
			return token.Token{}, noirerr.New(noirerr.ParamTk, line)
		}
		if len(buf) >= token.MaxChars {
			return token.Token{}, noirerr.New(noirerr.LongToken, line)
		}
		buf = append(buf, byte(c))
		return token.Token{Kind: token.ParamOp, Text: string(buf), Line: line}, nil

	case isKeyOp(c):
		c, err = l.readByteFinal()
		if err != nil {
			return token.Token{}, err
		}
		if !isPrinting(c) {
			return token.Token{}, noirerr.New(noirerr.KeyToken, line)
		}
		buf = append(buf, byte(c))
		return token.Token{Kind: token.KeyOp, Text: string(buf), Line: line}, nil

	default:
		return token.Token{}, noirerr.New(noirerr.BadChar, line)
	}
}
