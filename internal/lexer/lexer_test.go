package lexer_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noirc/internal/lexer"
	"noirc/internal/noirerr"
	"noirc/internal/token"
)

func readAll(t *testing.T, src string) []token.Token {
	t.Helper()
	lex := lexer.New(strings.NewReader(src))
	var toks []token.Token
	for {
		tok, err := lex.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.IsEOF() {
			break
		}
	}
	return toks
}

func TestAtomicAndPitchTokens(t *testing.T) {
	toks := readAll(t, "( ) cs'")
	require.Len(t, toks, 4)
	assert.Equal(t, token.Atomic, toks[0].Kind)
	assert.Equal(t, "(", toks[0].Text)
	assert.Equal(t, token.Atomic, toks[1].Kind)
	assert.Equal(t, ")", toks[1].Text)
	assert.Equal(t, token.PitchStart, toks[2].Kind)
	assert.Equal(t, "cs'", toks[2].Text)
	assert.True(t, toks[3].IsEOF())
}

func TestRhythmTokenWithSuffix(t *testing.T) {
	toks := readAll(t, "5. 3,")
	require.Len(t, toks, 3)
	assert.Equal(t, token.RhythmStart, toks[0].Kind)
	assert.Equal(t, "5.", toks[0].Text)
	assert.Equal(t, "3,", toks[1].Text)
}

func TestParamOpToken(t *testing.T) {
	toks := readAll(t, "^12;")
	require.Len(t, toks, 2)
	assert.Equal(t, token.ParamOp, toks[0].Kind)
	assert.Equal(t, "^12;", toks[0].Text)
}

func TestParamOpMissingSemicolonErrors(t *testing.T) {
	lex := lexer.New(strings.NewReader("^12"))
	_, err := lex.Next()
	ne, ok := noirerr.As(err)
	require.True(t, ok)
	assert.Equal(t, noirerr.ParamTk, ne.Kind)
}

func TestKeyOpToken(t *testing.T) {
	toks := readAll(t, "*z")
	require.Len(t, toks, 2)
	assert.Equal(t, token.KeyOp, toks[0].Kind)
	assert.Equal(t, "*z", toks[0].Text)
}

func TestCommentsStripped(t *testing.T) {
	toks := readAll(t, "c # rest of line ignored\nd")
	require.Len(t, toks, 3)
	assert.Equal(t, "c", toks[0].Text)
	assert.Equal(t, "d", toks[1].Text)
	assert.Equal(t, int32(2), toks[1].Line)
}

func TestCRLFNormalizedToSingleLineBreak(t *testing.T) {
	toks := readAll(t, "c\r\nd\ne")
	require.Len(t, toks, 4)
	assert.Equal(t, int32(1), toks[0].Line)
	assert.Equal(t, int32(2), toks[1].Line)
	assert.Equal(t, int32(3), toks[2].Line)
}

func TestBOMStripped(t *testing.T) {
	toks := readAll(t, "\xEF\xBB\xBFc")
	require.Len(t, toks, 2)
	assert.Equal(t, "c", toks[0].Text)
}

func TestNulByteRejected(t *testing.T) {
	lex := lexer.New(strings.NewReader("c\x00d"))
	_, err := lex.Next()
	require.NoError(t, err)
	_, err = lex.Next()
	ne, ok := noirerr.As(err)
	require.True(t, ok)
	assert.Equal(t, noirerr.NulChar, ne.Kind)
}

func TestBadCharErrors(t *testing.T) {
	lex := lexer.New(strings.NewReader("%"))
	_, err := lex.Next()
	ne, ok := noirerr.As(err)
	require.True(t, ok)
	assert.Equal(t, noirerr.BadChar, ne.Kind)
}
