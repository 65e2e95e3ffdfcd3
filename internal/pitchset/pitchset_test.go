package pitchset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"noirc/internal/pitchset"
)

func TestAddContainsIdempotent(t *testing.T) {
	var s pitchset.Set
	assert.True(t, s.IsEmpty())

	s.Add(0)
	s.Add(0)
	assert.True(t, s.Contains(0))
	assert.False(t, s.IsEmpty())

	s.Drop(0)
	assert.False(t, s.Contains(0))
	assert.True(t, s.IsEmpty())
}

func TestAddNegativeAndPositive(t *testing.T) {
	var s pitchset.Set
	s.Add(-39)
	s.Add(48)
	s.Add(-1)
	s.Add(0)

	assert.Equal(t, -39, s.Least())
	assert.Equal(t, 48, s.Most())
}

func TestEachAscending(t *testing.T) {
	var s pitchset.Set
	for _, p := range []int{7, -3, 0, -39, 48, -1} {
		s.Add(p)
	}

	var got []int
	s.Each(func(p int) { got = append(got, p) })

	assert.Equal(t, []int{-39, -3, -1, 0, 7, 48}, got)
}

func TestTransposeSuccess(t *testing.T) {
	var s pitchset.Set
	s.Add(0)
	s.Add(4)
	s.Add(7)

	out, ok := s.Transpose(2)
	assert.True(t, ok)
	assert.True(t, out.Contains(2))
	assert.True(t, out.Contains(6))
	assert.True(t, out.Contains(9))
	assert.False(t, out.Contains(0))
}

func TestTransposeOverflowLeavesRangeFails(t *testing.T) {
	var s pitchset.Set
	s.Add(48)

	out, ok := s.Transpose(1)
	assert.False(t, ok)
	assert.True(t, out.Contains(48))
}

func TestTransposeRoundTripIsIdentity(t *testing.T) {
	var s pitchset.Set
	s.Add(-10)
	s.Add(5)
	s.Add(20)

	up, ok := s.Transpose(6)
	assert.True(t, ok)
	back, ok := up.Transpose(-6)
	assert.True(t, ok)
	assert.Equal(t, s, back)
}

func TestTransposeEmptySetAlwaysSucceeds(t *testing.T) {
	var s pitchset.Set
	out, ok := s.Transpose(1000)
	assert.True(t, ok)
	assert.True(t, out.IsEmpty())
}

func TestAddOutOfRangePanics(t *testing.T) {
	var s pitchset.Set
	assert.Panics(t, func() { s.Add(49) })
	assert.Panics(t, func() { s.Add(-40) })
}
