package ioreader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAll(t *testing.T) {
	r := New(strings.NewReader("hello, 世界"))
	s, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello, 世界", s)
}

func TestReadLine(t *testing.T) {
	r := New(strings.NewReader("one\ntwo\nthree"))
	line, ok, err := r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one", line)

	line, ok, err = r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", line)

	line, ok, err = r.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "three", line)

	_, ok, err = r.ReadLine()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadBytesExactAndShort(t *testing.T) {
	r := New(strings.NewReader("abcde"))
	data, ok, err := r.ReadBytes(3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), data)

	data, ok, err = r.ReadBytes(10)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("de"), data)

	_, ok, err = r.ReadBytes(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42 rest", 42, true},
		{"-3.5", -3.5, true},
		{"1e10", 1e10, true},
		{"+2.5e-3", 2.5e-3, true},
		{"abc", 0, false},
	}
	for _, c := range cases {
		r := New(strings.NewReader(c.in))
		got, ok, err := r.ReadNumber()
		require.NoError(t, err)
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 1e-9, c.in)
		}
	}
}

func TestReadNumberLeavesTrailingTextUnread(t *testing.T) {
	r := New(strings.NewReader("42 rest"))
	_, ok, err := r.ReadNumber()
	require.NoError(t, err)
	require.True(t, ok)
	rest, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, " rest", rest)
}

func TestReadUnicodeRespectsCodePointBoundaries(t *testing.T) {
	r := New(strings.NewReader("日本語"))
	s, ok, err := r.ReadUnicode("2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "日本", s)

	rest, ok, err := r.ReadUnicode("*a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "語", rest)
}

func TestReadUnicodeLine(t *testing.T) {
	r := New(strings.NewReader("héllo\nworld"))
	line, ok, err := r.ReadUnicode("*l")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "héllo", line)
}
