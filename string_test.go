package javaio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModifiedUTF8(t *testing.T) {
	for _, tc := range []struct {
		s       string
		encoded []byte
	}{
		{"", []byte{}},
		{"abc", []byte("abc")},
		{"\x00", []byte{0xc0, 0x80}},
		{"é", []byte{0xc3, 0xa9}},
		{"€", []byte{0xe2, 0x82, 0xac}},
		{"😀", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}},
	} {
		assert.Equal(t, tc.encoded, encodeModifiedUTF8(tc.s), tc.s)
		s, err := decodeModifiedUTF8(tc.encoded)
		require.NoError(t, err)
		assert.Equal(t, tc.s, s)
	}
}

func TestModifiedUTF8_Malformed(t *testing.T) {
	for _, p := range [][]byte{
		{0xc0},
		{0xe2, 0x82},
		{0xe2, 0x02, 0xac},
		{0xf0, 0x9f, 0x98, 0x80},
	} {
		_, err := decodeModifiedUTF8(p)
		assert.ErrorIs(t, err, ErrStreamCorrupted)
	}
}

func TestModifiedUTF8_Lossy(t *testing.T) {
	s, err := decodeModifiedUTF8(encodeModifiedUTF8("a\xffb"))
	require.NoError(t, err)
	assert.Equal(t, "a\uFFFDb", s)

	// A lone high surrogate, legal in a Java string.
	s, err = decodeModifiedUTF8([]byte{0xed, 0xa0, 0x80})
	require.NoError(t, err)
	assert.Equal(t, "\uFFFD", s)

	s, err = decodeModifiedUTF8([]byte{'x', 0xed, 0xb8, 0x80, 'y'})
	require.NoError(t, err)
	assert.Equal(t, "x\uFFFDy", s)
}

func TestWriteUTF(t *testing.T) {
	var buf []byte
	enc, err := NewEncoder(writerFunc(func(p []byte) (int, error) {
		buf = append(buf, p...)
		return len(p), nil
	}))
	require.NoError(t, err)
	require.NoError(t, enc.WriteUTF("a\x00"))
	require.NoError(t, enc.Flush())
	assert.Equal(t, stream(TcBlockdata, byte(5), uint16(3), byte('a'), byte(0xc0), byte(0x80)), buf)

	dec := newTestDecoder(t, NewRegistry(), buf)
	s, err := dec.ReadUTF()
	require.NoError(t, err)
	assert.Equal(t, "a\x00", s)
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}
