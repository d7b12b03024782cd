package proto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysdb/sysdb/internal/data"
)

func TestEncodeDecodeHeaderRoundTrip(t *testing.T) {
	hdr := Header{Type: TypeQUERY, Length: 42}
	buf := EncodeHeader(nil, hdr)
	require.Len(t, buf, headerLen)

	got, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, hdr, got)
}

func TestDecodeHeaderTruncated(t *testing.T) {
	_, err := DecodeHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeHeaderBodyTooLarge(t *testing.T) {
	buf := EncodeHeader(nil, Header{Type: TypeQUERY, Length: MaxBodyLen + 1})
	_, err := DecodeHeader(buf)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestTryDecodeMessageWaitsForFullBody(t *testing.T) {
	full := EncodeMessage(TypeQUERY, []byte("LIST hosts"))

	_, _, ok, err := TryDecodeMessage(full[:headerLen+3])
	require.NoError(t, err)
	assert.False(t, ok)

	msg, n, ok, err := TryDecodeMessage(full)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, len(full), n)
	assert.Equal(t, TypeQUERY, msg.Type)
	assert.Equal(t, []byte("LIST hosts"), msg.Body)
}

func TestTryDecodeMessageConsumesOnlyOneFrame(t *testing.T) {
	first := EncodeMessage(TypePING, nil)
	second := EncodeMessage(TypeQUERY, []byte("PING"))
	buf := append(append([]byte{}, first...), second...)

	msg, n, ok, err := TryDecodeMessage(buf)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TypePING, msg.Type)
	assert.Equal(t, len(first), n)

	msg2, _, ok, err := TryDecodeMessage(buf[n:])
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, TypeQUERY, msg2.Type)
}

func TestWriteMessage(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, WriteMessage(&b, TypeOK, []byte("ready")))
	assert.Equal(t, EncodeMessage(TypeOK, []byte("ready")), b.Bytes())
}

func TestEncodeDecodeStringRoundTrip(t *testing.T) {
	buf := EncodeString(nil, "hello world")
	s, n, err := DecodeString(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello world", s)
	assert.Equal(t, len(buf), n)
}

func TestEncodeDecodeCStringRoundTrip(t *testing.T) {
	buf := EncodeCString(nil, "h1")
	buf = EncodeCString(buf, "load")

	s1, n, err := DecodeCString(buf)
	require.NoError(t, err)
	assert.Equal(t, "h1", s1)

	s2, _, err := DecodeCString(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, "load", s2)
}

func TestDecodeCStringMissingTerminator(t *testing.T) {
	_, _, err := DecodeCString([]byte("no terminator"))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDatumRoundTrip(t *testing.T) {
	arr, err := data.NewArray(data.Integer, []data.Datum{data.NewInteger(1), data.NewInteger(2)})
	require.NoError(t, err)
	re, err := data.NewRegex("^foo")
	require.NoError(t, err)

	cases := []data.Datum{
		data.NewNull(),
		data.NewInteger(-7),
		data.NewDecimal(3.5),
		data.NewString("hi"),
		data.NewDatetime(1234567890),
		data.NewBinary([]byte{0xde, 0xad, 0xbe, 0xef}),
		re,
		arr,
	}

	for _, d := range cases {
		buf, err := EncodeDatum(nil, d)
		require.NoError(t, err)

		got, n, err := DecodeDatum(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
		assert.True(t, d.Equal(got), "round-tripped datum %v != %v", d, got)
	}
}

func TestDecodeDatumTruncated(t *testing.T) {
	buf := EncodeUint32(nil, uint32(tagString))
	_, _, err := DecodeDatum(buf)
	assert.ErrorIs(t, err, ErrTruncated)
}
