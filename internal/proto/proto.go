// Package proto implements the length-prefixed binary wire protocol
// spec.md §4.8 defines between a SysDB client and the connection/server
// layers (internal/conn, internal/server). Every message is an 8-byte
// header (u32 type, u32 body length, both big-endian) followed by a
// body whose shape is determined by the type. Datum values are encoded
// with a parallel tagged scheme so STORE_ATTRIBUTE payloads and DATA
// replies can carry arbitrary SysQL values without a JSON round trip on
// the wire (JSON is used only inside a DATA reply's result body, per
// spec.md §4.8).
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sysdb/sysdb/internal/data"
)

// Type identifies a message's purpose. The numeric values are fixed by
// spec.md §4.8 and must not be renumbered; they are wire-visible.
type Type uint32

const (
	TypeOK         Type = 0
	TypeERROR      Type = 1
	TypeLOG        Type = 2
	TypeDATA       Type = 100
	TypeIDLE       Type = 0
	TypePING       Type = 1
	TypeSTARTUP    Type = 2
	TypeQUERY      Type = 3
	TypeFETCH      Type = 4
	TypeLIST       Type = 5
	TypeLOOKUP     Type = 6
	TypeTIMESERIES Type = 7

	TypeSTORE          Type = 50
	TypeSTOREHost      Type = 51
	TypeSTOREService   Type = 52
	TypeSTOREMetric    Type = 53
	TypeSTOREAttribute Type = 54
)

func (t Type) String() string {
	switch t {
	case TypeOK:
		return "OK"
	case TypeERROR:
		return "ERROR"
	case TypeLOG:
		return "LOG"
	case TypeDATA:
		return "DATA"
	case TypeQUERY:
		return "QUERY"
	case TypeFETCH:
		return "FETCH"
	case TypeLIST:
		return "LIST"
	case TypeLOOKUP:
		return "LOOKUP"
	case TypeTIMESERIES:
		return "TIMESERIES"
	case TypeSTORE:
		return "STORE"
	case TypeSTOREHost:
		return "STORE_HOST"
	case TypeSTOREService:
		return "STORE_SERVICE"
	case TypeSTOREMetric:
		return "STORE_METRIC"
	case TypeSTOREAttribute:
		return "STORE_ATTRIBUTE"
	default:
		return fmt.Sprintf("Type(%d)", uint32(t))
	}
}

const headerLen = 8

// MaxBodyLen bounds a single message body. spec.md doesn't name a limit,
// but an unbounded length field let a malformed or hostile header force
// an arbitrarily large allocation before a single byte of body is
// validated; 64 MiB comfortably covers a QUERY statement or STORE
// payload without requiring streaming.
const MaxBodyLen = 64 << 20

var (
	// ErrBodyTooLarge is returned by ReadHeader when a header's declared
	// length exceeds MaxBodyLen.
	ErrBodyTooLarge = errors.New("proto: body length exceeds maximum")
	// ErrTruncated is returned when a buffered read loop has fewer than
	// headerLen or the declared body length bytes available. Callers in
	// internal/conn treat it as "come back when more bytes arrive", not
	// as a protocol violation.
	ErrTruncated = errors.New("proto: truncated message")
)

// Header is the fixed 8-byte prefix of every message.
type Header struct {
	Type   Type
	Length uint32
}

// Message is a fully decoded wire message: header plus body bytes.
type Message struct {
	Type Type
	Body []byte
}

// EncodeHeader appends hdr's wire form to dst and returns the result.
func EncodeHeader(dst []byte, hdr Header) []byte {
	var buf [headerLen]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(hdr.Type))
	binary.BigEndian.PutUint32(buf[4:8], hdr.Length)
	return append(dst, buf[:]...)
}

// DecodeHeader parses the first 8 bytes of buf as a Header. It reports
// ErrTruncated if buf is shorter than headerLen, and ErrBodyTooLarge if
// the declared length exceeds MaxBodyLen.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < headerLen {
		return Header{}, ErrTruncated
	}
	hdr := Header{
		Type:   Type(binary.BigEndian.Uint32(buf[0:4])),
		Length: binary.BigEndian.Uint32(buf[4:8]),
	}
	if hdr.Length > MaxBodyLen {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrBodyTooLarge, hdr.Length)
	}
	return hdr, nil
}

// EncodeMessage renders a full header+body message.
func EncodeMessage(typ Type, body []byte) []byte {
	out := make([]byte, 0, headerLen+len(body))
	out = EncodeHeader(out, Header{Type: typ, Length: uint32(len(body))})
	return append(out, body...)
}

// TryDecodeMessage attempts to split one full message off the front of
// buf. It returns the message, the number of bytes consumed, and true
// on success; on a short buffer it returns false so the caller's read
// loop (internal/conn) can wait for more bytes without treating the
// partial header/body as an error (spec.md §4.9 step 1-3).
func TryDecodeMessage(buf []byte) (Message, int, bool, error) {
	hdr, err := DecodeHeader(buf)
	if err != nil {
		if errors.Is(err, ErrTruncated) {
			return Message{}, 0, false, nil
		}
		return Message{}, 0, false, err
	}
	total := headerLen + int(hdr.Length)
	if len(buf) < total {
		return Message{}, 0, false, nil
	}
	body := make([]byte, hdr.Length)
	copy(body, buf[headerLen:total])
	return Message{Type: hdr.Type, Body: body}, total, true, nil
}

// WriteMessage writes a full message to w, e.g. a net.Conn.
func WriteMessage(w io.Writer, typ Type, body []byte) error {
	_, err := w.Write(EncodeMessage(typ, body))
	return err
}

// ReadMessage blocks until a full message has been read from r. Unlike
// TryDecodeMessage it is for synchronous clients (internal/remote, test
// harnesses) that own the connection and can afford to block; the
// server side keeps its non-blocking buffered loop.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Message{}, err
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return Message{}, err
	}
	body := make([]byte, h.Length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}
	return Message{Type: h.Type, Body: body}, nil
}

// EncodeString renders s as the u32-length-prefixed UTF-8 form used
// throughout body formats (spec.md §4.8).
func EncodeString(dst []byte, s string) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, s...)
}

// DecodeString reads a u32-length-prefixed UTF-8 string from buf,
// returning the string and the number of bytes consumed.
func DecodeString(buf []byte) (string, int, error) {
	if len(buf) < 4 {
		return "", 0, ErrTruncated
	}
	n := binary.BigEndian.Uint32(buf[0:4])
	if len(buf) < 4+int(n) {
		return "", 0, ErrTruncated
	}
	return string(buf[4 : 4+n]), 4 + int(n), nil
}

// EncodeCString appends s and a terminating NUL to dst, the field
// separator STORE_* bodies use (spec.md §4.8's "NUL-terminated fields
// per kind"). s must not contain an embedded NUL.
func EncodeCString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	return append(dst, 0)
}

// DecodeCString reads a NUL-terminated field from buf, returning the
// field and the number of bytes consumed including the terminator.
func DecodeCString(buf []byte) (string, int, error) {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i]), i + 1, nil
		}
	}
	return "", 0, ErrTruncated
}

// EncodeUint32/EncodeUint64 append a big-endian integer to dst.
func EncodeUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func EncodeUint64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func DecodeUint32(buf []byte) (uint32, int, error) {
	if len(buf) < 4 {
		return 0, 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(buf[0:4]), 4, nil
}

func DecodeUint64(buf []byte) (uint64, int, error) {
	if len(buf) < 8 {
		return 0, 0, ErrTruncated
	}
	return binary.BigEndian.Uint64(buf[0:8]), 8, nil
}

// datumTag is the wire tag for a Datum's type, independent of
// data.Type's own iota values so the wire format doesn't silently shift
// if internal/data adds a tag in the middle of its enum.
type datumTag uint32

const (
	tagNull datumTag = iota
	tagInteger
	tagDecimal
	tagString
	tagDatetime
	tagBinary
	tagRegex
	tagArray
)

func tagOf(t data.Type) (datumTag, error) {
	switch t {
	case data.Null:
		return tagNull, nil
	case data.Integer:
		return tagInteger, nil
	case data.Decimal:
		return tagDecimal, nil
	case data.String:
		return tagString, nil
	case data.Datetime:
		return tagDatetime, nil
	case data.Binary:
		return tagBinary, nil
	case data.Regex:
		return tagRegex, nil
	case data.Array:
		return tagArray, nil
	default:
		return 0, fmt.Errorf("proto: unencodable datum type %v", t)
	}
}

func typeOf(tag datumTag) (data.Type, error) {
	switch tag {
	case tagNull:
		return data.Null, nil
	case tagInteger:
		return data.Integer, nil
	case tagDecimal:
		return data.Decimal, nil
	case tagString:
		return data.String, nil
	case tagDatetime:
		return data.Datetime, nil
	case tagBinary:
		return data.Binary, nil
	case tagRegex:
		return data.Regex, nil
	case tagArray:
		return data.Array, nil
	default:
		return 0, fmt.Errorf("proto: unknown datum tag %d", tag)
	}
}

// EncodeDatum appends d's wire form to dst: a u32 type tag followed by a
// type-specific payload (spec.md §4.8's "Datum on the wire" paragraph).
func EncodeDatum(dst []byte, d data.Datum) ([]byte, error) {
	tag, err := tagOf(d.Typ)
	if err != nil {
		return nil, err
	}
	dst = EncodeUint32(dst, uint32(tag))
	switch d.Typ {
	case data.Null:
		return dst, nil
	case data.Integer:
		i, _ := d.AsInteger()
		return EncodeUint64(dst, uint64(i)), nil
	case data.Decimal:
		f, _ := d.AsDecimal()
		return EncodeUint64(dst, math.Float64bits(f)), nil
	case data.String:
		s, _ := d.AsString()
		return EncodeString(dst, s), nil
	case data.Datetime:
		ns, _ := d.AsDatetime()
		return EncodeUint64(dst, uint64(ns)), nil
	case data.Binary:
		b, _ := d.AsBinary()
		dst = EncodeUint32(dst, uint32(len(b)))
		return append(dst, b...), nil
	case data.Regex:
		_, src, _ := d.AsRegex()
		return EncodeString(dst, src), nil
	case data.Array:
		elems, _ := d.AsArray()
		elemTag, err := tagOf(d.ElemType)
		if err != nil {
			return nil, err
		}
		dst = EncodeUint32(dst, uint32(elemTag))
		dst = EncodeUint32(dst, uint32(len(elems)))
		for _, e := range elems {
			dst, err = encodeDatumBody(dst, e)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("proto: unencodable datum type %v", d.Typ)
	}
}

// encodeDatumBody encodes just the payload (no leading tag), used for
// homogeneous array elements whose tag is already known from ElemType.
func encodeDatumBody(dst []byte, d data.Datum) ([]byte, error) {
	full, err := EncodeDatum(nil, d)
	if err != nil {
		return nil, err
	}
	return append(dst, full[4:]...), nil
}

// DecodeDatum reads one wire-encoded Datum from buf, returning the
// number of bytes consumed.
func DecodeDatum(buf []byte) (data.Datum, int, error) {
	tagV, n, err := DecodeUint32(buf)
	if err != nil {
		return data.Datum{}, 0, err
	}
	off := n
	typ, err := typeOf(datumTag(tagV))
	if err != nil {
		return data.Datum{}, 0, err
	}
	d, used, err := decodeDatumBody(typ, data.Null, buf[off:])
	if err != nil {
		return data.Datum{}, 0, err
	}
	return d, off + used, nil
}

func decodeDatumBody(typ, elemType data.Type, buf []byte) (data.Datum, int, error) {
	switch typ {
	case data.Null:
		return data.NewNull(), 0, nil
	case data.Integer:
		v, n, err := DecodeUint64(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		return data.NewInteger(int64(v)), n, nil
	case data.Decimal:
		v, n, err := DecodeUint64(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		return data.NewDecimal(math.Float64frombits(v)), n, nil
	case data.String:
		s, n, err := DecodeString(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		return data.NewString(s), n, nil
	case data.Datetime:
		v, n, err := DecodeUint64(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		return data.NewDatetime(int64(v)), n, nil
	case data.Binary:
		ln, n, err := DecodeUint32(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		if len(buf) < n+int(ln) {
			return data.Datum{}, 0, ErrTruncated
		}
		b := make([]byte, ln)
		copy(b, buf[n:n+int(ln)])
		return data.NewBinary(b), n + int(ln), nil
	case data.Regex:
		src, n, err := DecodeString(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		d, err := data.NewRegex(src)
		if err != nil {
			return data.Datum{}, 0, fmt.Errorf("proto: invalid regex on wire: %w", err)
		}
		return d, n, nil
	case data.Array:
		elemTagV, n, err := DecodeUint32(buf)
		if err != nil {
			return data.Datum{}, 0, err
		}
		off := n
		elemTyp, err := typeOf(datumTag(elemTagV))
		if err != nil {
			return data.Datum{}, 0, err
		}
		count, n, err := DecodeUint32(buf[off:])
		if err != nil {
			return data.Datum{}, 0, err
		}
		off += n
		elems := make([]data.Datum, count)
		for i := range elems {
			e, n, err := decodeDatumBody(elemTyp, data.Null, buf[off:])
			if err != nil {
				return data.Datum{}, 0, err
			}
			elems[i] = e
			off += n
		}
		arr, err := data.NewArray(elemTyp, elems)
		if err != nil {
			return data.Datum{}, 0, err
		}
		return arr, off, nil
	default:
		return data.Datum{}, 0, fmt.Errorf("proto: unencodable datum type %v", typ)
	}
}
