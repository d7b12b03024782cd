package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareNullOrdering(t *testing.T) {
	n := NewNull()
	i := NewInteger(42)

	c, ok := n.Compare(i)
	require.True(t, ok)
	assert.Less(t, c, 0)

	c, ok = i.Compare(n)
	require.True(t, ok)
	assert.Greater(t, c, 0)

	c, ok = n.Compare(NewNull())
	require.True(t, ok)
	assert.Equal(t, 0, c)
}

func TestCompareMismatchedTagsIncomparable(t *testing.T) {
	_, ok := NewInteger(1).Compare(NewString("1"))
	assert.False(t, ok)
}

func TestStrCompareAlwaysDefined(t *testing.T) {
	c := NewInteger(1).StrCompare(NewString("1"))
	assert.Equal(t, 0, c)
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		name    string
		op      Op
		a, b    Datum
		want    Datum
		wantErr error
	}{
		{"int add", OpAdd, NewInteger(2), NewInteger(3), NewInteger(5), nil},
		{"int div by zero", OpDiv, NewInteger(1), NewInteger(0), Datum{}, ErrDivisionByZero},
		{"decimal mod unsupported", OpMod, NewDecimal(1), NewDecimal(2), Datum{}, ErrTypeMismatch},
		{"string concat", OpConcat, NewString("a"), NewString("b"), NewString("ab"), nil},
		{"null operand", OpAdd, NewNull(), NewInteger(1), NewNull(), nil},
		{"mismatched types", OpAdd, NewInteger(1), NewString("x"), Datum{}, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Eval(tt.op, tt.a, tt.b)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want))
		})
	}
}

func TestDatetimeScale(t *testing.T) {
	dt := NewDatetime(10)
	got, err := EvalDatetimeScale(OpMul, dt, NewInteger(3))
	require.NoError(t, err)
	ns, ok := got.AsDatetime()
	require.True(t, ok)
	assert.EqualValues(t, 30, ns)

	_, err = EvalDatetimeScale(OpDiv, dt, NewInteger(0))
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestFormatParseRoundTrip(t *testing.T) {
	cases := []Datum{
		NewInteger(-42),
		NewDecimal(3.5),
		NewString("hello"),
		NewDatetime(1_000_000_000),
		NewBinary([]byte{0, 1, 255}),
	}
	for _, d := range cases {
		text := d.Format(QuoteNone)
		got, err := Parse(text, d.Typ)
		require.NoError(t, err)
		assert.True(t, d.Equal(got), "round trip for %s: %q -> %v", d.Typ, text, got)
	}
}

func TestFormatStringQuoting(t *testing.T) {
	d := NewString(`a'b\c`)
	assert.Equal(t, `'a\'b\\c'`, d.Format(QuoteSingle))
	assert.Equal(t, `"a'b\\c"`, d.Format(QuoteDouble))
	assert.Equal(t, `a'b\c`, d.Format(QuoteNone))
}

func TestFormatBinary(t *testing.T) {
	d := NewBinary([]byte{0xde, 0xad})
	assert.Equal(t, `\xde\xad`, d.Format(QuoteNone))
}

func TestParseIntegerBases(t *testing.T) {
	for text, want := range map[string]int64{
		"0x1F": 31,
		"017":  15,
		"42":   42,
		"-5":   -5,
	} {
		got, err := Parse(text, Integer)
		require.NoError(t, err)
		v, _ := got.AsInteger()
		assert.Equal(t, want, v, "parsing %q", text)
	}
}

func TestParseDecimalSpecials(t *testing.T) {
	d, err := Parse("infinity", Decimal)
	require.NoError(t, err)
	f, _ := d.AsDecimal()
	assert.True(t, f > 1e300)

	d, err = Parse("1.5e3", Decimal)
	require.NoError(t, err)
	f, _ = d.AsDecimal()
	assert.Equal(t, 1500.0, f)
}

func TestInArrayEmptyAlwaysFalse(t *testing.T) {
	arr, err := NewArray(Integer, nil)
	require.NoError(t, err)
	ok, err := InArray(NewInteger(1), arr)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInArrayMatch(t *testing.T) {
	arr, err := NewArray(String, []Datum{NewString("a"), NewString("b")})
	require.NoError(t, err)
	ok, err := InArray(NewString("b"), arr)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewArrayRejectsNestedArray(t *testing.T) {
	_, err := NewArray(Array, nil)
	assert.ErrorIs(t, err, ErrInvalidArray)
}

func TestNewArrayRejectsMixedElements(t *testing.T) {
	_, err := NewArray(Integer, []Datum{NewInteger(1), NewString("x")})
	assert.ErrorIs(t, err, ErrInvalidArray)
}

func TestCopyIsolatesBinaryAndArray(t *testing.T) {
	orig := NewBinary([]byte{1, 2, 3})
	cp := orig.Copy()
	b, _ := cp.AsBinary()
	b[0] = 9
	origBytes, _ := orig.AsBinary()
	assert.Equal(t, byte(1), origBytes[0])
}

func TestMarshalJSON(t *testing.T) {
	arr, err := NewArray(Integer, []Datum{NewInteger(1), NewInteger(2)})
	require.NoError(t, err)
	b, err := arr.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, "[1,2]", string(b))
}
