package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/errbuf"
)

func TestParseFetchHost(t *testing.T) {
	var errs errbuf.Buffer
	nodes, ok := ParseStatement(`FETCH host 'h1'`, &errs)
	require.True(t, ok, errs.String())
	require.Len(t, nodes, 1)
	f, ok := nodes[0].(*ast.Fetch)
	require.True(t, ok)
	assert.Equal(t, ast.ObjHost, f.ObjType)
	assert.Equal(t, []string{"h1"}, f.Path)
	assert.Nil(t, f.Filter)
}

func TestParseFetchWithFilter(t *testing.T) {
	var errs errbuf.Buffer
	nodes, ok := ParseStatement(`FETCH host 'h1' FILTER age < 1h`, &errs)
	require.True(t, ok, errs.String())
	f := nodes[0].(*ast.Fetch)
	op, ok := f.Filter.(*ast.Operator)
	require.True(t, ok)
	assert.Equal(t, ast.OpLT, op.Kind)
}

func TestParseListAndLookup(t *testing.T) {
	var errs errbuf.Buffer
	nodes, ok := ParseStatement(`LIST hosts; LOOKUP hosts MATCHING ANY service.name = 's2'`, &errs)
	require.True(t, ok, errs.String())
	require.Len(t, nodes, 2)

	l, ok := nodes[0].(*ast.List)
	require.True(t, ok)
	assert.Equal(t, ast.ObjHosts, l.ObjType)

	lk, ok := nodes[1].(*ast.Lookup)
	require.True(t, ok)
	iter, ok := lk.Matcher.(*ast.Iterator)
	require.True(t, ok)
	assert.Equal(t, ast.IterAny, iter.Kind)
	typed, ok := iter.Iter.(*ast.Typed)
	require.True(t, ok)
	assert.Equal(t, ast.ObjService, typed.Type)
	cmp, ok := iter.Expr.(*ast.Operator)
	require.True(t, ok)
	assert.Equal(t, ast.OpEQ, cmp.Kind)
}

func TestParseStoreAttribute(t *testing.T) {
	var errs errbuf.Buffer
	nodes, ok := ParseStatement(`STORE host attribute 'h1'.'k1' 'v1' LAST UPDATE 1`, &errs)
	require.True(t, ok, errs.String())
	st := nodes[0].(*ast.Store)
	assert.Equal(t, ast.ObjHostAttribute, st.ObjType)
	assert.Equal(t, []string{"h1", "k1"}, st.Path)
	require.NotNil(t, st.Value)
	c := st.Value.(*ast.Const)
	s, _ := c.Value.AsString()
	assert.Equal(t, "v1", s)
	assert.True(t, st.HasLastUpdate)
	assert.Equal(t, int64(1e9), st.LastUpdate)
}

func TestParseIteratorOverAttributes(t *testing.T) {
	var errs errbuf.Buffer
	nodes, ok := ParseStatement(`LIST hosts FILTER ANY attribute.value = 'v2'`, &errs)
	require.True(t, ok, errs.String())
	l := nodes[0].(*ast.List)
	iter, ok := l.Filter.(*ast.Iterator)
	require.True(t, ok)
	assert.Equal(t, ast.IterAny, iter.Kind)
	typed, ok := iter.Iter.(*ast.Typed)
	require.True(t, ok)
	assert.Equal(t, ast.ObjAttribute, typed.Type)
	val, ok := typed.Expr.(*ast.Value)
	require.True(t, ok)
	assert.Equal(t, "value", val.Name)
	assert.Equal(t, ast.ValueField, val.Kind)
}

func TestParseHostParentReference(t *testing.T) {
	var errs errbuf.Buffer
	nodes, ok := ParseStatement(`LOOKUP services MATCHING host.name = 'h1'`, &errs)
	require.True(t, ok, errs.String())
	lk := nodes[0].(*ast.Lookup)
	cmp := lk.Matcher.(*ast.Operator)
	typed, ok := cmp.Left.(*ast.Typed)
	require.True(t, ok)
	assert.Equal(t, ast.ObjHost, typed.Type)
}

func TestParseSyntaxError(t *testing.T) {
	var errs errbuf.Buffer
	_, ok := ParseStatement(`FETCH banana 'h1'`, &errs)
	assert.False(t, ok)
	assert.False(t, errs.Empty())
}

func TestParseArithmeticAndConditional(t *testing.T) {
	var errs errbuf.Buffer
	expr, ok := ParseArithmetic(`1 + 2 * 3`, &errs)
	require.True(t, ok, errs.String())
	_, ok = expr.(*ast.Operator)
	assert.True(t, ok)

	cond, ok := ParseConditional(`name = 'h1' AND NOT (age > 1h)`, &errs)
	require.True(t, ok, errs.String())
	top, ok := cond.(*ast.Operator)
	require.True(t, ok)
	assert.Equal(t, ast.OpAnd, top.Kind)
}

func TestParseRejectsEmptyObjectName(t *testing.T) {
	var errs errbuf.Buffer
	_, ok := ParseStatement(`FETCH host ''`, &errs)
	assert.False(t, ok)
	assert.Contains(t, errs.String(), "empty object name")
}

func TestParseDurationLiteral(t *testing.T) {
	ns, err := parseDuration("1h30m")
	require.NoError(t, err)
	assert.Equal(t, int64(90*60*1e9), ns)
}

func TestParseDurationCalendarUnits(t *testing.T) {
	y, err := parseDuration("1Y")
	require.NoError(t, err)
	assert.Equal(t, int64(365.2425*24*3600*1e9), y)

	m, err := parseDuration("1M")
	require.NoError(t, err)
	assert.Equal(t, int64(30.436875*24*3600*1e9), m)
}
