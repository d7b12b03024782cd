package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOpKindClassification(t *testing.T) {
	assert.True(t, OpAnd.IsLogical())
	assert.True(t, OpIn.IsLogical())
	assert.True(t, OpAdd.IsArithmetic())
	assert.True(t, OpConcat.IsArithmetic())
	assert.False(t, OpEQ.IsArithmetic())
}

func TestObjTypeString(t *testing.T) {
	assert.Equal(t, "host attribute", ObjHostAttribute.String())
	assert.Equal(t, "metrics", ObjMetrics.String())
}

func TestIterKindString(t *testing.T) {
	assert.Equal(t, "ALL", IterAll.String())
	assert.Equal(t, "ANY", IterAny.String())
}
