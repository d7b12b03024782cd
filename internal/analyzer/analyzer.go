// Package analyzer implements the SysQL semantic analyzer (spec.md
// §4.5): it infers a data-type tag for every expression node in an
// internal/ast tree, rejects operand type mismatches against
// internal/data's arithmetic rules, and rejects sibling references
// (Typed nodes) that don't make sense in the query's object-kind
// context. Diagnostics are collected into a caller-supplied
// internal/errbuf.Buffer, matching the parser's error-reporting
// convention.
package analyzer

import (
	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/errbuf"
)

// Kind classifies an expression's inferred type. It mirrors data.Type
// but adds Boolean (SysQL's comparison/logical result type, which has no
// dedicated Datum tag) and Unknown (an attribute value whose type isn't
// known until evaluation).
type Kind int

const (
	KUnknown Kind = iota
	KInteger
	KDecimal
	KString
	KDatetime
	KBinary
	KRegex
	KBoolean
	KArray
)

func (k Kind) String() string {
	switch k {
	case KInteger:
		return "INTEGER"
	case KDecimal:
		return "DECIMAL"
	case KString:
		return "STRING"
	case KDatetime:
		return "DATETIME"
	case KBinary:
		return "BINARY"
	case KRegex:
		return "REGEX"
	case KBoolean:
		return "BOOLEAN"
	case KArray:
		return "ARRAY"
	default:
		return "UNKNOWN"
	}
}

// TypeInfo is the inferred type of an expression node: Kind, plus Elem
// (the element Kind) when Kind == KArray.
type TypeInfo struct {
	Kind Kind
	Elem Kind
}

func scalar(k Kind) TypeInfo  { return TypeInfo{Kind: k} }
func arrayOf(e Kind) TypeInfo { return TypeInfo{Kind: KArray, Elem: e} }

var unknownType = TypeInfo{Kind: KUnknown}

func datumKind(t data.Type) Kind {
	switch t {
	case data.Integer:
		return KInteger
	case data.Decimal:
		return KDecimal
	case data.String:
		return KString
	case data.Datetime:
		return KDatetime
	case data.Binary:
		return KBinary
	case data.Regex:
		return KRegex
	default:
		return KUnknown
	}
}

func constType(d data.Datum) TypeInfo {
	if d.Typ == data.Array {
		return arrayOf(datumKind(d.ElemType))
	}
	return scalar(datumKind(d.Typ))
}

// fieldType returns the static type of one of spec.md §4.3's generic
// object fields, or ok == false if name is not one of them (in which
// case it is a named attribute lookup, always Unknown).
func fieldType(name string) (TypeInfo, bool) {
	switch name {
	case "name":
		return scalar(KString), true
	case "last_update", "age", "interval":
		return scalar(KDatetime), true
	case "backend":
		return arrayOf(KString), true
	case "timeseries":
		return scalar(KBoolean), true
	case "value":
		return unknownType, true
	default:
		return TypeInfo{}, false
	}
}

// baseCtx normalizes any ObjType (singular, plural, or attribute form)
// to the Host/Service/Metric context expressions evaluate against.
func baseCtx(ot ast.ObjType) ast.ObjType {
	switch ot {
	case ast.ObjHost, ast.ObjHosts, ast.ObjHostAttribute:
		return ast.ObjHost
	case ast.ObjService, ast.ObjServices, ast.ObjServiceAttribute:
		return ast.ObjService
	case ast.ObjMetric, ast.ObjMetrics, ast.ObjMetricAttribute:
		return ast.ObjMetric
	default:
		return ast.ObjHost
	}
}

type analyzer struct {
	ctx    ast.ObjType
	errs   *errbuf.Buffer
	failed bool
}

// Analyze type-checks node in ctx (one of ast.ObjHost, ast.ObjService,
// ast.ObjMetric; callers with a plural or attribute ObjType should
// normalize via BaseCtx first). A top-level command node has each of its
// clause expressions checked — a FILTER or MATCHING clause must be
// boolean-valued — while any other node is checked as a bare expression.
// It returns true if node is well-typed, and false (with diagnostics in
// errs) otherwise.
func Analyze(node ast.Node, ctx ast.ObjType, errs *errbuf.Buffer) bool {
	a := &analyzer{ctx: ctx, errs: errs}
	switch v := node.(type) {
	case *ast.Fetch:
		a.checkCondition(v.Filter)
	case *ast.List:
		a.checkCondition(v.Filter)
	case *ast.Lookup:
		a.checkCondition(v.Matcher)
		a.checkCondition(v.Filter)
	case *ast.Store, *ast.Timeseries:
		// Their clauses are literals the parser already validated.
	default:
		a.infer(node)
	}
	return !a.failed
}

// checkCondition type-checks a FILTER/MATCHING clause, which must be
// boolean-valued (or nil, when the optional clause is absent).
func (a *analyzer) checkCondition(n ast.Node) {
	if n == nil {
		return
	}
	if ti := a.infer(n); !isBooleanish(ti) {
		a.errorf(n, "condition must be boolean, got %s", ti.Kind)
	}
}

// BaseCtx exposes the singular/plural/attribute ObjType normalization so
// planner and eval can derive an analyzer context from a command's
// target ObjType.
func BaseCtx(ot ast.ObjType) ast.ObjType { return baseCtx(ot) }

func (a *analyzer) errorf(n ast.Node, format string, args ...any) TypeInfo {
	a.failed = true
	args = append([]any{n.Pos()}, args...)
	a.errs.Addf("position %d: "+format, args...)
	return unknownType
}

func (a *analyzer) infer(n ast.Node) TypeInfo {
	switch v := n.(type) {
	case *ast.Const:
		return constType(v.Value)

	case *ast.Value:
		if v.Name == "" {
			// The unbound slot an enclosing Iterator's Expr fills in; its
			// type is whatever the iterator binds, not statically known
			// here.
			return unknownType
		}
		if v.Kind == ast.ValueAttribute {
			return unknownType
		}
		ti, ok := fieldType(v.Name)
		if !ok {
			return a.errorf(n, "unknown field %q", v.Name)
		}
		return ti

	case *ast.Typed:
		switch v.Type {
		case a.ctx:
			return a.errorf(n, "%s reference is redundant in a %s context", v.Type, a.ctx)
		case ast.ObjAttribute:
			// Every object kind owns an attribute collection (spec.md §3),
			// so attribute.<field> is valid in any context.
			return a.infer(v.Expr)
		case ast.ObjHost:
			// host.<field> outside a Host context reads the parent host.
			return a.infer(v.Expr)
		case ast.ObjService, ast.ObjMetric:
			if a.ctx != ast.ObjHost {
				return a.errorf(n, "%s reference is only valid in a host context", v.Type)
			}
			return a.infer(v.Expr)
		default:
			return a.errorf(n, "%s is not a referencable collection", v.Type)
		}

	case *ast.Iterator:
		iterTI := a.infer(v.Iter)
		var elem TypeInfo
		switch {
		case iterTI.Kind == KArray:
			elem = scalar(iterTI.Elem)
		case iterTI.Kind == KUnknown:
			elem = unknownType
		default:
			// A Typed sibling reference (service.name) iterates over the
			// collection's children, yielding the referenced field's type
			// per element, not the field's own array-ness.
			elem = iterTI
		}
		a.inferBound(v.Expr, elem)
		return scalar(KBoolean)

	case *ast.Operator:
		return a.inferOperator(v, nil)

	default:
		return a.errorf(n, "unsupported expression node")
	}
}

// inferBound infers v's type the same way infer does, except any
// unbound-slot Value (Name == "") is treated as having type bound
// instead of Unknown — used for an Iterator's inner comparison.
func (a *analyzer) inferBound(n ast.Node, bound TypeInfo) TypeInfo {
	if val, ok := n.(*ast.Value); ok && val.Name == "" {
		return bound
	}
	if op, ok := n.(*ast.Operator); ok {
		return a.inferOperator(op, &bound)
	}
	return a.infer(n)
}

func (a *analyzer) operand(n ast.Node, bound *TypeInfo) TypeInfo {
	if bound != nil {
		if val, ok := n.(*ast.Value); ok && val.Name == "" {
			return *bound
		}
	}
	if op, ok := n.(*ast.Operator); ok {
		return a.inferOperator(op, bound)
	}
	return a.infer(n)
}

func isBooleanish(t TypeInfo) bool { return t.Kind == KBoolean || t.Kind == KUnknown }

func (a *analyzer) inferOperator(v *ast.Operator, bound *TypeInfo) TypeInfo {
	switch v.Kind {
	case ast.OpAnd, ast.OpOr:
		lt := a.operand(v.Left, bound)
		rt := a.operand(v.Right, bound)
		if !isBooleanish(lt) {
			a.errorf(v.Left, "%s operand must be boolean, got %s", v.Kind, lt.Kind)
		}
		if !isBooleanish(rt) {
			a.errorf(v.Right, "%s operand must be boolean, got %s", v.Kind, rt.Kind)
		}
		return scalar(KBoolean)

	case ast.OpNot:
		rt := a.operand(v.Right, bound)
		if !isBooleanish(rt) {
			a.errorf(v.Right, "NOT operand must be boolean, got %s", rt.Kind)
		}
		return scalar(KBoolean)

	case ast.OpIsNull:
		if !a.nullable(v.Right) {
			a.errorf(v.Right, "IS NULL applied to a non-nullable expression")
		}
		a.operand(v.Right, bound)
		return scalar(KBoolean)

	case ast.OpIsTrue, ast.OpIsFalse:
		rt := a.operand(v.Right, bound)
		if !isBooleanish(rt) {
			a.errorf(v.Right, "%s requires a boolean expression, got %s", v.Kind, rt.Kind)
		}
		return scalar(KBoolean)

	case ast.OpLT, ast.OpLE, ast.OpEQ, ast.OpNE, ast.OpGE, ast.OpGT:
		lt := a.operand(v.Left, bound)
		rt := a.operand(v.Right, bound)
		if lt.Kind != KUnknown && rt.Kind != KUnknown && lt.Kind != rt.Kind {
			a.errorf(v, "type mismatch: %s %s %s", lt.Kind, v.Kind, rt.Kind)
		}
		return scalar(KBoolean)

	case ast.OpRegex, ast.OpNregex:
		lt := a.operand(v.Left, bound)
		if lt.Kind != KString && lt.Kind != KUnknown {
			a.errorf(v.Left, "%s requires a STRING left operand, got %s", v.Kind, lt.Kind)
		}
		rt := a.operand(v.Right, bound)
		if rt.Kind != KString && rt.Kind != KRegex && rt.Kind != KUnknown {
			a.errorf(v.Right, "%s requires a STRING or REGEX right operand, got %s", v.Kind, rt.Kind)
		}
		return scalar(KBoolean)

	case ast.OpIn:
		lt := a.operand(v.Left, bound)
		rt := a.operand(v.Right, bound)
		if rt.Kind == KUnknown || lt.Kind == KUnknown {
			return scalar(KBoolean)
		}
		if rt.Kind != KArray {
			a.errorf(v.Right, "IN requires an array right operand, got %s", rt.Kind)
			return scalar(KBoolean)
		}
		if lt.Kind != rt.Elem {
			a.errorf(v, "IN element type mismatch: %s not in ARRAY of %s", lt.Kind, rt.Elem)
		}
		return scalar(KBoolean)

	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpConcat:
		lt := a.operand(v.Left, bound)
		rt := a.operand(v.Right, bound)
		if lt.Kind == KUnknown || rt.Kind == KUnknown {
			return unknownType
		}
		if lt.Kind != rt.Kind {
			a.errorf(v, "type mismatch: %s %s %s", lt.Kind, v.Kind, rt.Kind)
			return unknownType
		}
		return lt

	default:
		return a.errorf(v, "unsupported operator %s", v.Kind)
	}
}

// nullable reports whether n's value can meaningfully be Null: named
// attribute lookups and the generic "value" field (itself an attribute)
// can; the fixed, always-populated object fields (name, last_update,
// age, interval, backend, timeseries) cannot.
func (a *analyzer) nullable(n ast.Node) bool {
	switch v := n.(type) {
	case *ast.Value:
		if v.Name == "" {
			return true
		}
		return v.Kind == ast.ValueAttribute || v.Name == "value"
	case *ast.Typed:
		return a.nullable(v.Expr)
	default:
		return true
	}
}
