// Package planner lowers an analyzed internal/ast tree into the
// executable form internal/eval walks against the store (spec.md §4.6):
// Expr for value-producing nodes, Matcher for boolean-producing nodes,
// and Query for the top-level command. Planning never fails once
// internal/analyzer has accepted the same tree (spec.md §4.6), so Plan
// only returns an error for a node shape analysis could not have let
// through (a defensive "should never happen" path, not a spec.md error
// kind).
package planner

import (
	"fmt"

	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/data"
)

// Expr is a value-producing node in a planned query: a constant, a field
// or attribute reference against the object currently being evaluated, a
// sibling (Typed) reference, the iterator's unbound slot, or a binary
// arithmetic expression.
type Expr interface {
	exprNode()
}

// ConstExpr is a literal value.
type ConstExpr struct{ Value data.Datum }

// FieldExpr reads one of the generic object fields (name, last_update,
// age, interval, backend, value, timeseries) off the object currently
// being evaluated.
type FieldExpr struct{ Field string }

// AttrExpr reads a named attribute's value off the object currently
// being evaluated.
type AttrExpr struct{ Name string }

// TypedExpr scopes Inner to the object type ObjType. With ObjHost it
// reads Inner off the parent host of the object being evaluated and is
// evaluated directly. With a collection type (Service, Metric, or
// Attribute) it denotes "the set of Inner values across that
// collection's children" and is evaluated as the Iter operand of an
// IterMatcher (spec.md §4.6); evaluated directly it yields Null.
type TypedExpr struct {
	ObjType ast.ObjType
	Inner   Expr
}

// UnboundExpr is the slot an enclosing IterMatcher's iteration binds a
// value into for each element it visits (spec.md §4.6).
type UnboundExpr struct{}

// ArithExpr is a binary arithmetic or concatenation expression.
type ArithExpr struct {
	Op    ast.OpKind
	Left  Expr
	Right Expr
}

func (ConstExpr) exprNode()   {}
func (FieldExpr) exprNode()   {}
func (AttrExpr) exprNode()    {}
func (*TypedExpr) exprNode()  {}
func (UnboundExpr) exprNode() {}
func (*ArithExpr) exprNode()  {}

// Matcher is a boolean-producing node: a combinator, a comparator over
// two Exprs, or an ANY/ALL iterator.
type Matcher interface {
	matcherNode()
}

// AndMatcher, OrMatcher, NotMatcher are the boolean combinators.
type AndMatcher struct{ Left, Right Matcher }
type OrMatcher struct{ Left, Right Matcher }
type NotMatcher struct{ Operand Matcher }

// CompareMatcher is one of LT/LE/EQ/NE/GE/GT.
type CompareMatcher struct {
	Op          ast.OpKind
	Left, Right Expr
}

// RegexMatcher is REGEX (=~) or, when Neg is set, NREGEX (!~).
type RegexMatcher struct {
	Neg         bool
	Left, Right Expr
}

// InMatcher is the IN operator: Left must equal some element of Right.
type InMatcher struct{ Left, Right Expr }

// IsNullMatcher is the IS NULL predicate.
type IsNullMatcher struct{ Operand Expr }

// IsTrueMatcher and IsFalseMatcher are the IS TRUE / IS FALSE predicates.
// Their operand is boolean-valued (spec.md §4.5 point 4), which the
// analyzer accepts in two shapes: a genuinely scalar/attribute value
// whose runtime Datum is interpreted as truthy (e.g. `timeseries IS
// TRUE`), planned into Operand; or a nested comparison/logical
// expression such as `(name = 'h1') IS TRUE`, planned into Matcher.
// Exactly one of the two is set.
type IsTrueMatcher struct {
	Operand Expr
	Matcher Matcher
}
type IsFalseMatcher struct {
	Operand Expr
	Matcher Matcher
}

// IterMatcher is an ANY/ALL quantifier: Iter is the collection-valued
// expression being quantified over (a TypedExpr when iterating a
// sibling collection's field, any other Expr when iterating an
// array-typed field directly), and Inner is the comparison containing
// the UnboundExpr slot each iterated value is bound into.
type IterMatcher struct {
	All   bool
	Iter  Expr
	Inner Matcher
}

func (*AndMatcher) matcherNode()     {}
func (*OrMatcher) matcherNode()      {}
func (*NotMatcher) matcherNode()     {}
func (*CompareMatcher) matcherNode() {}
func (*RegexMatcher) matcherNode()   {}
func (*InMatcher) matcherNode()      {}
func (*IsNullMatcher) matcherNode()  {}
func (*IsTrueMatcher) matcherNode()  {}
func (*IsFalseMatcher) matcherNode() {}
func (*IterMatcher) matcherNode()    {}

// CmdKind identifies the top-level command a Query represents.
type CmdKind int

const (
	CmdFetch CmdKind = iota
	CmdList
	CmdLookup
	CmdStore
	CmdTimeseries
)

// Query is the planned, executable form of a single SysQL command
// (spec.md §4.6).
type Query struct {
	Kind    CmdKind
	ObjType ast.ObjType

	// FETCH/STORE target path; LIST/LOOKUP leave this nil.
	Path []string

	// LOOKUP's MATCHING clause; nil for other kinds.
	Matcher Matcher
	// FETCH/LIST/LOOKUP's optional FILTER clause.
	Filter Matcher

	// STORE fields.
	Value         Expr
	LastUpdate    int64
	HasLastUpdate bool
	Backends      []string
	TSType        string
	TSID          string
	HasTimeseries bool

	// TIMESERIES fields.
	Hostname string
	Metric   string
	Start    int64
	HasStart bool
	End      int64
	HasEnd   bool
}

// PlanMatcher lowers a single analyzed boolean expression node into a
// Matcher, standalone from a top-level command. internal/conn uses this
// to plan the MATCHING text carried by a binary LOOKUP message
// independent of a full QUERY statement.
func PlanMatcher(node ast.Node) (Matcher, error) {
	return planMatcher(node)
}

// Plan lowers a single analyzed command node into a Query.
func Plan(node ast.Node) (*Query, error) {
	switch v := node.(type) {
	case *ast.Fetch:
		filter, err := planMatcher(v.Filter)
		if err != nil {
			return nil, err
		}
		return &Query{Kind: CmdFetch, ObjType: v.ObjType, Path: v.Path, Filter: filter}, nil

	case *ast.List:
		filter, err := planMatcher(v.Filter)
		if err != nil {
			return nil, err
		}
		return &Query{Kind: CmdList, ObjType: v.ObjType, Filter: filter}, nil

	case *ast.Lookup:
		matcher, err := planMatcher(v.Matcher)
		if err != nil {
			return nil, err
		}
		filter, err := planMatcher(v.Filter)
		if err != nil {
			return nil, err
		}
		return &Query{Kind: CmdLookup, ObjType: v.ObjType, Matcher: matcher, Filter: filter}, nil

	case *ast.Store:
		q := &Query{
			Kind:          CmdStore,
			ObjType:       v.ObjType,
			Path:          v.Path,
			LastUpdate:    v.LastUpdate,
			HasLastUpdate: v.HasLastUpdate,
			Backends:      v.Backends,
			TSType:        v.TSType,
			TSID:          v.TSID,
			HasTimeseries: v.HasTimeseries,
		}
		if v.Value != nil {
			q.Value = planExpr(v.Value)
		}
		return q, nil

	case *ast.Timeseries:
		return &Query{
			Kind:     CmdTimeseries,
			Hostname: v.Hostname,
			Metric:   v.Metric,
			Start:    v.Start,
			HasStart: v.HasStart,
			End:      v.End,
			HasEnd:   v.HasEnd,
		}, nil

	default:
		return nil, fmt.Errorf("planner: unsupported top-level node %T", node)
	}
}

func planMatcher(node ast.Node) (Matcher, error) {
	if node == nil {
		return nil, nil
	}
	switch v := node.(type) {
	case *ast.Operator:
		switch v.Kind {
		case ast.OpAnd:
			l, err := planMatcher(v.Left)
			if err != nil {
				return nil, err
			}
			r, err := planMatcher(v.Right)
			if err != nil {
				return nil, err
			}
			return &AndMatcher{Left: l, Right: r}, nil
		case ast.OpOr:
			l, err := planMatcher(v.Left)
			if err != nil {
				return nil, err
			}
			r, err := planMatcher(v.Right)
			if err != nil {
				return nil, err
			}
			return &OrMatcher{Left: l, Right: r}, nil
		case ast.OpNot:
			operand, err := planMatcher(v.Right)
			if err != nil {
				return nil, err
			}
			return &NotMatcher{Operand: operand}, nil
		case ast.OpLT, ast.OpLE, ast.OpEQ, ast.OpNE, ast.OpGE, ast.OpGT:
			return &CompareMatcher{Op: v.Kind, Left: planExpr(v.Left), Right: planExpr(v.Right)}, nil
		case ast.OpRegex, ast.OpNregex:
			return &RegexMatcher{Neg: v.Kind == ast.OpNregex, Left: planExpr(v.Left), Right: planExpr(v.Right)}, nil
		case ast.OpIn:
			return &InMatcher{Left: planExpr(v.Left), Right: planExpr(v.Right)}, nil
		case ast.OpIsNull:
			return &IsNullMatcher{Operand: planExpr(v.Right)}, nil
		case ast.OpIsTrue:
			if isMatcherOperand(v.Right) {
				m, err := planMatcher(v.Right)
				if err != nil {
					return nil, err
				}
				return &IsTrueMatcher{Matcher: m}, nil
			}
			return &IsTrueMatcher{Operand: planExpr(v.Right)}, nil
		case ast.OpIsFalse:
			if isMatcherOperand(v.Right) {
				m, err := planMatcher(v.Right)
				if err != nil {
					return nil, err
				}
				return &IsFalseMatcher{Matcher: m}, nil
			}
			return &IsFalseMatcher{Operand: planExpr(v.Right)}, nil
		default:
			return nil, fmt.Errorf("planner: operator %s is not boolean-valued", v.Kind)
		}
	case *ast.Iterator:
		inner, err := planMatcher(v.Expr)
		if err != nil {
			return nil, err
		}
		return &IterMatcher{All: v.Kind == ast.IterAll, Iter: planExpr(v.Iter), Inner: inner}, nil
	default:
		return nil, fmt.Errorf("planner: node %T is not boolean-valued", node)
	}
}

// isMatcherOperand reports whether node is itself a boolean-producing
// AST node (a logical combinator, a comparison, or an ANY/ALL
// iterator) rather than a scalar field/attribute value. IS TRUE/IS
// FALSE's operand is planned as a Matcher when this holds (spec.md
// §4.5 point 4 permits `(expr) IS TRUE` where expr is itself a
// comparison), and as a plain Expr otherwise.
func isMatcherOperand(node ast.Node) bool {
	switch v := node.(type) {
	case *ast.Operator:
		return v.Kind.IsLogical()
	case *ast.Iterator:
		return true
	default:
		return false
	}
}

func planExpr(node ast.Node) Expr {
	switch v := node.(type) {
	case *ast.Const:
		return ConstExpr{Value: v.Value}
	case *ast.Value:
		if v.Name == "" {
			return UnboundExpr{}
		}
		if v.Kind == ast.ValueField {
			return FieldExpr{Field: v.Name}
		}
		return AttrExpr{Name: v.Name}
	case *ast.Typed:
		return &TypedExpr{ObjType: v.Type, Inner: planExpr(v.Expr)}
	case *ast.Operator:
		return &ArithExpr{Op: v.Kind, Left: planExpr(v.Left), Right: planExpr(v.Right)}
	default:
		return ConstExpr{Value: data.NewNull()}
	}
}
