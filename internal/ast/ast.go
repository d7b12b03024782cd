package ast

import "github.com/sysdb/sysdb/internal/data"

// ObjType identifies one of the object-kind keyword combinations SysQL
// accepts (spec.md §6): the singular forms name a single object for
// FETCH/STORE, the plural forms a whole collection for LIST/LOOKUP, and
// the "<kind> attribute" forms name an attribute scoped to a particular
// parent kind.
type ObjType int

const (
	ObjHost ObjType = iota
	ObjHosts
	ObjService
	ObjServices
	ObjMetric
	ObjMetrics
	ObjHostAttribute
	ObjServiceAttribute
	ObjMetricAttribute
	// ObjAttribute is the context-relative attribute collection a Typed
	// reference names inside an expression (`ANY attribute.value = ...`):
	// whichever object is being evaluated, its own attributes. It never
	// appears as a command's target kind.
	ObjAttribute
)

func (t ObjType) String() string {
	switch t {
	case ObjHost:
		return "host"
	case ObjHosts:
		return "hosts"
	case ObjService:
		return "service"
	case ObjServices:
		return "services"
	case ObjMetric:
		return "metric"
	case ObjMetrics:
		return "metrics"
	case ObjHostAttribute:
		return "host attribute"
	case ObjServiceAttribute:
		return "service attribute"
	case ObjMetricAttribute:
		return "metric attribute"
	case ObjAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// OpKind identifies a logical, comparison, or arithmetic operator
// (spec.md §4.4).
type OpKind int

const (
	OpAnd OpKind = iota
	OpOr
	OpNot
	OpLT
	OpLE
	OpEQ
	OpNE
	OpGE
	OpGT
	OpRegex
	OpNregex
	OpIsNull
	OpIsTrue
	OpIsFalse
	OpIn
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpConcat
)

func (k OpKind) String() string {
	names := [...]string{
		"AND", "OR", "NOT", "LT", "LE", "EQ", "NE", "GE", "GT",
		"REGEX", "NREGEX", "ISNULL", "ISTRUE", "ISFALSE", "IN",
		"ADD", "SUB", "MUL", "DIV", "MOD", "CONCAT",
	}
	if int(k) < 0 || int(k) >= len(names) {
		return "UNKNOWN"
	}
	return names[k]
}

// IsLogical reports whether k is a boolean-combinator or comparison
// operator, as opposed to an arithmetic one.
func (k OpKind) IsLogical() bool { return k <= OpIn }

// IsArithmetic reports whether k is an arithmetic or concatenation
// operator.
func (k OpKind) IsArithmetic() bool { return k >= OpAdd }

// IterKind identifies an ANY/ALL quantifier (spec.md §4.4).
type IterKind int

const (
	IterAll IterKind = iota
	IterAny
)

func (k IterKind) String() string {
	if k == IterAll {
		return "ALL"
	}
	return "ANY"
}

// ValueKind distinguishes a generic object field (name, last_update,
// age, interval, backend, value, timeseries) from a named attribute
// lookup.
type ValueKind int

const (
	ValueField ValueKind = iota
	ValueAttribute
)

// Node is implemented by every AST node. Pos returns the byte offset of
// the token the node started at, used to annotate analyzer errors.
type Node interface {
	Pos() int
	astNode()
}

// Position is embedded by every node type to supply Pos() and a marker
// implementation of astNode().
type Position struct{ Offset int }

func (p Position) Pos() int { return p.Offset }
func (Position) astNode()   {}

// Fetch is the FETCH <kind> <path> [FILTER <expr>] command. Path holds
// the dot-separated identifier path (e.g. ["h1"] for a host, ["h1",
// "svc1"] for a service, ["h1", "svc1", "key"] for a service
// attribute); its length is determined by ObjType.
type Fetch struct {
	Position
	ObjType ObjType
	Path    []string
	Filter  Node // optional, nil if absent
}

// List is the LIST <kind> [FILTER <expr>] command.
type List struct {
	Position
	ObjType ObjType
	Filter  Node
}

// Lookup is the LOOKUP <kind> MATCHING <expr> [FILTER <expr>] command.
type Lookup struct {
	Position
	ObjType ObjType
	Matcher Node
	Filter  Node
}

// Store is the STORE <kind> <path> [<fields>] [LAST UPDATE <datetime>]
// command. Path is the dot-separated identifier path, shaped the same
// way as Fetch.Path. TSType/TSID are metric-specific; Value is set for
// attribute writes.
type Store struct {
	Position
	ObjType       ObjType
	Path          []string
	LastUpdate    int64 // nanoseconds since epoch
	HasLastUpdate bool
	Backends      []string
	TSType        string
	TSID          string
	HasTimeseries bool
	Value         Node // *Const, set when ObjType is an attribute kind
}

// Timeseries is the TIMESERIES <host>.<metric> [START ..] [END ..]
// command.
type Timeseries struct {
	Position
	Hostname string
	Metric   string
	Start    int64
	HasStart bool
	End      int64
	HasEnd   bool
}

// Operator is a unary (Left == nil, for NOT/ISNULL/ISTRUE/ISFALSE) or
// binary boolean/arithmetic expression.
type Operator struct {
	Position
	Kind  OpKind
	Left  Node // nil for NOT, ISNULL, ISTRUE and ISFALSE
	Right Node
}

// Iterator is an ANY/ALL quantifier: Iter is the collection-valued
// expression being quantified over, and Expr is a comparison containing
// exactly one unbound operand slot that each iterated element is bound
// into during evaluation (spec.md §4.6).
type Iterator struct {
	Position
	Kind IterKind
	Iter Node
	Expr Node
}

// Typed scopes Expr to a sibling object kind, e.g. `service.name` evaluated
// inside a Host context (spec.md §4.4).
type Typed struct {
	Position
	Type ObjType
	Expr Node
}

// Const is a literal value.
type Const struct {
	Position
	Value data.Datum
}

// Value is a named queryable: either a generic object field or a named
// attribute. An empty Name with Kind == ValueField denotes the unbound
// slot an Iterator's Expr fills in during evaluation.
type Value struct {
	Position
	Kind ValueKind
	Name string
}
