// Package eval implements the SysQL evaluator (spec.md §4.7): it takes a
// planner.Query, walks the store under a single read-lock acquisition so
// it sees one consistent snapshot (spec.md §5), and emits matching
// objects to a store.ResultWriter. FETCH resolves a path directly;
// LIST/LOOKUP scan a whole collection via store.Scan; STORE dispatches to
// the store's writer methods; TIMESERIES always fails, since time-series
// backends are out of scope (spec.md §1).
//
// Matcher and expression evaluation never abort a scan on a per-object
// failure: a missing attribute, a type mismatch, or a division by zero
// all substitute Null/no-match and evaluation continues (spec.md §7), so
// one bad object never hides the rest of a LIST or LOOKUP reply.
package eval

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/planner"
	"github.com/sysdb/sysdb/internal/store"
)

// ErrUnsupported is returned for query shapes spec.md §1 rules out
// entirely (time-series backends) rather than ones a typo or a bad query
// produced.
var ErrUnsupported = errors.New("eval: not supported")

// ResultCode mirrors the DATA/OK distinction spec.md §4.8's wire reply
// carries: FETCH/LIST/LOOKUP produce a DATA reply of emitted records,
// STORE produces an OK acknowledgement.
type ResultCode int

const (
	ResultData ResultCode = iota
	ResultOK
)

// Reader is the query-side counterpart of store.Writer (spec.md §4.12):
// Prepare lowers an analyzed AST node into an executable Query and
// Execute runs it, emitting results to a store.ResultWriter.
type Reader interface {
	Prepare(node ast.Node) (*planner.Query, error)
	Execute(q *planner.Query, w store.ResultWriter) (ResultCode, error)
}

// StoreReader implements Reader against an in-memory store.
type StoreReader struct {
	Store *store.Store
}

func (r *StoreReader) Prepare(node ast.Node) (*planner.Query, error) {
	return planner.Plan(node)
}

func (r *StoreReader) Execute(q *planner.Query, w store.ResultWriter) (ResultCode, error) {
	return Execute(q, r.Store, w)
}

var _ Reader = (*StoreReader)(nil)

// Execute runs a planned query against st, writing any emitted records to
// w. It returns the reply kind a connection should send, or an error for
// a wire ERROR reply (spec.md §4.7, §4.9).
func Execute(q *planner.Query, st *store.Store, w store.ResultWriter) (ResultCode, error) {
	switch q.Kind {
	case planner.CmdFetch:
		return executeFetch(q, st, w)
	case planner.CmdList:
		return executeList(q, st, w)
	case planner.CmdLookup:
		return executeLookup(q, st, w)
	case planner.CmdStore:
		return executeStore(q, st)
	case planner.CmdTimeseries:
		return 0, fmt.Errorf("%w: TIMESERIES has no configured time-series backend", ErrUnsupported)
	default:
		return 0, fmt.Errorf("eval: unknown query kind %d", q.Kind)
	}
}

func executeFetch(q *planner.Query, st *store.Store, w store.ResultWriter) (ResultCode, error) {
	st.RLock()
	defer st.RUnlock()

	obj := resolveObject(st, q.ObjType, q.Path)
	if obj == nil || !objMatch(obj, q.Filter) {
		return 0, fmt.Errorf("%w: %s", store.ErrNotFound, strings.Join(q.Path, "."))
	}
	var filterFn func(store.Object) bool
	if q.Filter != nil {
		filterFn = func(o store.Object) bool { return objMatch(o, q.Filter) }
	}
	if err := store.EmitSubtree(obj, filterFn, w); err != nil {
		return 0, err
	}
	return ResultData, nil
}

func executeList(q *planner.Query, st *store.Store, w store.ResultWriter) (ResultCode, error) {
	kind, ok := scanKindOf(q.ObjType)
	if !ok {
		return 0, fmt.Errorf("eval: %s cannot be LIST'd", q.ObjType)
	}
	matchFn := func(o store.Object) bool { return objMatch(o, q.Filter) }
	err := st.Scan(kind, matchFn, nil, func(o store.Object) error { return store.WriteRecord(o, w) })
	if err != nil {
		return 0, err
	}
	return ResultData, nil
}

func executeLookup(q *planner.Query, st *store.Store, w store.ResultWriter) (ResultCode, error) {
	kind, ok := scanKindOf(q.ObjType)
	if !ok {
		return 0, fmt.Errorf("eval: %s cannot be LOOKUP'd", q.ObjType)
	}
	matchFn := func(o store.Object) bool { return objMatch(o, q.Matcher, q.Filter) }
	err := st.Scan(kind, matchFn, nil, func(o store.Object) error {
		subtreeFilter := func(c store.Object) bool { return objMatch(c, q.Filter) }
		return store.EmitSubtree(o, subtreeFilter, w)
	})
	if err != nil {
		return 0, err
	}
	return ResultData, nil
}

func executeStore(q *planner.Query, st *store.Store) (ResultCode, error) {
	lastUpdate := time.Now()
	if q.HasLastUpdate {
		lastUpdate = time.Unix(0, q.LastUpdate)
	}

	var err error
	switch q.ObjType {
	case ast.ObjHost:
		if len(q.Path) != 1 {
			return 0, fmt.Errorf("eval: STORE host expects a single path segment, got %d", len(q.Path))
		}
		_, err = st.StoreHost(q.Path[0], lastUpdate, q.Backends)
	case ast.ObjService:
		if len(q.Path) != 2 {
			return 0, fmt.Errorf("eval: STORE service expects host.name, got %d segments", len(q.Path))
		}
		_, err = st.StoreService(q.Path[0], q.Path[1], lastUpdate, q.Backends)
	case ast.ObjMetric:
		if len(q.Path) != 2 {
			return 0, fmt.Errorf("eval: STORE metric expects host.name, got %d segments", len(q.Path))
		}
		var ts *store.TSStore
		if q.HasTimeseries {
			ts = &store.TSStore{Type: q.TSType, ID: q.TSID}
		}
		_, err = st.StoreMetric(q.Path[0], q.Path[1], ts, lastUpdate, q.Backends)
	case ast.ObjHostAttribute:
		if len(q.Path) != 2 {
			return 0, fmt.Errorf("eval: STORE host attribute expects host.key, got %d segments", len(q.Path))
		}
		_, err = st.StoreAttribute(q.Path[0], store.KindHost, "", q.Path[1], constValue(q.Value), lastUpdate, q.Backends)
	case ast.ObjServiceAttribute:
		if len(q.Path) != 3 {
			return 0, fmt.Errorf("eval: STORE service attribute expects host.service.key, got %d segments", len(q.Path))
		}
		_, err = st.StoreAttribute(q.Path[0], store.KindService, q.Path[1], q.Path[2], constValue(q.Value), lastUpdate, q.Backends)
	case ast.ObjMetricAttribute:
		if len(q.Path) != 3 {
			return 0, fmt.Errorf("eval: STORE metric attribute expects host.metric.key, got %d segments", len(q.Path))
		}
		_, err = st.StoreAttribute(q.Path[0], store.KindMetric, q.Path[1], q.Path[2], constValue(q.Value), lastUpdate, q.Backends)
	default:
		return 0, fmt.Errorf("eval: %s cannot be STORE'd", q.ObjType)
	}
	// A Stale write (spec.md §7) is silent by design; either way the
	// command itself succeeded, so the reply is always OK.
	if err != nil {
		return 0, err
	}
	return ResultOK, nil
}

func constValue(e planner.Expr) data.Datum {
	if c, ok := e.(planner.ConstExpr); ok {
		return c.Value
	}
	return data.NewNull()
}

// resolveObject walks q.Path per q.ObjType's shape. The caller must hold
// st's read lock.
func resolveObject(st *store.Store, ot ast.ObjType, path []string) store.Object {
	if len(path) == 0 {
		return nil
	}
	h := st.LookupHost(path[0])
	if h == nil {
		return nil
	}
	switch ot {
	case ast.ObjHost:
		if len(path) != 1 {
			return nil
		}
		return h
	case ast.ObjService:
		if len(path) != 2 {
			return nil
		}
		return store.ChildOf(h, store.KindService, path[1])
	case ast.ObjMetric:
		if len(path) != 2 {
			return nil
		}
		return store.ChildOf(h, store.KindMetric, path[1])
	case ast.ObjHostAttribute:
		if len(path) != 2 {
			return nil
		}
		return store.ChildOf(h, store.KindAttribute, path[1])
	case ast.ObjServiceAttribute:
		if len(path) != 3 {
			return nil
		}
		svc := store.ChildOf(h, store.KindService, path[1])
		if svc == nil {
			return nil
		}
		a, ok := store.AttrOf(svc, path[2])
		if !ok {
			return nil
		}
		return a
	case ast.ObjMetricAttribute:
		if len(path) != 3 {
			return nil
		}
		m := store.ChildOf(h, store.KindMetric, path[1])
		if m == nil {
			return nil
		}
		a, ok := store.AttrOf(m, path[2])
		if !ok {
			return nil
		}
		return a
	default:
		return nil
	}
}

func scanKindOf(ot ast.ObjType) (store.Kind, bool) {
	switch ot {
	case ast.ObjHosts:
		return store.KindHost, true
	case ast.ObjServices:
		return store.KindService, true
	case ast.ObjMetrics:
		return store.KindMetric, true
	default:
		return 0, false
	}
}

// objMatch evaluates every non-nil condition against obj and ANDs the
// results, used to combine a LOOKUP's Matcher and Filter clauses (both of
// which apply to the same candidate object) without changing
// store.Scan's own filter/matcher split, which gates on the parent host
// for Service/Metric scans rather than the child being tested.
func objMatch(obj store.Object, conditions ...planner.Matcher) bool {
	ctx := evalCtx{obj: obj}
	for _, c := range conditions {
		if c == nil {
			continue
		}
		if !evalMatcher(ctx, c) {
			return false
		}
	}
	return true
}

// evalCtx carries the object currently being evaluated against, plus the
// value (if any) an enclosing Iterator has bound into its inner
// comparator's unbound slot.
type evalCtx struct {
	obj      store.Object
	bound    data.Datum
	hasBound bool
}

func evalMatcher(ctx evalCtx, m planner.Matcher) bool {
	switch v := m.(type) {
	case nil:
		return true
	case *planner.AndMatcher:
		return evalMatcher(ctx, v.Left) && evalMatcher(ctx, v.Right)
	case *planner.OrMatcher:
		return evalMatcher(ctx, v.Left) || evalMatcher(ctx, v.Right)
	case *planner.NotMatcher:
		return !evalMatcher(ctx, v.Operand)
	case *planner.CompareMatcher:
		return evalCompare(ctx, v)
	case *planner.RegexMatcher:
		return evalRegex(ctx, v)
	case *planner.InMatcher:
		l := evalExpr(ctx, v.Left)
		r := evalExpr(ctx, v.Right)
		ok, err := data.InArray(l, r)
		if err != nil {
			return false
		}
		return ok
	case *planner.IsNullMatcher:
		return evalExpr(ctx, v.Operand).IsNull()
	case *planner.IsTrueMatcher:
		if v.Matcher != nil {
			return evalMatcher(ctx, v.Matcher)
		}
		return isTruthy(evalExpr(ctx, v.Operand))
	case *planner.IsFalseMatcher:
		if v.Matcher != nil {
			return !evalMatcher(ctx, v.Matcher)
		}
		d := evalExpr(ctx, v.Operand)
		return !d.IsNull() && !isTruthy(d)
	case *planner.IterMatcher:
		return evalIter(ctx, v)
	default:
		return false
	}
}

func evalCompare(ctx evalCtx, v *planner.CompareMatcher) bool {
	l := evalExpr(ctx, v.Left)
	r := evalExpr(ctx, v.Right)
	cmp, ok := l.Compare(r)
	if !ok {
		return false
	}
	switch v.Op {
	case ast.OpLT:
		return cmp < 0
	case ast.OpLE:
		return cmp <= 0
	case ast.OpEQ:
		return cmp == 0
	case ast.OpNE:
		return cmp != 0
	case ast.OpGE:
		return cmp >= 0
	case ast.OpGT:
		return cmp > 0
	default:
		return false
	}
}

// evalRegex resolves v.Right to a compiled pattern — a precompiled
// data.Regex constant, or a dynamic right operand compiled on demand —
// and matches it against v.Left. Compilation failure yields no-match,
// never an error (spec.md §4.7).
func evalRegex(ctx evalCtx, v *planner.RegexMatcher) bool {
	l := evalExpr(ctx, v.Left)
	s, ok := l.AsString()
	if !ok {
		return false
	}
	re := resolveRegex(ctx, v.Right)
	if re == nil {
		return false
	}
	matched := re.MatchString(s)
	if v.Neg {
		return !matched
	}
	return matched
}

func resolveRegex(ctx evalCtx, e planner.Expr) *regexp.Regexp {
	d := evalExpr(ctx, e)
	if re, _, ok := d.AsRegex(); ok {
		return re
	}
	if s, ok := d.AsString(); ok {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil
		}
		return re
	}
	return nil
}

func isTruthy(d data.Datum) bool {
	i, ok := d.AsInteger()
	return ok && i != 0
}

// evalIter evaluates an ANY/ALL quantifier: ALL is conjunction over the
// iterated sequence (true on empty), ANY is disjunction (false on empty).
// Each element is bound into the unbound slot of v.Inner for the
// duration of that element's evaluation (spec.md §4.7).
func evalIter(ctx evalCtx, v *planner.IterMatcher) bool {
	elems := iterElements(ctx, v.Iter)
	if v.All {
		for _, e := range elems {
			inner := evalCtx{obj: ctx.obj, bound: e, hasBound: true}
			if !evalMatcher(inner, v.Inner) {
				return false
			}
		}
		return true
	}
	for _, e := range elems {
		inner := evalCtx{obj: ctx.obj, bound: e, hasBound: true}
		if evalMatcher(inner, v.Inner) {
			return true
		}
	}
	return false
}

// iterElements produces the sequence an Iterator quantifies over: for a
// TypedExpr (a collection reference — service.name, metric.name, or
// attribute.value) it reads Inner off every child in that collection;
// for any other Expr it treats the evaluated value as an array and
// returns its elements.
func iterElements(ctx evalCtx, iter planner.Expr) []data.Datum {
	typed, ok := iter.(*planner.TypedExpr)
	if !ok {
		d := evalExpr(ctx, iter)
		elems, _ := d.AsArray()
		return elems
	}
	var kind store.Kind
	switch typed.ObjType {
	case ast.ObjService:
		kind = store.KindService
	case ast.ObjMetric:
		kind = store.KindMetric
	case ast.ObjAttribute:
		kind = store.KindAttribute
	default:
		return nil
	}
	children := store.ChildrenOf(ctx.obj, kind)
	out := make([]data.Datum, len(children))
	for i, child := range children {
		out[i] = evalExpr(evalCtx{obj: child}, typed.Inner)
	}
	return out
}

// evalExpr evaluates e against ctx.obj, returning Null for any failure
// (missing attribute, wrong object kind, arithmetic error) rather than
// propagating an error, per spec.md §7's "substitute Null and continue".
func evalExpr(ctx evalCtx, e planner.Expr) data.Datum {
	switch v := e.(type) {
	case planner.ConstExpr:
		return v.Value
	case planner.FieldExpr:
		d, err := store.GetField(ctx.obj, v.Field)
		if err != nil {
			return data.NewNull()
		}
		return d
	case planner.AttrExpr:
		a, ok := store.AttrOf(ctx.obj, v.Name)
		if !ok {
			return data.NewNull()
		}
		return a.Value()
	case planner.UnboundExpr:
		if ctx.hasBound {
			return ctx.bound
		}
		return data.NewNull()
	case *planner.TypedExpr:
		// host.<field> resolves Inner against the parent host of the
		// object being evaluated. Any other TypedExpr is only meaningful
		// as an Iterator's Iter operand (handled by iterElements); there
		// is no single current object to resolve Inner against.
		if v.ObjType == ast.ObjHost {
			for o := ctx.obj; o != nil; o = o.Parent() {
				if o.Kind() == store.KindHost {
					return evalExpr(evalCtx{obj: o}, v.Inner)
				}
			}
		}
		return data.NewNull()
	case *planner.ArithExpr:
		return evalArith(ctx, v)
	default:
		return data.NewNull()
	}
}

func evalArith(ctx evalCtx, v *planner.ArithExpr) data.Datum {
	l := evalExpr(ctx, v.Left)
	r := evalExpr(ctx, v.Right)
	if l.Typ == data.Datetime && r.Typ == data.Integer && (v.Op == ast.OpMul || v.Op == ast.OpDiv) {
		d, err := data.EvalDatetimeScale(dataOpOf(v.Op), l, r)
		if err != nil {
			return data.NewNull()
		}
		return d
	}
	d, err := data.Eval(dataOpOf(v.Op), l, r)
	if err != nil {
		return data.NewNull()
	}
	return d
}

func dataOpOf(op ast.OpKind) data.Op {
	switch op {
	case ast.OpAdd:
		return data.OpAdd
	case ast.OpSub:
		return data.OpSub
	case ast.OpMul:
		return data.OpMul
	case ast.OpDiv:
		return data.OpDiv
	case ast.OpMod:
		return data.OpMod
	default:
		return data.OpConcat
	}
}
