// Package conn implements the per-connection read/dispatch/reply state
// machine spec.md §4.9 describes: a read buffer that accumulates bytes
// non-blockingly, a decode step that waits for a full frame before
// acting, an authentication gate that only accepts STARTUP until it
// succeeds, and command dispatch into the SysQL pipeline
// (internal/parser, internal/analyzer, internal/planner, internal/eval)
// or directly into the store's writer methods for the STORE_* shorthand
// commands.
package conn

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sysdb/sysdb/internal/analyzer"
	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/errbuf"
	"github.com/sysdb/sysdb/internal/eval"
	"github.com/sysdb/sysdb/internal/parser"
	"github.com/sysdb/sysdb/internal/planner"
	"github.com/sysdb/sysdb/internal/proto"
	"github.com/sysdb/sysdb/internal/store"
)

// Conn holds the state spec.md §4.9 assigns to a connection: the
// accumulated read buffer, whether STARTUP has completed, and the
// username it supplied. It has no network dependency of its own —
// internal/server owns the socket and feeds Conn raw bytes, which keeps
// this package testable without a real listener.
type Conn struct {
	ID       string
	store    *store.Store
	log      *zap.SugaredLogger
	buf      []byte
	username string
	ready    bool
}

// New returns a Conn bound to st, ready to accept bytes via Feed.
func New(id string, st *store.Store, log *zap.SugaredLogger) *Conn {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Conn{ID: id, store: st, log: log}
}

// Reply is one wire reply a dispatched command produces.
type Reply struct {
	Type proto.Type
	Body []byte
}

// Feed appends newly read bytes to the connection's buffer and drains
// every complete frame it can find, dispatching each and returning its
// reply in order. Feed never blocks; it is meant to be called after
// each successful Read on the underlying socket (spec.md §4.9 steps
// 1-4), with the caller looping until Read itself would block or the
// peer closes.
func (c *Conn) Feed(data []byte) []Reply {
	c.buf = append(c.buf, data...)

	var replies []Reply
	for {
		msg, n, ok, err := proto.TryDecodeMessage(c.buf)
		if err != nil {
			replies = append(replies, errorReply(err))
			c.buf = nil
			return replies
		}
		if !ok {
			return replies
		}
		c.buf = c.buf[n:]
		replies = append(replies, c.dispatch(msg))
	}
}

func errorReply(err error) Reply {
	return Reply{Type: proto.TypeERROR, Body: []byte(err.Error())}
}

func okReply(msg string) Reply {
	return Reply{Type: proto.TypeOK, Body: []byte(msg)}
}

// dispatch enforces the authentication gate and routes one decoded
// message to its handler (spec.md §4.9's dispatch rules).
func (c *Conn) dispatch(msg proto.Message) Reply {
	if !c.ready && msg.Type != proto.TypeSTARTUP {
		return errorReply(fmt.Errorf("Authentication required"))
	}

	switch msg.Type {
	case proto.TypeSTARTUP:
		return c.handleStartup(msg.Body)
	case proto.TypePING:
		return okReply("")
	case proto.TypeQUERY:
		return c.handleQuery(msg.Body)
	case proto.TypeFETCH:
		return c.handleFetch(msg.Body)
	case proto.TypeLIST:
		return c.handleList(msg.Body)
	case proto.TypeLOOKUP:
		return c.handleLookup(msg.Body)
	case proto.TypeSTOREHost, proto.TypeSTOREService, proto.TypeSTOREMetric, proto.TypeSTOREAttribute:
		return c.handleStore(msg.Type, msg.Body)
	default:
		return errorReply(fmt.Errorf("Invalid command %d", uint32(msg.Type)))
	}
}

func (c *Conn) handleStartup(body []byte) Reply {
	if len(body) == 0 {
		return errorReply(fmt.Errorf("STARTUP requires a non-empty username"))
	}
	c.username = string(body)
	c.ready = true
	return okReply("ready")
}

// handleQuery parses, analyzes, plans, and executes a full SysQL
// statement; exactly one command is permitted per message (spec.md
// §4.8's "single statement enforced").
func (c *Conn) handleQuery(body []byte) Reply {
	if bytes.IndexByte(body, 0) >= 0 {
		return errorReply(fmt.Errorf("QUERY text must not contain NUL bytes"))
	}
	var errs errbuf.Buffer
	nodes, ok := parser.ParseStatement(string(body), &errs)
	if !ok {
		return errorReply(fmt.Errorf("%s", errs.String()))
	}
	if len(nodes) != 1 {
		return errorReply(fmt.Errorf("QUERY accepts exactly one statement, got %d", len(nodes)))
	}

	ctx := contextOf(nodes[0])
	if !analyzer.Analyze(nodes[0], ctx, &errs) {
		return errorReply(fmt.Errorf("%s", errs.String()))
	}

	q, err := planner.Plan(nodes[0])
	if err != nil {
		return errorReply(err)
	}
	return c.execute(q)
}

// contextOf reports the object-kind context a top-level command node
// analyzes its expressions against.
func contextOf(node ast.Node) ast.ObjType {
	switch v := node.(type) {
	case *ast.Fetch:
		return analyzer.BaseCtx(v.ObjType)
	case *ast.List:
		return analyzer.BaseCtx(v.ObjType)
	case *ast.Lookup:
		return analyzer.BaseCtx(v.ObjType)
	case *ast.Store:
		return analyzer.BaseCtx(v.ObjType)
	default:
		return ast.ObjHost
	}
}

// handleFetch decodes the binary shorthand body: u32 object-kind
// followed by the dotted identifier path as the rest of the body
// (spec.md §4.8).
func (c *Conn) handleFetch(body []byte) Reply {
	kindV, n, err := proto.DecodeUint32(body)
	if err != nil {
		return errorReply(err)
	}
	q := &planner.Query{Kind: planner.CmdFetch, ObjType: ast.ObjType(kindV), Path: splitPath(string(body[n:]))}
	return c.execute(q)
}

// handleList decodes the binary shorthand body: an optional u32
// object-kind. An empty body defaults to ObjHosts, the broadest LIST
// target and the one a client polling the whole fleet wants by default.
func (c *Conn) handleList(body []byte) Reply {
	objType := ast.ObjHosts
	if len(body) > 0 {
		kindV, _, err := proto.DecodeUint32(body)
		if err != nil {
			return errorReply(err)
		}
		objType = ast.ObjType(kindV)
	}
	q := &planner.Query{Kind: planner.CmdList, ObjType: objType}
	return c.execute(q)
}

// handleLookup decodes the binary shorthand body: u32 object-kind
// followed by the MATCHING expression text as the rest of the body,
// parsed in Conditional mode against the target kind's context
// (spec.md §4.4).
func (c *Conn) handleLookup(body []byte) Reply {
	kindV, n, err := proto.DecodeUint32(body)
	if err != nil {
		return errorReply(err)
	}
	matchText := string(body[n:])

	objType := ast.ObjType(kindV)
	var errs errbuf.Buffer
	node, ok := parser.ParseConditional(matchText, &errs)
	if !ok {
		return errorReply(fmt.Errorf("%s", errs.String()))
	}
	if !analyzer.Analyze(node, analyzer.BaseCtx(objType), &errs) {
		return errorReply(fmt.Errorf("%s", errs.String()))
	}
	matcher, err := planner.PlanMatcher(node)
	if err != nil {
		return errorReply(err)
	}

	q := &planner.Query{Kind: planner.CmdLookup, ObjType: objType, Matcher: matcher}
	return c.execute(q)
}

// handleStore decodes a STORE_* shorthand body (spec.md §4.8): a u32
// object-kind, a u64 last_update (nanoseconds since the epoch), the
// NUL-terminated identifier fields the kind requires, and — for
// STORE_ATTRIBUTE only — a trailing wire-encoded Datum. A metric body
// may carry two extra fields naming its time-series store descriptor.
func (c *Conn) handleStore(typ proto.Type, body []byte) Reply {
	kindV, n, err := proto.DecodeUint32(body)
	if err != nil {
		return errorReply(err)
	}
	off := n
	objType := ast.ObjType(kindV)

	lastUpdate, n, err := proto.DecodeUint64(body[off:])
	if err != nil {
		return errorReply(err)
	}
	off += n

	fieldCount, ok := storeFieldCount(typ, objType)
	if !ok {
		return errorReply(fmt.Errorf("%s cannot store a %s", typ, objType))
	}
	path := make([]string, fieldCount)
	for i := range path {
		s, n, err := proto.DecodeCString(body[off:])
		if err != nil {
			return errorReply(err)
		}
		path[i] = s
		off += n
	}

	q := &planner.Query{
		Kind:          planner.CmdStore,
		ObjType:       objType,
		Path:          path,
		LastUpdate:    int64(lastUpdate),
		HasLastUpdate: true,
	}

	switch typ {
	case proto.TypeSTOREMetric:
		// Optional trailing time-series descriptor: type and id.
		if off < len(body) {
			tsType, n, err := proto.DecodeCString(body[off:])
			if err != nil {
				return errorReply(err)
			}
			off += n
			tsID, n, err := proto.DecodeCString(body[off:])
			if err != nil {
				return errorReply(err)
			}
			off += n
			q.TSType, q.TSID, q.HasTimeseries = tsType, tsID, true
		}
	case proto.TypeSTOREAttribute:
		d, _, err := proto.DecodeDatum(body[off:])
		if err != nil {
			return errorReply(err)
		}
		q.Value = planner.ConstExpr{Value: d}
	}
	return c.execute(q)
}

// storeFieldCount reports how many NUL-terminated identifier fields a
// STORE_* body carries for the given object kind, and whether that kind
// is one the message type can store at all.
func storeFieldCount(typ proto.Type, ot ast.ObjType) (int, bool) {
	switch typ {
	case proto.TypeSTOREHost:
		return 1, ot == ast.ObjHost
	case proto.TypeSTOREService:
		return 2, ot == ast.ObjService
	case proto.TypeSTOREMetric:
		return 2, ot == ast.ObjMetric
	case proto.TypeSTOREAttribute:
		switch ot {
		case ast.ObjHostAttribute:
			return 2, true
		case ast.ObjServiceAttribute, ast.ObjMetricAttribute:
			return 3, true
		}
	}
	return 0, false
}

func splitPath(s string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// resultWriter collects ObjectRecords for handleQuery/handleFetch/etc.
// to marshal as the DATA reply's JSON body.
type resultWriter struct {
	recs []store.ObjectRecord
}

func (w *resultWriter) WriteObject(r store.ObjectRecord) error {
	w.recs = append(w.recs, r)
	return nil
}

// execute runs q against the connection's store and renders the wire
// reply: DATA with a u32 sub-type mirroring the producing command
// followed by JSON bytes on success, OK for a STORE write, ERROR
// otherwise (spec.md §4.8, §4.9).
func (c *Conn) execute(q *planner.Query) Reply {
	w := &resultWriter{}
	code, err := eval.Execute(q, c.store, w)
	if err != nil {
		return errorReply(err)
	}
	if code == eval.ResultOK {
		return okReply("")
	}

	body, err := json.Marshal(w.recs)
	if err != nil {
		return errorReply(err)
	}
	subType := subTypeOf(q.Kind)
	out := proto.EncodeUint32(nil, uint32(subType))
	out = append(out, body...)
	return Reply{Type: proto.TypeDATA, Body: out}
}

func subTypeOf(k planner.CmdKind) proto.Type {
	switch k {
	case planner.CmdFetch:
		return proto.TypeFETCH
	case planner.CmdList:
		return proto.TypeLIST
	case planner.CmdLookup:
		return proto.TypeLOOKUP
	case planner.CmdTimeseries:
		return proto.TypeTIMESERIES
	default:
		return proto.TypeDATA
	}
}

