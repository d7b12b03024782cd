// Package parser implements the SysQL lexer-driven, recursive-descent
// parser (spec.md §4.4, §4.5): three entry points — ParseStatement,
// ParseConditional, and ParseArithmetic — each lower SysQL source text
// into an internal/ast tree. Syntax errors are collected into a
// caller-supplied internal/errbuf.Buffer; on any error, the entry point
// returns (nil, false) and leaves the full diagnostic in the buffer
// (spec.md §4.4: "on any syntax error the parse returns no AST").
//
// The grammar is a standard precedence-climbing expression parser (OR >
// AND > NOT > comparison > concat > additive > multiplicative > primary)
// layered under five top-level command productions (FETCH, LIST, LOOKUP,
// STORE, TIMESERIES).
package parser

import (
	"strings"

	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/errbuf"
	"github.com/sysdb/sysdb/internal/lexer"
)

// genericFields is the fixed set of object-field names spec.md §4.3
// defines (as opposed to named attribute lookups). A bare identifier
// matching one of these parses as ast.ValueField; anything else parses
// as ast.ValueAttribute. This split is a parser-level decision the
// grammar itself does not spell out explicitly; see DESIGN.md.
var genericFields = map[string]bool{
	"name": true, "last_update": true, "age": true, "interval": true,
	"backend": true, "value": true, "timeseries": true,
}

// Parser holds the lexer and lookahead state for a single parse. It is
// not reused across parses.
type Parser struct {
	lex    *lexer.Lexer
	errs   *errbuf.Buffer
	cur    lexer.Token
	peek   lexer.Token
	failed bool
}

func newParser(input string, errs *errbuf.Buffer) *Parser {
	p := &Parser{lex: lexer.New(input), errs: errs}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.lex.NextToken()
}

func (p *Parser) errorf(format string, args ...any) {
	p.failed = true
	args = append([]any{p.cur.Offset}, args...)
	p.errs.Addf("position %d: "+format, args...)
}

func (p *Parser) expect(k lexer.Kind, what string) bool {
	if p.cur.Kind != k {
		p.errorf("expected %s, got %q", what, p.cur.Literal)
		return false
	}
	return true
}

// ParseStatement parses one or more ';'-separated commands (FETCH, LIST,
// LOOKUP, STORE, TIMESERIES), spec.md §4.4's "Statement" mode.
func ParseStatement(input string, errs *errbuf.Buffer) ([]ast.Node, bool) {
	p := newParser(input, errs)
	var nodes []ast.Node
	for p.cur.Kind != lexer.EOF && !p.failed {
		n, ok := p.parseCommand()
		if !ok {
			return nil, false
		}
		nodes = append(nodes, n)
		if p.cur.Kind == lexer.SEMICOLON {
			p.advance()
			continue
		}
		break
	}
	if p.failed {
		return nil, false
	}
	if p.cur.Kind != lexer.EOF {
		p.errorf("unexpected trailing token %q", p.cur.Literal)
		return nil, false
	}
	return nodes, true
}

// ParseConditional parses a single boolean expression, spec.md §4.4's
// "Conditional" mode, used for FILTER/MATCHING clauses when parsed
// standalone (e.g. by test tooling or a REPL).
func ParseConditional(input string, errs *errbuf.Buffer) (ast.Node, bool) {
	p := newParser(input, errs)
	expr := p.parseOrExpr()
	if p.failed {
		return nil, false
	}
	if p.cur.Kind != lexer.EOF {
		p.errorf("unexpected trailing token %q", p.cur.Literal)
		return nil, false
	}
	return expr, true
}

// ParseArithmetic parses a single value-producing expression, spec.md
// §4.4's "Arithmetic" mode.
func ParseArithmetic(input string, errs *errbuf.Buffer) (ast.Node, bool) {
	p := newParser(input, errs)
	expr := p.parseConcat()
	if p.failed {
		return nil, false
	}
	if p.cur.Kind != lexer.EOF {
		p.errorf("unexpected trailing token %q", p.cur.Literal)
		return nil, false
	}
	return expr, true
}

func (p *Parser) parseCommand() (ast.Node, bool) {
	switch p.cur.Kind {
	case lexer.FETCH:
		return p.parseFetch()
	case lexer.LIST:
		return p.parseList()
	case lexer.LOOKUP:
		return p.parseLookup()
	case lexer.STORE:
		return p.parseStore()
	case lexer.TIMESERIES:
		return p.parseTimeseries()
	default:
		p.errorf("expected a command (FETCH/LIST/LOOKUP/STORE/TIMESERIES), got %q", p.cur.Literal)
		return nil, false
	}
}

func (p *Parser) parseObjType() (ast.ObjType, bool) {
	switch p.cur.Kind {
	case lexer.HOST:
		p.advance()
		if p.cur.Kind == lexer.ATTRIBUTE {
			p.advance()
			return ast.ObjHostAttribute, true
		}
		return ast.ObjHost, true
	case lexer.HOSTS:
		p.advance()
		return ast.ObjHosts, true
	case lexer.SERVICE:
		p.advance()
		if p.cur.Kind == lexer.ATTRIBUTE {
			p.advance()
			return ast.ObjServiceAttribute, true
		}
		return ast.ObjService, true
	case lexer.SERVICES:
		p.advance()
		return ast.ObjServices, true
	case lexer.METRIC:
		p.advance()
		if p.cur.Kind == lexer.ATTRIBUTE {
			p.advance()
			return ast.ObjMetricAttribute, true
		}
		return ast.ObjMetric, true
	case lexer.METRICS:
		p.advance()
		return ast.ObjMetrics, true
	default:
		p.errorf("expected an object kind, got %q", p.cur.Literal)
		return 0, false
	}
}

// parsePath reads a dot-joined run of quoted-string path segments, e.g.
// 'h1'.'svc1'.'key'.
func (p *Parser) parsePath() []string {
	var segs []string
	for p.cur.Kind == lexer.STRING {
		if p.cur.Literal == "" {
			p.errorf("empty object name")
			return nil
		}
		segs = append(segs, p.cur.Literal)
		p.advance()
		if p.cur.Kind == lexer.DOT {
			p.advance()
			continue
		}
		break
	}
	if len(segs) == 0 {
		p.errorf("expected a quoted path segment, got %q", p.cur.Literal)
	}
	return segs
}

func (p *Parser) parseFetch() (ast.Node, bool) {
	pos := p.cur.Offset
	p.advance() // FETCH
	ot, ok := p.parseObjType()
	if !ok {
		return nil, false
	}
	path := p.parsePath()
	if p.failed {
		return nil, false
	}
	node := &ast.Fetch{Position: ast.Position{Offset: pos}, ObjType: ot, Path: path}
	if p.cur.Kind == lexer.FILTER {
		p.advance()
		node.Filter = p.parseOrExpr()
	}
	return node, !p.failed
}

func (p *Parser) parseList() (ast.Node, bool) {
	pos := p.cur.Offset
	p.advance() // LIST
	ot, ok := p.parseObjType()
	if !ok {
		return nil, false
	}
	node := &ast.List{Position: ast.Position{Offset: pos}, ObjType: ot}
	if p.cur.Kind == lexer.FILTER {
		p.advance()
		node.Filter = p.parseOrExpr()
	}
	return node, !p.failed
}

func (p *Parser) parseLookup() (ast.Node, bool) {
	pos := p.cur.Offset
	p.advance() // LOOKUP
	ot, ok := p.parseObjType()
	if !ok {
		return nil, false
	}
	if !p.expect(lexer.MATCHING, "MATCHING") {
		return nil, false
	}
	p.advance()
	node := &ast.Lookup{Position: ast.Position{Offset: pos}, ObjType: ot}
	node.Matcher = p.parseOrExpr()
	if p.cur.Kind == lexer.FILTER {
		p.advance()
		node.Filter = p.parseOrExpr()
	}
	return node, !p.failed
}

func (p *Parser) parseStore() (ast.Node, bool) {
	pos := p.cur.Offset
	p.advance() // STORE
	ot, ok := p.parseObjType()
	if !ok {
		return nil, false
	}
	path := p.parsePath()
	if p.failed {
		return nil, false
	}
	node := &ast.Store{Position: ast.Position{Offset: pos}, ObjType: ot, Path: path}

	if p.cur.Kind == lexer.TYPE {
		p.advance()
		if !p.expect(lexer.STRING, "a quoted time-series type") {
			return nil, false
		}
		node.TSType = p.cur.Literal
		p.advance()
		if !p.expect(lexer.ID, "ID") {
			return nil, false
		}
		p.advance()
		if !p.expect(lexer.STRING, "a quoted time-series id") {
			return nil, false
		}
		node.TSID = p.cur.Literal
		node.HasTimeseries = true
		p.advance()
	}

	if isAttributeKind(ot) && isValueStart(p.cur.Kind) {
		node.Value = p.parsePrimary()
	}

	if p.cur.Kind == lexer.BACKEND {
		p.advance()
		node.Backends = p.parseStringListLiteral()
	}

	if p.cur.Kind == lexer.LAST {
		p.advance()
		if !p.expect(lexer.UPDATE, "UPDATE") {
			return nil, false
		}
		p.advance()
		ns, ok := p.parseTimestampLiteral()
		if !ok {
			return nil, false
		}
		node.LastUpdate = ns
		node.HasLastUpdate = true
	}

	return node, !p.failed
}

func (p *Parser) parseTimeseries() (ast.Node, bool) {
	pos := p.cur.Offset
	p.advance() // TIMESERIES
	if !p.expect(lexer.STRING, "a quoted hostname") {
		return nil, false
	}
	host := p.cur.Literal
	p.advance()
	if !p.expect(lexer.DOT, "'.'") {
		return nil, false
	}
	p.advance()
	if !p.expect(lexer.STRING, "a quoted metric name") {
		return nil, false
	}
	metric := p.cur.Literal
	p.advance()

	node := &ast.Timeseries{Position: ast.Position{Offset: pos}, Hostname: host, Metric: metric}
	if p.cur.Kind == lexer.START {
		p.advance()
		ns, ok := p.parseTimestampLiteral()
		if !ok {
			return nil, false
		}
		node.Start, node.HasStart = ns, true
	}
	if p.cur.Kind == lexer.END {
		p.advance()
		ns, ok := p.parseTimestampLiteral()
		if !ok {
			return nil, false
		}
		node.End, node.HasEnd = ns, true
	}
	return node, !p.failed
}

func isAttributeKind(ot ast.ObjType) bool {
	return ot == ast.ObjHostAttribute || ot == ast.ObjServiceAttribute || ot == ast.ObjMetricAttribute
}

func isValueStart(k lexer.Kind) bool {
	switch k {
	case lexer.STRING, lexer.INT, lexer.DECIMAL, lexer.DATETIME, lexer.DURATION,
		lexer.NULLTOK, lexer.TRUETOK, lexer.FALSETOK, lexer.LBRACKET:
		return true
	default:
		return false
	}
}

// parseStringListLiteral reads either a single quoted string or a
// bracketed list of quoted strings, used for the BACKEND clause.
func (p *Parser) parseStringListLiteral() []string {
	if p.cur.Kind == lexer.LBRACKET {
		p.advance()
		var out []string
		for p.cur.Kind != lexer.RBRACKET {
			if !p.expect(lexer.STRING, "a quoted backend name") {
				return nil
			}
			out = append(out, p.cur.Literal)
			p.advance()
			if p.cur.Kind == lexer.COMMA {
				p.advance()
				continue
			}
			break
		}
		p.expect(lexer.RBRACKET, "']'")
		p.advance()
		return out
	}
	if !p.expect(lexer.STRING, "a quoted backend name") {
		return nil
	}
	s := p.cur.Literal
	p.advance()
	return []string{s}
}

// parseTimestampLiteral reads a DATETIME, STRING, INT, or DECIMAL token
// and returns nanoseconds since the Unix epoch. Only absolute forms are
// accepted; a DURATION token is rejected.
func (p *Parser) parseTimestampLiteral() (int64, bool) {
	tok := p.cur
	switch tok.Kind {
	case lexer.DATETIME, lexer.STRING:
		d, err := data.Parse(tok.Literal, data.Datetime)
		if err != nil {
			p.errorf("invalid timestamp %q: %v", tok.Literal, err)
			return 0, false
		}
		p.advance()
		ns, _ := d.AsDatetime()
		return ns, true
	case lexer.INT, lexer.DECIMAL:
		d, err := data.Parse(tok.Literal, data.Decimal)
		if err != nil {
			p.errorf("invalid timestamp %q: %v", tok.Literal, err)
			return 0, false
		}
		p.advance()
		f, _ := d.AsDecimal()
		return int64(f * 1e9), true
	default:
		p.errorf("expected a timestamp, got %q", tok.Literal)
		return 0, false
	}
}

// --- expression grammar: OR > AND > NOT > comparison > concat > additive > multiplicative > primary ---

func (p *Parser) parseOrExpr() ast.Node {
	left := p.parseAndExpr()
	for p.cur.Kind == lexer.OR && !p.failed {
		pos := p.cur.Offset
		p.advance()
		right := p.parseAndExpr()
		left = &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAndExpr() ast.Node {
	left := p.parseNotExpr()
	for p.cur.Kind == lexer.AND && !p.failed {
		pos := p.cur.Offset
		p.advance()
		right := p.parseNotExpr()
		left = &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseNotExpr() ast.Node {
	if p.cur.Kind == lexer.NOT {
		pos := p.cur.Offset
		p.advance()
		operand := p.parseNotExpr()
		return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpNot, Right: operand}
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() ast.Node {
	left := p.parseConcat()
	if p.failed {
		return left
	}
	return p.parseComparisonTail(left)
}

// parseComparisonTail consumes a trailing comparison operator (if any)
// and builds the Operator node with left as its left operand. It is
// shared between ordinary comparisons and an ANY/ALL iterator's inner
// comparison, where left is instead the sentinel unbound Value.
func (p *Parser) parseComparisonTail(left ast.Node) ast.Node {
	pos := p.cur.Offset
	switch p.cur.Kind {
	case lexer.LT, lexer.LE, lexer.EQ, lexer.NE, lexer.GE, lexer.GT:
		kind := opFromRelational(p.cur.Kind)
		p.advance()
		right := p.parseConcat()
		return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: kind, Left: left, Right: right}
	case lexer.REGEX, lexer.NREGEX:
		kind := ast.OpRegex
		if p.cur.Kind == lexer.NREGEX {
			kind = ast.OpNregex
		}
		p.advance()
		right := p.parseConcat()
		return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: kind, Left: left, Right: right}
	case lexer.IN:
		p.advance()
		right := p.parsePrimary()
		return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpIn, Left: left, Right: right}
	case lexer.IS:
		p.advance()
		switch p.cur.Kind {
		case lexer.NULLTOK:
			p.advance()
			return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpIsNull, Right: left}
		case lexer.TRUETOK:
			p.advance()
			return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpIsTrue, Right: left}
		case lexer.FALSETOK:
			p.advance()
			return &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpIsFalse, Right: left}
		default:
			p.errorf("expected NULL, TRUE, or FALSE after IS, got %q", p.cur.Literal)
			return left
		}
	default:
		return left
	}
}

func opFromRelational(k lexer.Kind) ast.OpKind {
	switch k {
	case lexer.LT:
		return ast.OpLT
	case lexer.LE:
		return ast.OpLE
	case lexer.EQ:
		return ast.OpEQ
	case lexer.NE:
		return ast.OpNE
	case lexer.GE:
		return ast.OpGE
	case lexer.GT:
		return ast.OpGT
	default:
		return ast.OpEQ
	}
}

func (p *Parser) parseConcat() ast.Node {
	left := p.parseAdditive()
	for p.cur.Kind == lexer.CONCAT && !p.failed {
		pos := p.cur.Offset
		p.advance()
		right := p.parseAdditive()
		left = &ast.Operator{Position: ast.Position{Offset: pos}, Kind: ast.OpConcat, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Node {
	left := p.parseMultiplicative()
	for (p.cur.Kind == lexer.PLUS || p.cur.Kind == lexer.MINUS) && !p.failed {
		pos := p.cur.Offset
		kind := ast.OpAdd
		if p.cur.Kind == lexer.MINUS {
			kind = ast.OpSub
		}
		p.advance()
		right := p.parseMultiplicative()
		left = &ast.Operator{Position: ast.Position{Offset: pos}, Kind: kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Node {
	left := p.parsePrimary()
	for (p.cur.Kind == lexer.ASTERISK || p.cur.Kind == lexer.SLASH || p.cur.Kind == lexer.PERCENT) && !p.failed {
		pos := p.cur.Offset
		var kind ast.OpKind
		switch p.cur.Kind {
		case lexer.ASTERISK:
			kind = ast.OpMul
		case lexer.SLASH:
			kind = ast.OpDiv
		case lexer.PERCENT:
			kind = ast.OpMod
		}
		p.advance()
		right := p.parsePrimary()
		left = &ast.Operator{Position: ast.Position{Offset: pos}, Kind: kind, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePrimary() ast.Node {
	pos := p.cur.Offset
	tok := p.cur
	switch tok.Kind {
	case lexer.INT:
		p.advance()
		d, err := data.Parse(tok.Literal, data.Integer)
		if err != nil {
			p.errorf("invalid integer %q: %v", tok.Literal, err)
			return &ast.Const{Position: ast.Position{Offset: pos}}
		}
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: d}
	case lexer.DECIMAL:
		p.advance()
		d, err := data.Parse(tok.Literal, data.Decimal)
		if err != nil {
			p.errorf("invalid decimal %q: %v", tok.Literal, err)
			return &ast.Const{Position: ast.Position{Offset: pos}}
		}
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: d}
	case lexer.DURATION:
		p.advance()
		ns, err := parseDuration(tok.Literal)
		if err != nil {
			p.errorf("%v", err)
			return &ast.Const{Position: ast.Position{Offset: pos}}
		}
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: data.NewDatetime(ns)}
	case lexer.DATETIME:
		p.advance()
		d, err := data.Parse(tok.Literal, data.Datetime)
		if err != nil {
			p.errorf("invalid datetime %q: %v", tok.Literal, err)
			return &ast.Const{Position: ast.Position{Offset: pos}}
		}
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: d}
	case lexer.STRING:
		p.advance()
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: data.NewString(tok.Literal)}
	case lexer.NULLTOK:
		p.advance()
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: data.NewNull()}
	case lexer.TRUETOK:
		p.advance()
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: data.NewInteger(1)}
	case lexer.FALSETOK:
		p.advance()
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: data.NewInteger(0)}
	case lexer.LBRACKET:
		return p.parseArrayLiteral()
	case lexer.LPAREN:
		p.advance()
		expr := p.parseOrExpr()
		p.expect(lexer.RPAREN, "')'")
		p.advance()
		return expr
	case lexer.ANY, lexer.ALL:
		return p.parseIterator()
	case lexer.HOST, lexer.SERVICE, lexer.METRIC, lexer.ATTRIBUTE:
		return p.parseTypedRef()
	case lexer.IDENT, lexer.BACKEND, lexer.VALUEKW, lexer.TIMESERIES:
		p.advance()
		name := strings.ToLower(tok.Literal)
		if tok.Kind == lexer.BACKEND {
			name = "backend"
		} else if tok.Kind == lexer.VALUEKW {
			name = "value"
		}
		kind := ast.ValueAttribute
		if genericFields[name] {
			kind = ast.ValueField
		}
		return &ast.Value{Position: ast.Position{Offset: pos}, Kind: kind, Name: name}
	default:
		p.errorf("unexpected token %q", tok.Literal)
		return &ast.Const{Position: ast.Position{Offset: pos}}
	}
}

// parseTypedRef parses a `<host|service|metric|attribute>.<field>`
// scoped reference (spec.md §4.4's Typed node): host names the parent
// host, service/metric name a sibling collection, and attribute names
// the current object's own attribute collection.
func (p *Parser) parseTypedRef() ast.Node {
	pos := p.cur.Offset
	var ot ast.ObjType
	switch p.cur.Kind {
	case lexer.HOST:
		ot = ast.ObjHost
	case lexer.SERVICE:
		ot = ast.ObjService
	case lexer.METRIC:
		ot = ast.ObjMetric
	case lexer.ATTRIBUTE:
		ot = ast.ObjAttribute
	}
	p.advance()
	if p.cur.Kind != lexer.DOT {
		p.errorf("expected '.' after %s", ot)
		return &ast.Const{Position: ast.Position{Offset: pos}}
	}
	p.advance()
	field, ok := p.fieldName()
	if !ok {
		p.errorf("expected a field name after '.', got %q", p.cur.Literal)
		return &ast.Const{Position: ast.Position{Offset: pos}}
	}
	p.advance()
	kind := ast.ValueAttribute
	if genericFields[field] {
		kind = ast.ValueField
	}
	inner := &ast.Value{Position: ast.Position{Offset: pos}, Kind: kind, Name: field}
	return &ast.Typed{Position: ast.Position{Offset: pos}, Type: ot, Expr: inner}
}

// fieldName reads the current token as a field or attribute name. value
// and backend are SysQL keywords but remain valid field names after a
// '.', so they are accepted here alongside plain identifiers.
func (p *Parser) fieldName() (string, bool) {
	switch p.cur.Kind {
	case lexer.IDENT:
		return strings.ToLower(p.cur.Literal), true
	case lexer.BACKEND:
		return "backend", true
	case lexer.VALUEKW:
		return "value", true
	default:
		return "", false
	}
}

// parseIterator parses `(ANY|ALL) <iterable> <comparator> <value>`
// (spec.md §4.4). The inner comparison's left operand is the sentinel
// unbound Value{Kind: ValueField, Name: ""} ast.go documents.
func (p *Parser) parseIterator() ast.Node {
	pos := p.cur.Offset
	kind := ast.IterAll
	if p.cur.Kind == lexer.ANY {
		kind = ast.IterAny
	}
	p.advance()
	iter := p.parseIterable()
	unbound := &ast.Value{Position: ast.Position{Offset: p.cur.Offset}, Kind: ast.ValueField, Name: ""}
	expr := p.parseComparisonTail(unbound)
	return &ast.Iterator{Position: ast.Position{Offset: pos}, Kind: kind, Iter: iter, Expr: expr}
}

// parseIterable parses the collection-valued expression an iterator
// quantifies over: either a bare array-typed field (e.g. `backend`) or a
// `<type>.<field>` sibling reference (e.g. `service.name`) denoting the
// field read off each child of that collection.
func (p *Parser) parseIterable() ast.Node {
	switch p.cur.Kind {
	case lexer.HOST, lexer.SERVICE, lexer.METRIC, lexer.ATTRIBUTE:
		return p.parseTypedRef()
	case lexer.IDENT, lexer.BACKEND, lexer.VALUEKW:
		pos := p.cur.Offset
		tok := p.cur
		p.advance()
		name := strings.ToLower(tok.Literal)
		if tok.Kind == lexer.BACKEND {
			name = "backend"
		} else if tok.Kind == lexer.VALUEKW {
			name = "value"
		}
		kind := ast.ValueAttribute
		if genericFields[name] {
			kind = ast.ValueField
		}
		return &ast.Value{Position: ast.Position{Offset: pos}, Kind: kind, Name: name}
	default:
		p.errorf("expected an iterable expression after ANY/ALL, got %q", p.cur.Literal)
		return &ast.Value{}
	}
}

func (p *Parser) parseArrayLiteral() ast.Node {
	pos := p.cur.Offset
	p.advance() // [
	var elems []ast.Node
	for p.cur.Kind != lexer.RBRACKET {
		elems = append(elems, p.parsePrimary())
		if p.failed {
			return &ast.Const{Position: ast.Position{Offset: pos}}
		}
		if p.cur.Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if !p.expect(lexer.RBRACKET, "']'") {
		return &ast.Const{Position: ast.Position{Offset: pos}}
	}
	p.advance()

	if len(elems) == 0 {
		arr, _ := data.NewArray(data.String, nil)
		return &ast.Const{Position: ast.Position{Offset: pos}, Value: arr}
	}
	first, ok := elems[0].(*ast.Const)
	if !ok {
		p.errorf("array literal elements must be constants")
		return &ast.Const{Position: ast.Position{Offset: pos}}
	}
	vals := make([]data.Datum, len(elems))
	for i, e := range elems {
		c, ok := e.(*ast.Const)
		if !ok {
			p.errorf("array literal elements must be constants")
			return &ast.Const{Position: ast.Position{Offset: pos}}
		}
		vals[i] = c.Value
	}
	arr, err := data.NewArray(first.Value.Typ, vals)
	if err != nil {
		p.errorf("%v", err)
		return &ast.Const{Position: ast.Position{Offset: pos}}
	}
	return &ast.Const{Position: ast.Position{Offset: pos}, Value: arr}
}
