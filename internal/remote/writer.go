// Package remote implements store.Writer against a remote sysdbd over
// the wire protocol (spec.md §4.12: "network-forwarding backends may
// implement Writer against a remote server, reusing the protocol
// codec"). A collector backend handed a remote.Writer forwards every
// upsert as a STORE_* message instead of touching a local store.
package remote

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/proto"
	"github.com/sysdb/sysdb/internal/store"
)

// Writer is a store.Writer whose upserts travel to a remote sysdbd.
// Calls are serialized on one connection; the server replies OK to any
// accepted write, so a stale write is indistinguishable from a fresh
// one here and always reports store.OK. The backends argument of each
// upsert is dropped: source attribution is assigned by the receiving
// server, the way the wire STORE_* bodies carry no backend field.
type Writer struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the Unix socket at path and completes the STARTUP
// handshake as username.
func Dial(path, username string) (*Writer, error) {
	c, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("remote: dial %s: %w", path, err)
	}
	w := &Writer{conn: c}
	if err := w.roundTrip(proto.TypeSTARTUP, []byte(username)); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("remote: startup: %w", err)
	}
	return w, nil
}

// Close closes the underlying connection.
func (w *Writer) Close() error { return w.conn.Close() }

func (w *Writer) roundTrip(typ proto.Type, body []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := proto.WriteMessage(w.conn, typ, body); err != nil {
		return err
	}
	reply, err := proto.ReadMessage(w.conn)
	if err != nil {
		return err
	}
	if reply.Type == proto.TypeERROR {
		return fmt.Errorf("remote: server rejected %s: %s", typ, reply.Body)
	}
	return nil
}

func storeBody(kind ast.ObjType, lastUpdate time.Time, fields ...string) []byte {
	body := proto.EncodeUint32(nil, uint32(kind))
	body = proto.EncodeUint64(body, uint64(lastUpdate.UnixNano()))
	for _, f := range fields {
		body = proto.EncodeCString(body, f)
	}
	return body
}

// StoreHost forwards a host upsert.
func (w *Writer) StoreHost(name string, lastUpdate time.Time, _ []string) (store.WriteStatus, error) {
	err := w.roundTrip(proto.TypeSTOREHost, storeBody(ast.ObjHost, lastUpdate, name))
	return store.OK, err
}

// StoreService forwards a service upsert.
func (w *Writer) StoreService(host, name string, lastUpdate time.Time, _ []string) (store.WriteStatus, error) {
	err := w.roundTrip(proto.TypeSTOREService, storeBody(ast.ObjService, lastUpdate, host, name))
	return store.OK, err
}

// StoreMetric forwards a metric upsert, including the time-series
// descriptor when one is attached.
func (w *Writer) StoreMetric(host, name string, ts *store.TSStore, lastUpdate time.Time, _ []string) (store.WriteStatus, error) {
	fields := []string{host, name}
	if ts != nil {
		fields = append(fields, ts.Type, ts.ID)
	}
	err := w.roundTrip(proto.TypeSTOREMetric, storeBody(ast.ObjMetric, lastUpdate, fields...))
	return store.OK, err
}

// StoreAttribute forwards an attribute upsert, trailing the value as a
// wire-encoded Datum.
func (w *Writer) StoreAttribute(host string, parentKind store.Kind, parentName, key string, value data.Datum, lastUpdate time.Time, _ []string) (store.WriteStatus, error) {
	var kind ast.ObjType
	var fields []string
	switch parentKind {
	case store.KindHost:
		kind, fields = ast.ObjHostAttribute, []string{host, key}
	case store.KindService:
		kind, fields = ast.ObjServiceAttribute, []string{host, parentName, key}
	case store.KindMetric:
		kind, fields = ast.ObjMetricAttribute, []string{host, parentName, key}
	default:
		return store.OK, fmt.Errorf("remote: %s cannot own attributes", parentKind)
	}

	body := storeBody(kind, lastUpdate, fields...)
	body, err := proto.EncodeDatum(body, value)
	if err != nil {
		return store.OK, err
	}
	err = w.roundTrip(proto.TypeSTOREAttribute, body)
	return store.OK, err
}

var _ store.Writer = (*Writer)(nil)
