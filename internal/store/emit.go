package store

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sysdb/sysdb/internal/data"
)

// ObjectRecord is the flat, self-contained serialization of a single
// store object, produced by Emit and EmitFull for a ResultWriter to
// encode onto the wire (spec.md §4.8's "JSON bytes" DATA body).
type ObjectRecord struct {
	Kind       Kind
	Name       string
	LastUpdate time.Time
	Interval   time.Duration
	Backends   []string
	Value      *data.Datum // set only for KindAttribute
	Timeseries *bool       // set only for KindMetric
}

// MarshalJSON renders the record the way a query reply serializes an
// object: name, ISO-local last_update, interval, backend array, and the
// kind-specific value/timeseries field when present.
func (r ObjectRecord) MarshalJSON() ([]byte, error) {
	m := map[string]any{
		"name":        r.Name,
		"last_update": data.NewDatetime(r.LastUpdate.UnixNano()).Format(data.QuoteNone),
		"interval":    data.NewDatetime(int64(r.Interval)).Format(data.QuoteNone),
		"backend":     r.Backends,
	}
	if r.Value != nil {
		m["value"] = r.Value
	}
	if r.Timeseries != nil {
		m["timeseries"] = *r.Timeseries
	}
	return json.Marshal(m)
}

// ResultWriter is the query-result sink Emit and EmitFull write to. The
// protocol layer's DATA-reply encoder and the test doubles in
// internal/eval both implement it.
type ResultWriter interface {
	WriteObject(ObjectRecord) error
}

func recordOf(obj Object) ObjectRecord {
	rec := ObjectRecord{
		Kind:       obj.Kind(),
		Name:       obj.Name(),
		LastUpdate: obj.LastUpdate(),
		Interval:   obj.Interval(),
		Backends:   obj.Backends(),
	}
	switch v := obj.(type) {
	case *Attribute:
		val := v.Value()
		rec.Value = &val
	case *Metric:
		ts := v.Store() != nil
		rec.Timeseries = &ts
	}
	return rec
}

// Emit writes a single object's record to w (spec.md §4.3: "single
// object").
func (s *Store) Emit(obj Object, w ResultWriter) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return w.WriteObject(recordOf(obj))
}

// WriteRecord is Emit without locking, for a caller (internal/eval) that
// is already holding the store's read lock via RLock, e.g. inside a Scan
// callback or across a multi-step FETCH.
func WriteRecord(obj Object, w ResultWriter) error {
	return w.WriteObject(recordOf(obj))
}

// EmitSubtree is EmitFull without locking; the caller must hold RLock.
func EmitSubtree(obj Object, filter func(Object) bool, w ResultWriter) error {
	return emitFull(obj, filter, w)
}

// EmitFull writes obj's own record followed by every descendant that
// passes filter, in pre-order (spec.md §4.3: "object + filtered subtree,
// pre-order"). Per the Open Question in spec.md §9, this implementation
// chooses option (b): a write failure on one node does not abort the
// walk. EmitFull records the first error encountered, keeps emitting
// sibling subtrees, and returns the recorded error (if any) once the
// whole walk completes, so a caller gets the fullest possible reply
// alongside a signal that something was dropped.
func (s *Store) EmitFull(obj Object, filter func(Object) bool, w ResultWriter) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return emitFull(obj, filter, w)
}

func emitFull(obj Object, filter func(Object) bool, w ResultWriter) error {
	var errs []error
	if err := w.WriteObject(recordOf(obj)); err != nil {
		errs = append(errs, err)
	}

	walkAttrs := func(attrs interface {
		Ascend(func(string, *Attribute) bool)
	}) {
		attrs.Ascend(func(_ string, a *Attribute) bool {
			if filter != nil && !filter(a) {
				return true
			}
			if err := emitFull(a, filter, w); err != nil {
				errs = append(errs, err)
			}
			return true
		})
	}

	switch v := obj.(type) {
	case *Host:
		v.services.Ascend(func(_ string, svc *Service) bool {
			if filter != nil && !filter(svc) {
				return true
			}
			if err := emitFull(svc, filter, w); err != nil {
				errs = append(errs, err)
			}
			return true
		})
		v.metrics.Ascend(func(_ string, m *Metric) bool {
			if filter != nil && !filter(m) {
				return true
			}
			if err := emitFull(m, filter, w); err != nil {
				errs = append(errs, err)
			}
			return true
		})
		walkAttrs(v.attributes)
	case *Service:
		walkAttrs(v.attributes)
	case *Metric:
		walkAttrs(v.attributes)
	}

	return errors.Join(errs...)
}
