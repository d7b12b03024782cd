package store

import (
	"fmt"
	"time"

	"github.com/sysdb/sysdb/internal/data"
)

// GetHost returns the named host, or nil if absent. Callers must be
// operating under a lock obtained via RLock/RUnlock (see Scan/WithRLock)
// if they intend to dereference the returned pointer outside of a single
// call; simple field reads are safe without additional locking since
// Object fields are only ever mutated under the store's write lock.
func (s *Store) GetHost(name string) *Host {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, _ := s.hosts.Lookup(name)
	return h
}

// GetChild returns the named Service, Metric, or (host-level) Attribute
// under host. kind must be KindService, KindMetric, or KindAttribute.
func (s *Store) GetChild(host string, kind Kind, name string) Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hosts.Lookup(host)
	if !ok {
		return nil
	}
	switch kind {
	case KindService:
		if v, ok := h.services.Lookup(name); ok {
			return v
		}
	case KindMetric:
		if v, ok := h.metrics.Lookup(name); ok {
			return v
		}
	case KindAttribute:
		if v, ok := h.attributes.Lookup(name); ok {
			return v
		}
	}
	return nil
}

// GetField returns the value of one of the generic object fields defined
// by spec.md §4.3: name, last_update, age, interval, backend, value, or
// timeseries. value is only defined on Attribute and timeseries only on
// Metric; requesting them on another kind returns ErrInvalidField.
func GetField(obj Object, field string) (data.Datum, error) {
	switch field {
	case "name":
		return data.NewString(obj.Name()), nil
	case "last_update":
		return data.NewDatetime(obj.LastUpdate().UnixNano()), nil
	case "age":
		return data.NewDatetime(int64(time.Since(obj.LastUpdate()))), nil
	case "interval":
		return data.NewDatetime(int64(obj.Interval())), nil
	case "backend":
		names := obj.Backends()
		elems := make([]data.Datum, len(names))
		for i, n := range names {
			elems[i] = data.NewString(n)
		}
		arr, err := data.NewArray(data.String, elems)
		return arr, err
	case "value":
		a, ok := obj.(*Attribute)
		if !ok {
			return data.Datum{}, fmt.Errorf("%w: value is only defined on attributes", ErrInvalidField)
		}
		return a.Value(), nil
	case "timeseries":
		m, ok := obj.(*Metric)
		if !ok {
			return data.Datum{}, fmt.Errorf("%w: timeseries is only defined on metrics", ErrInvalidField)
		}
		return boolDatum(m.Store() != nil), nil
	default:
		return data.Datum{}, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
}

// boolDatum renders a boolean as the Integer 0/1 Datum SysQL uses for
// TRUE/FALSE (spec.md has no dedicated boolean Datum tag; analyzer and
// planner track "Boolean" as a type classification over Integer values
// of 0 or 1, matching the original implementation's convention).
func boolDatum(b bool) data.Datum {
	if b {
		return data.NewInteger(1)
	}
	return data.NewInteger(0)
}

// GetAttr returns the value of the attribute named key on obj's
// attribute collection, applying filter (if non-nil) to the attribute
// object itself before returning its value. It reports false if the
// attribute is absent or rejected by filter.
func (s *Store) GetAttr(obj Object, key string, filter func(*Attribute) bool) (data.Datum, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attrs := attributesOf(obj)
	if attrs == nil {
		return data.Datum{}, false
	}
	a, ok := attrs.Lookup(key)
	if !ok {
		return data.Datum{}, false
	}
	if filter != nil && !filter(a) {
		return data.Datum{}, false
	}
	return a.Value(), true
}

// RLock and RUnlock let a caller (internal/eval) hold the store's read
// lock across a multi-step operation — path resolution, filtering, and
// emission — so it observes one consistent snapshot, the same guarantee
// Scan gives its own traversal (spec.md §5). Code running under RLock
// must use the lock-free accessors below (LookupHost, ChildOf,
// ChildrenOf, AttrOf, GetField) rather than GetHost/GetChild/GetAttr,
// which take the lock themselves and would deadlock if Lock() is
// blocked waiting behind them (sync.RWMutex's RLock is not safely
// reentrant once a writer is queued).
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }

// LookupHost is GetHost without locking; the caller must hold RLock.
func (s *Store) LookupHost(name string) *Host {
	h, _ := s.hosts.Lookup(name)
	return h
}

// ChildOf returns the named service, metric, or host-level attribute
// under h without locking; the caller must hold RLock.
func ChildOf(h *Host, kind Kind, name string) Object {
	switch kind {
	case KindService:
		if v, ok := h.services.Lookup(name); ok {
			return v
		}
	case KindMetric:
		if v, ok := h.metrics.Lookup(name); ok {
			return v
		}
	case KindAttribute:
		if v, ok := h.attributes.Lookup(name); ok {
			return v
		}
	}
	return nil
}

// ChildrenOf returns the ordered services, metrics, or attributes owned
// by obj, used by the evaluator to iterate a collection for an ANY/ALL
// matcher (spec.md §4.6). Service and Metric children are only defined
// on a *Host; attribute children are defined on every object kind, since
// Host, Service, and Metric each own their own attribute collection
// (spec.md §3). The caller must hold RLock.
func ChildrenOf(obj Object, kind Kind) []Object {
	if kind == KindAttribute {
		attrs := attributesOf(obj)
		if attrs == nil {
			return nil
		}
		vals := attrs.Values()
		out := make([]Object, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out
	}

	h, ok := obj.(*Host)
	if !ok {
		return nil
	}
	switch kind {
	case KindService:
		vals := h.services.Values()
		out := make([]Object, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out
	case KindMetric:
		vals := h.metrics.Values()
		out := make([]Object, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		return out
	default:
		return nil
	}
}

// AttrOf returns the attribute named key on obj's attribute collection
// without locking; the caller must hold RLock.
func AttrOf(obj Object, key string) (*Attribute, bool) {
	attrs := attributesOf(obj)
	if attrs == nil {
		return nil, false
	}
	return attrs.Lookup(key)
}

func attributesOf(obj Object) interface {
	Lookup(string) (*Attribute, bool)
	Values() []*Attribute
} {
	switch v := obj.(type) {
	case *Host:
		return v.attributes
	case *Service:
		return v.attributes
	case *Metric:
		return v.attributes
	default:
		return nil
	}
}

// Scan iterates hosts in ascending order. For kind == KindHost, filter
// and matcher are evaluated against each host directly. For kind ==
// KindService or KindMetric, Scan descends into each host's matching
// child collection, evaluating filter against the host to gate whether
// its children are visited at all, and matcher against each child
// (spec.md §4.3). callback is invoked for every object that passes; a
// non-nil error from callback aborts the scan and is returned to the
// caller. Scan holds the read lock for its entire traversal so that it
// observes one consistent snapshot (spec.md §5).
func (s *Store) Scan(kind Kind, matcher, filter func(Object) bool, callback func(Object) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cbErr error
	s.hosts.Ascend(func(_ string, h *Host) bool {
		switch kind {
		case KindHost:
			if filter != nil && !filter(h) {
				return true
			}
			if matcher != nil && !matcher(h) {
				return true
			}
			cbErr = callback(h)
		case KindService:
			if filter != nil && !filter(h) {
				return true
			}
			h.services.Ascend(func(_ string, svc *Service) bool {
				if matcher != nil && !matcher(svc) {
					return true
				}
				cbErr = callback(svc)
				return cbErr == nil
			})
		case KindMetric:
			if filter != nil && !filter(h) {
				return true
			}
			h.metrics.Ascend(func(_ string, m *Metric) bool {
				if matcher != nil && !matcher(m) {
					return true
				}
				cbErr = callback(m)
				return cbErr == nil
			})
		}
		return cbErr == nil
	})
	return cbErr
}
