package store

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/omap"
)

// Store owns the entire host/service/metric/attribute hierarchy behind a
// single reader-writer lock (spec.md §3, §5).
type Store struct {
	mu    sync.RWMutex
	hosts *omap.Map[*Host]
	log   *zap.SugaredLogger
}

// New returns an empty Store. A nil logger is replaced with a no-op
// logger so callers in tests don't need to supply one.
func New(log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{hosts: omap.New[*Host](), log: log}
}

// WriteStatus reports whether a writer call created or updated an
// object (OK) or ignored an out-of-order update (Stale).
type WriteStatus = writeStatus

const (
	OK    = statusOK
	Stale = statusStale
)

// StoreHost implements the Writer contract's host upsert (spec.md §4.3).
func (s *Store) StoreHost(name string, lastUpdate time.Time, backends []string) (WriteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.hosts.Lookup(name); ok {
		st, older := h.touch(lastUpdate, backends)
		if older {
			s.log.Debugw("stale host write ignored", "host", name, "last_update", lastUpdate)
		}
		return st, nil
	}
	h := newHost(name, lastUpdate, backends)
	s.hosts.Insert(name, h)
	return statusOK, nil
}

// StoreService implements the Writer contract's service upsert.
func (s *Store) StoreService(host, name string, lastUpdate time.Time, backends []string) (WriteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.Lookup(host)
	if !ok {
		return statusStale, ErrParentMissing
	}
	if svc, ok := h.services.Lookup(name); ok {
		st, older := svc.touch(lastUpdate, backends)
		if older {
			s.log.Debugw("stale service write ignored", "host", host, "service", name)
		}
		return st, nil
	}
	svc := newService(h, name, lastUpdate, backends)
	h.services.Insert(name, svc)
	return statusOK, nil
}

// StoreMetric implements the Writer contract's metric upsert. A non-nil
// ts replaces the metric's time-series descriptor if it differs from the
// existing one (spec.md §4.3 step 4).
func (s *Store) StoreMetric(host, name string, ts *TSStore, lastUpdate time.Time, backends []string) (WriteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.Lookup(host)
	if !ok {
		return statusStale, ErrParentMissing
	}
	if m, ok := h.metrics.Lookup(name); ok {
		st, older := m.touch(lastUpdate, backends)
		if st == statusOK && ts != nil && (m.tsStore == nil || *m.tsStore != *ts) {
			m.tsStore = ts
		}
		if older {
			s.log.Debugw("stale metric write ignored", "host", host, "metric", name)
		}
		return st, nil
	}
	m := newMetric(h, name, lastUpdate, backends)
	m.tsStore = ts
	h.metrics.Insert(name, m)
	return statusOK, nil
}

// StoreAttribute implements the Writer contract's attribute upsert.
// parentKind selects which collection on host owns the attribute;
// parentName identifies the service or metric when parentKind is not
// KindHost (it is ignored for KindHost, where the host itself is the
// parent).
func (s *Store) StoreAttribute(host string, parentKind Kind, parentName string, key string, value data.Datum, lastUpdate time.Time, backends []string) (WriteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hosts.Lookup(host)
	if !ok {
		return statusStale, ErrParentMissing
	}

	var attrs *omap.Map[*Attribute]
	var parent Object
	switch parentKind {
	case KindHost:
		attrs, parent = h.attributes, h
	case KindService:
		svc, ok := h.services.Lookup(parentName)
		if !ok {
			return statusStale, ErrParentMissing
		}
		attrs, parent = svc.attributes, svc
	case KindMetric:
		m, ok := h.metrics.Lookup(parentName)
		if !ok {
			return statusStale, ErrParentMissing
		}
		attrs, parent = m.attributes, m
	default:
		return statusStale, ErrParentMissing
	}

	if a, ok := attrs.Lookup(key); ok {
		st, older := a.touch(lastUpdate, backends)
		if st == statusOK && !a.value.Equal(value) {
			a.value = value
		}
		if older {
			s.log.Debugw("stale attribute write ignored", "host", host, "key", key)
		}
		return st, nil
	}
	a := newAttribute(parent, key, value, lastUpdate, backends)
	attrs.Insert(key, a)
	return statusOK, nil
}
