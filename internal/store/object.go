package store

import (
	"math"
	"time"

	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/omap"
)

// Kind identifies one of the four object kinds the store manages.
type Kind int

const (
	KindHost Kind = iota
	KindService
	KindMetric
	KindAttribute
)

func (k Kind) String() string {
	switch k {
	case KindHost:
		return "host"
	case KindService:
		return "service"
	case KindMetric:
		return "metric"
	case KindAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// TSStore identifies the time-series backend descriptor optionally
// attached to a Metric (spec.md §3). The backend driver itself (RRD or
// otherwise) is out of scope; this is only the identifying pointer.
type TSStore struct {
	Type string
	ID   string
}

// Object is the common view over Host, Service, Metric, and Attribute:
// every store object carries a name, a last-update timestamp, a smoothed
// update interval, the set of backends that reported it, and a
// non-owning reference to its parent (nil for Host).
type Object interface {
	Kind() Kind
	Name() string
	LastUpdate() time.Time
	Interval() time.Duration
	Backends() []string
	Parent() Object
}

// base holds the fields common to every object kind and the upsert
// bookkeeping shared by the writer path (spec.md §4.3 step 4).
type base struct {
	name       string
	lastUpdate time.Time
	interval   time.Duration
	backends   *backendSet
}

func newBase(name string, lastUpdate time.Time, backends []string) base {
	return base{name: name, lastUpdate: lastUpdate, backends: newBackendSet(backends)}
}

func (b *base) Name() string             { return b.name }
func (b *base) LastUpdate() time.Time    { return b.lastUpdate }
func (b *base) Interval() time.Duration  { return b.interval }
func (b *base) Backends() []string       { return b.backends.List() }

// touch applies the upsert timestamp rule of spec.md §4.3 step 4/5:
// strictly newer updates advance last_update and recompute interval;
// equal or older updates are left unchanged and reported as stale. The
// second return is true only for a strictly-older write: equal is
// silent, older is logged at debug by the caller. Callers must hold the
// store's write lock.
func (b *base) touch(incoming time.Time, backends []string) (writeStatus, bool) {
	if !incoming.After(b.lastUpdate) {
		return statusStale, incoming.Before(b.lastUpdate)
	}
	delta := incoming.Sub(b.lastUpdate)
	if b.interval == 0 {
		b.interval = delta
	} else {
		b.interval = time.Duration(math.Round(0.9*float64(b.interval) + 0.1*float64(delta)))
	}
	b.lastUpdate = incoming
	b.backends.Add(backends)
	return statusOK, false
}

// Host is a fleet member owning services, metrics, and attributes.
type Host struct {
	base
	services   *omap.Map[*Service]
	metrics    *omap.Map[*Metric]
	attributes *omap.Map[*Attribute]
}

func newHost(name string, lastUpdate time.Time, backends []string) *Host {
	return &Host{
		base:       newBase(name, lastUpdate, backends),
		services:   omap.New[*Service](),
		metrics:    omap.New[*Metric](),
		attributes: omap.New[*Attribute](),
	}
}

func (h *Host) Kind() Kind     { return KindHost }
func (h *Host) Parent() Object { return nil }

// Service is owned by a Host and owns its own attributes.
type Service struct {
	base
	parent     *Host
	attributes *omap.Map[*Attribute]
}

func newService(parent *Host, name string, lastUpdate time.Time, backends []string) *Service {
	return &Service{
		base:       newBase(name, lastUpdate, backends),
		parent:     parent,
		attributes: omap.New[*Attribute](),
	}
}

func (s *Service) Kind() Kind     { return KindService }
func (s *Service) Parent() Object { return s.parent }

// Metric is owned by a Host, owns its own attributes, and may carry an
// optional time-series store descriptor.
type Metric struct {
	base
	parent     *Host
	attributes *omap.Map[*Attribute]
	tsStore    *TSStore
}

func newMetric(parent *Host, name string, lastUpdate time.Time, backends []string) *Metric {
	return &Metric{
		base:       newBase(name, lastUpdate, backends),
		parent:     parent,
		attributes: omap.New[*Attribute](),
	}
}

func (m *Metric) Kind() Kind     { return KindMetric }
func (m *Metric) Parent() Object { return m.parent }

// Store returns the metric's time-series descriptor, or nil if none is
// attached.
func (m *Metric) Store() *TSStore { return m.tsStore }

// Attribute is owned by a Host, Service, or Metric and carries a single
// typed value.
type Attribute struct {
	base
	parent Object
	value  data.Datum
}

func newAttribute(parent Object, name string, value data.Datum, lastUpdate time.Time, backends []string) *Attribute {
	return &Attribute{
		base:   newBase(name, lastUpdate, backends),
		parent: parent,
		value:  value,
	}
}

func (a *Attribute) Kind() Kind     { return KindAttribute }
func (a *Attribute) Parent() Object { return a.parent }

// Value returns the attribute's current value.
func (a *Attribute) Value() data.Datum { return a.value }

type writeStatus int

const (
	statusOK writeStatus = iota
	statusStale
)
