package store

import (
	"time"

	"github.com/sysdb/sysdb/internal/data"
)

// Writer is the contract backends feed object updates through (spec.md
// §4.12): one upsert method per object kind, each taking the full
// identifying path and the update timestamp. The in-memory Store
// implements it directly; internal/remote implements it against a
// remote sysdbd over the wire protocol, so a collector backend can feed
// either without knowing which it holds.
type Writer interface {
	StoreHost(name string, lastUpdate time.Time, backends []string) (WriteStatus, error)
	StoreService(host, name string, lastUpdate time.Time, backends []string) (WriteStatus, error)
	StoreMetric(host, name string, ts *TSStore, lastUpdate time.Time, backends []string) (WriteStatus, error)
	StoreAttribute(host string, parentKind Kind, parentName, key string, value data.Datum, lastUpdate time.Time, backends []string) (WriteStatus, error)
}

var _ Writer = (*Store)(nil)
