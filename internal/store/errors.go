package store

import "errors"

// Sentinel errors for the writer and reader contracts (spec.md §7).
// Stale is returned as a status, not one of these errors, since a stale
// write is explicitly "silent; not an error" in spec.md's error-kind
// table. ErrStale names that condition as an error value, but no store
// method returns it; callers check for the Stale status instead.
var (
	ErrStale         = errors.New("store: stale write ignored")
	ErrParentMissing = errors.New("store: parent object missing")
	ErrNotFound      = errors.New("store: object not found")
	ErrDuplicate     = errors.New("store: object already exists")
	ErrInvalidField  = errors.New("store: invalid field name")
)
