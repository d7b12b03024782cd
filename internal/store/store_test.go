package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sysdb/sysdb/internal/data"
)

func at(sec int64) time.Time { return time.Unix(sec, 0) }

func TestStoreHostUpsertThenFetch(t *testing.T) {
	s := New(nil)
	st, err := s.StoreHost("h1", at(1), []string{"exec"})
	require.NoError(t, err)
	assert.Equal(t, OK, st)

	h := s.GetHost("h1")
	require.NotNil(t, h)
	assert.Equal(t, "h1", h.Name())
	assert.Equal(t, at(1), h.LastUpdate())
}

func TestStaleHostWriteIgnored(t *testing.T) {
	s := New(nil)
	_, err := s.StoreHost("h1", at(3), nil)
	require.NoError(t, err)
	st, err := s.StoreHost("h1", at(1), nil)
	require.NoError(t, err)
	assert.Equal(t, Stale, st)

	h := s.GetHost("h1")
	assert.Equal(t, at(3), h.LastUpdate())
}

func TestEqualLastUpdateIsNoopStale(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(5), nil)
	st, err := s.StoreHost("h1", at(5), nil)
	require.NoError(t, err)
	assert.Equal(t, Stale, st)
}

func TestStaleLoggingOnlyForStrictlyOlderWrites(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := New(zap.New(core).Sugar())
	_, err := s.StoreHost("h1", at(2), nil)
	require.NoError(t, err)

	// Equal timestamp is stale but silent.
	st, err := s.StoreHost("h1", at(2), nil)
	require.NoError(t, err)
	assert.Equal(t, Stale, st)
	assert.Zero(t, logs.Len())

	// A strictly older timestamp is stale and logged at debug.
	st, err = s.StoreHost("h1", at(1), nil)
	require.NoError(t, err)
	assert.Equal(t, Stale, st)
	assert.Equal(t, 1, logs.Len())
}

func TestServiceParentMissing(t *testing.T) {
	s := New(nil)
	_, err := s.StoreService("nope", "svc", at(1), nil)
	assert.ErrorIs(t, err, ErrParentMissing)
}

func TestIntervalSmoothing(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(0), nil)
	_, _ = s.StoreHost("h1", at(10), nil)
	h := s.GetHost("h1")
	assert.Equal(t, 10*time.Second, h.Interval(), "first interval equals the first delta")

	_, _ = s.StoreHost("h1", at(20), nil)
	h = s.GetHost("h1")
	want := time.Duration(0.9*float64(10*time.Second) + 0.1*float64(10*time.Second))
	assert.Equal(t, want, h.Interval())
}

func TestAttributeMergeReplacesValue(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(0), nil)
	_, err := s.StoreAttribute("h1", KindHost, "", "k1", data.NewString("v1"), at(1), nil)
	require.NoError(t, err)
	_, err = s.StoreAttribute("h1", KindHost, "", "k1", data.NewString("v2"), at(2), nil)
	require.NoError(t, err)

	h := s.GetHost("h1")
	a, ok := h.attributes.Lookup("k1")
	require.True(t, ok)
	v, _ := a.Value().AsString()
	assert.Equal(t, "v2", v)
}

func TestBackendUnionCaseInsensitive(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(0), []string{"Exec"})
	_, _ = s.StoreHost("h1", at(1), []string{"exec", "df"})
	h := s.GetHost("h1")
	assert.ElementsMatch(t, []string{"Exec", "df"}, h.Backends())
}

func TestScanServiceIteratorMatchesChildrenAcrossHosts(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(0), nil)
	_, _ = s.StoreHost("h2", at(0), nil)
	_, _ = s.StoreService("h1", "s1", at(0), nil)
	_, _ = s.StoreService("h1", "s2", at(0), nil)
	_, _ = s.StoreService("h2", "s1", at(0), nil)

	var matched []string
	err := s.Scan(KindService, func(o Object) bool {
		return o.Name() == "s2"
	}, nil, func(o Object) error {
		matched = append(matched, o.Parent().Name())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"h1"}, matched)
}

func TestScanHostOrderIsDeterministic(t *testing.T) {
	s := New(nil)
	for _, n := range []string{"zeta", "alpha", "mu"} {
		_, _ = s.StoreHost(n, at(0), nil)
	}
	var order1, order2 []string
	collect := func(dst *[]string) func(Object) error {
		return func(o Object) error {
			*dst = append(*dst, o.Name())
			return nil
		}
	}
	require.NoError(t, s.Scan(KindHost, nil, nil, collect(&order1)))
	require.NoError(t, s.Scan(KindHost, nil, nil, collect(&order2)))
	assert.Equal(t, order1, order2)
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, order1)
}

func TestGetFieldAgeAndBackend(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", time.Now().Add(-time.Minute), []string{"a", "b"})
	h := s.GetHost("h1")

	age, err := GetField(h, "age")
	require.NoError(t, err)
	ns, _ := age.AsDatetime()
	assert.Greater(t, ns, int64(0))

	backend, err := GetField(h, "backend")
	require.NoError(t, err)
	arr, ok := backend.AsArray()
	require.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestGetFieldValueOnlyOnAttribute(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(0), nil)
	h := s.GetHost("h1")
	_, err := GetField(h, "value")
	assert.ErrorIs(t, err, ErrInvalidField)
}

type recordingWriter struct {
	records []ObjectRecord
	failOn  func(ObjectRecord) bool
}

func (w *recordingWriter) WriteObject(r ObjectRecord) error {
	if w.failOn != nil && w.failOn(r) {
		return assertErr
	}
	w.records = append(w.records, r)
	return nil
}

var assertErr = assertError("write failed")

type assertError string

func (e assertError) Error() string { return string(e) }

func TestEmitFullAccumulatesPartialResultsOnError(t *testing.T) {
	s := New(nil)
	_, _ = s.StoreHost("h1", at(0), nil)
	_, _ = s.StoreService("h1", "bad", at(0), nil)
	_, _ = s.StoreService("h1", "good", at(0), nil)

	w := &recordingWriter{failOn: func(r ObjectRecord) bool {
		return r.Kind == KindService && r.Name == "bad"
	}}
	h := s.GetHost("h1")
	err := s.EmitFull(h, nil, w)
	require.Error(t, err, "a trailing error must be reported per the Open Question decision")

	var names []string
	for _, r := range w.records {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "h1")
	assert.Contains(t, names, "good", "the sibling after the failing node must still be emitted")
	assert.NotContains(t, names, "bad")
}
