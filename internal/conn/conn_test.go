package conn

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysdb/sysdb/internal/ast"
	"github.com/sysdb/sysdb/internal/data"
	"github.com/sysdb/sysdb/internal/proto"
	"github.com/sysdb/sysdb/internal/store"
)

func startup(t *testing.T, c *Conn) {
	t.Helper()
	replies := c.Feed(proto.EncodeMessage(proto.TypeSTARTUP, []byte("tester")))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeOK, replies[0].Type)
}

func TestUnauthenticatedRejectsEverythingButStartup(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	replies := c.Feed(proto.EncodeMessage(proto.TypePING, nil))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeERROR, replies[0].Type)
	assert.Contains(t, string(replies[0].Body), "Authentication required")
}

func TestStartupThenPing(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	startup(t, c)

	replies := c.Feed(proto.EncodeMessage(proto.TypePING, nil))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeOK, replies[0].Type)
}

func TestUnknownCommandType(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	startup(t, c)

	replies := c.Feed(proto.EncodeMessage(proto.Type(999), nil))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeERROR, replies[0].Type)
	assert.Contains(t, string(replies[0].Body), "Invalid command 999")
}

func TestPartialFrameWaitsForMoreBytes(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	startup(t, c)

	full := proto.EncodeMessage(proto.TypePING, nil)
	replies := c.Feed(full[:5])
	assert.Empty(t, replies)

	replies = c.Feed(full[5:])
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeOK, replies[0].Type)
}

func TestStoreHostThenFetchShorthand(t *testing.T) {
	st := store.New(nil)
	c := New("c1", st, nil)
	startup(t, c)

	storeBody := proto.EncodeUint32(nil, uint32(ast.ObjHost))
	storeBody = proto.EncodeUint64(storeBody, 1)
	storeBody = proto.EncodeCString(storeBody, "h1")
	replies := c.Feed(proto.EncodeMessage(proto.TypeSTOREHost, storeBody))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeOK, replies[0].Type)

	fetchBody := proto.EncodeUint32(nil, uint32(ast.ObjHost))
	fetchBody = append(fetchBody, "h1"...)
	replies = c.Feed(proto.EncodeMessage(proto.TypeFETCH, fetchBody))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeDATA, replies[0].Type)

	subType, n, err := proto.DecodeUint32(replies[0].Body)
	require.NoError(t, err)
	assert.Equal(t, proto.TypeFETCH, proto.Type(subType))

	var recs []map[string]any
	require.NoError(t, json.Unmarshal(replies[0].Body[n:], &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "h1", recs[0]["name"])
}

func TestStoreAttributeThenLookupShorthand(t *testing.T) {
	st := store.New(nil)
	c := New("c1", st, nil)
	startup(t, c)

	_, err := st.StoreHost("h1", time.Now(), nil)
	require.NoError(t, err)

	storeBody := proto.EncodeUint32(nil, uint32(ast.ObjHostAttribute))
	storeBody = proto.EncodeUint64(storeBody, 2)
	storeBody = proto.EncodeCString(storeBody, "h1")
	storeBody = proto.EncodeCString(storeBody, "env")
	storeBody, err = proto.EncodeDatum(storeBody, data.NewString("prod"))
	require.NoError(t, err)
	replies := c.Feed(proto.EncodeMessage(proto.TypeSTOREAttribute, storeBody))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeOK, replies[0].Type)

	lookupBody := proto.EncodeUint32(nil, uint32(ast.ObjHosts))
	lookupBody = append(lookupBody, "env = 'prod'"...)
	replies = c.Feed(proto.EncodeMessage(proto.TypeLOOKUP, lookupBody))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeDATA, replies[0].Type)
}

func TestStoreMetricWithTimeseriesDescriptor(t *testing.T) {
	st := store.New(nil)
	c := New("c1", st, nil)
	startup(t, c)

	_, err := st.StoreHost("h1", time.Unix(0, 1), nil)
	require.NoError(t, err)

	storeBody := proto.EncodeUint32(nil, uint32(ast.ObjMetric))
	storeBody = proto.EncodeUint64(storeBody, 2)
	storeBody = proto.EncodeCString(storeBody, "h1")
	storeBody = proto.EncodeCString(storeBody, "load")
	storeBody = proto.EncodeCString(storeBody, "rrdtool")
	storeBody = proto.EncodeCString(storeBody, "/var/lib/rrd/load.rrd")
	replies := c.Feed(proto.EncodeMessage(proto.TypeSTOREMetric, storeBody))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeOK, replies[0].Type)

	m, ok := st.GetChild("h1", store.KindMetric, "load").(*store.Metric)
	require.True(t, ok)
	require.NotNil(t, m.Store())
	assert.Equal(t, "rrdtool", m.Store().Type)
}

func TestStoreKindMismatchRejected(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	startup(t, c)

	storeBody := proto.EncodeUint32(nil, uint32(ast.ObjService))
	storeBody = proto.EncodeUint64(storeBody, 1)
	storeBody = proto.EncodeCString(storeBody, "h1")
	replies := c.Feed(proto.EncodeMessage(proto.TypeSTOREHost, storeBody))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeERROR, replies[0].Type)
}

func TestQueryRejectsEmbeddedNul(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	startup(t, c)

	replies := c.Feed(proto.EncodeMessage(proto.TypeQUERY, []byte("LIST hosts\x00")))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeERROR, replies[0].Type)
}

func TestListDefaultsToHosts(t *testing.T) {
	st := store.New(nil)
	c := New("c1", st, nil)
	startup(t, c)

	_, err := st.StoreHost("h1", time.Now(), nil)
	require.NoError(t, err)

	replies := c.Feed(proto.EncodeMessage(proto.TypeLIST, nil))
	require.Len(t, replies, 1)
	require.Equal(t, proto.TypeDATA, replies[0].Type)
}

func TestQueryFullStatement(t *testing.T) {
	st := store.New(nil)
	c := New("c1", st, nil)
	startup(t, c)

	_, err := st.StoreHost("h1", time.Now(), nil)
	require.NoError(t, err)

	replies := c.Feed(proto.EncodeMessage(proto.TypeQUERY, []byte(`LIST hosts`)))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeDATA, replies[0].Type)
}

func TestQueryRejectsMultipleStatements(t *testing.T) {
	c := New("c1", store.New(nil), nil)
	startup(t, c)

	replies := c.Feed(proto.EncodeMessage(proto.TypeQUERY, []byte(`LIST hosts; LIST services`)))
	require.Len(t, replies, 1)
	assert.Equal(t, proto.TypeERROR, replies[0].Type)
}

func TestSplitPath(t *testing.T) {
	assert.Equal(t, []string{"h1"}, splitPath("h1"))
	assert.Equal(t, []string{"h1", "s1"}, splitPath("h1.s1"))
}
