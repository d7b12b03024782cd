package server

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysdb/sysdb/internal/proto"
	"github.com/sysdb/sysdb/internal/store"
)

func startTestServer(t *testing.T) (string, func()) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "sysdbd.sock")
	st := store.New(nil)
	_, err := st.StoreHost("h1", time.Unix(1, 0), []string{"seed"})
	require.NoError(t, err)

	srv, err := New(st, Config{Listen: []string{"unix:" + sock}, Workers: 2, ChannelDepth: 8}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Wait for the socket file to exist before the caller dials it.
	require.Eventually(t, func() bool {
		_, err := net.Dial("unix", sock)
		if err == nil {
			return true
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)

	return sock, func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("server did not shut down")
		}
	}
}

func readReply(t *testing.T, c net.Conn) (proto.Type, []byte) {
	t.Helper()
	hdr := make([]byte, 8)
	_, err := readFull(c, hdr)
	require.NoError(t, err)
	typ := proto.Type(binary.BigEndian.Uint32(hdr[:4]))
	length := binary.BigEndian.Uint32(hdr[4:])
	body := make([]byte, length)
	_, err = readFull(c, body)
	require.NoError(t, err)
	return typ, body
}

func readFull(c net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := c.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func TestServerAuthGate(t *testing.T) {
	sock, stop := startTestServer(t)
	defer stop()

	c, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write(proto.EncodeMessage(proto.TypePING, nil))
	require.NoError(t, err)
	typ, body := readReply(t, c)
	assert.Equal(t, proto.TypeERROR, typ)
	assert.Contains(t, string(body), "Authentication required")

	_, err = c.Write(proto.EncodeMessage(proto.TypeSTARTUP, []byte("alice")))
	require.NoError(t, err)
	typ, _ = readReply(t, c)
	assert.Equal(t, proto.TypeOK, typ)

	_, err = c.Write(proto.EncodeMessage(proto.TypePING, nil))
	require.NoError(t, err)
	typ, _ = readReply(t, c)
	assert.Equal(t, proto.TypeOK, typ)
}

func TestServerQueryRoundTrip(t *testing.T) {
	sock, stop := startTestServer(t)
	defer stop()

	c, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write(proto.EncodeMessage(proto.TypeSTARTUP, []byte("alice")))
	require.NoError(t, err)
	_, _ = readReply(t, c)

	_, err = c.Write(proto.EncodeMessage(proto.TypeQUERY, []byte(`FETCH host 'h1'`)))
	require.NoError(t, err)
	typ, body := readReply(t, c)
	require.Equal(t, proto.TypeDATA, typ)

	subType := binary.BigEndian.Uint32(body[:4])
	assert.Equal(t, uint32(proto.TypeFETCH), subType)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(body[4:], &records))
	require.Len(t, records, 1)
	assert.Equal(t, "h1", records[0]["name"])
}

// TestServerFramingResumption exercises spec.md §8 scenario 6: a header
// split across two writes followed by a body split across two more must
// still produce exactly one DATA reply.
func TestServerFramingResumption(t *testing.T) {
	sock, stop := startTestServer(t)
	defer stop()

	c, err := net.Dial("unix", sock)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Write(proto.EncodeMessage(proto.TypeSTARTUP, []byte("alice")))
	require.NoError(t, err)
	_, _ = readReply(t, c)

	msg := proto.EncodeMessage(proto.TypeQUERY, []byte(`FETCH host 'h1'`))
	require.Greater(t, len(msg), 12)

	_, err = c.Write(msg[:4])
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.Write(msg[4:8])
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	mid := 8 + (len(msg)-8)/2
	_, err = c.Write(msg[8:mid])
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.Write(msg[mid:])
	require.NoError(t, err)

	typ, _ := readReply(t, c)
	assert.Equal(t, proto.TypeDATA, typ)

	// No second reply should be pending: attempt a short, bounded read.
	_ = c.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	extra := make([]byte, 1)
	_, err = c.Read(extra)
	assert.Error(t, err) // timeout, confirming no spurious second reply
}
