package server

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sysdb/sysdb/internal/conn"
	"github.com/sysdb/sysdb/internal/proto"
	"github.com/sysdb/sysdb/internal/store"
)

// defaultReadBuf is the chunk size a worker reads into before feeding the
// bytes to conn.Conn.Feed.
const defaultReadBuf = 64 << 10

// Config controls a Server's listen addresses and worker pool shape.
type Config struct {
	// Listen is the set of "unix:/path" addresses to bind (spec.md §6).
	Listen []string
	// Workers is the fixed connection-worker pool size (default 5 per
	// spec.md §4.10).
	Workers int
	// ChannelDepth is the bounded dispatch channel's capacity (default
	// 1024 per spec.md §4.10).
	ChannelDepth int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.ChannelDepth <= 0 {
		c.ChannelDepth = 1024
	}
	return c
}

// connState is one open connection in circulation between the accept
// loop and the worker pool: the raw socket, its sysdb protocol state
// machine, and the identifier used in log fields.
type connState struct {
	id  string
	raw net.Conn
	c   *conn.Conn
}

// Server is the listener + worker pool frontend (C11). It owns every
// listening Unix socket it binds and removes the socket file on
// shutdown.
type Server struct {
	log   *zap.SugaredLogger
	store *store.Store
	cfg   Config

	mu        sync.Mutex
	listeners []*net.UnixListener
	paths     []string

	queue chan *connState
}

// New binds every address in cfg.Listen as a Unix socket listener. The
// listen backlog is the net package's default (the system's somaxconn);
// New does not set it. Binding is eager so a misconfigured address fails
// New, not the first accept.
func New(st *store.Store, cfg Config, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	cfg = cfg.withDefaults()
	if len(cfg.Listen) == 0 {
		return nil, fmt.Errorf("server: at least one listen address is required")
	}

	srv := &Server{log: log, store: st, cfg: cfg, queue: make(chan *connState, cfg.ChannelDepth)}

	for _, addr := range cfg.Listen {
		path, err := unixPath(addr)
		if err != nil {
			srv.closeListeners()
			return nil, err
		}
		_ = os.Remove(path) // stale socket from an unclean prior shutdown

		ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
		if err != nil {
			srv.closeListeners()
			return nil, fmt.Errorf("server: listen %s: %w", addr, err)
		}
		srv.listeners = append(srv.listeners, ln)
		srv.paths = append(srv.paths, path)
	}
	return srv, nil
}

func unixPath(addr string) (string, error) {
	const prefix = "unix:"
	if !strings.HasPrefix(addr, prefix) {
		return "", fmt.Errorf("server: unsupported listen address %q, want \"unix:/path\"", addr)
	}
	path := strings.TrimPrefix(addr, prefix)
	if path == "" {
		return "", fmt.Errorf("server: empty socket path in %q", addr)
	}
	return path, nil
}

// Run starts every accept loop and the worker pool, and blocks until ctx
// is canceled or a fatal listener error occurs. On return every listener
// is closed and its socket file removed (spec.md §4.10's "Listeners are
// closed and their file-system entries removed").
func (srv *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, ln := range srv.listeners {
		ln := ln
		g.Go(func() error { return srv.acceptLoop(ctx, ln) })
	}
	for i := 0; i < srv.cfg.Workers; i++ {
		id := i
		g.Go(func() error { return srv.worker(ctx, id) })
	}

	// Unblock Accept() once ctx is canceled, rather than waiting for a
	// fatal accept/worker error to do it. The queue is drained below,
	// after every worker has returned.
	g.Go(func() error {
		<-ctx.Done()
		srv.closeListeners()
		return nil
	})

	err := g.Wait()
	srv.closeListeners()
	for drained := false; !drained; {
		select {
		case cs := <-srv.queue:
			_ = cs.raw.Close()
		default:
			drained = true
		}
	}
	if err != nil && ctx.Err() != nil {
		// A listener closed because of shutdown, not a real fault.
		return nil
	}
	return err
}

func (srv *Server) closeListeners() {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	for _, ln := range srv.listeners {
		_ = ln.Close()
	}
	for _, p := range srv.paths {
		_ = os.Remove(p)
	}
	srv.listeners = nil
	srv.paths = nil
}

func (srv *Server) acceptLoop(ctx context.Context, ln *net.UnixListener) error {
	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			srv.log.Warnw("accept failed", "error", err)
			continue
		}
		id := uuid.NewString()
		cs := &connState{
			id:  id,
			raw: raw,
			c:   conn.New(id, srv.store, srv.log),
		}
		select {
		case srv.queue <- cs:
		case <-ctx.Done():
			_ = raw.Close()
			return nil
		}
	}
}

// worker reads from the dispatch channel, owns the connection it
// receives for exactly one read-dispatch-reply cycle, and re-enqueues it
// for the next available worker unless the peer closed or a fatal I/O
// error occurred (spec.md §4.10).
func (srv *Server) worker(ctx context.Context, id int) error {
	buf := make([]byte, defaultReadBuf)
	for {
		select {
		case <-ctx.Done():
			return nil
		case cs, ok := <-srv.queue:
			if !ok {
				return nil
			}
			if done := srv.serveOnce(cs, buf); done {
				_ = cs.raw.Close()
				continue
			}
			select {
			case srv.queue <- cs:
			case <-ctx.Done():
				_ = cs.raw.Close()
				return nil
			}
		}
	}
}

// serveOnce performs one read, dispatches every complete frame the read
// yielded, and writes the replies back. It reports true when the
// connection should be closed (EOF or fatal I/O error, spec.md §7's IO
// error kind).
func (srv *Server) serveOnce(cs *connState, buf []byte) bool {
	// A short deadline bounds how long one idle connection can hold a
	// worker: on timeout the connection goes back into the queue and the
	// worker moves on, so idle peers cycle through the pool instead of
	// pinning it.
	_ = cs.raw.SetReadDeadline(time.Now().Add(250 * time.Millisecond))
	n, err := cs.raw.Read(buf)
	if n > 0 {
		for _, reply := range cs.c.Feed(buf[:n]) {
			if werr := writeReply(cs.raw, reply); werr != nil {
				srv.log.Warnw("write failed, closing connection", "conn", cs.id, "error", werr)
				return true
			}
		}
	}
	if err != nil {
		if isTimeout(err) {
			return false
		}
		return true
	}
	return false
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func writeReply(w net.Conn, r conn.Reply) error {
	return proto.WriteMessage(w, r.Type, r.Body)
}
