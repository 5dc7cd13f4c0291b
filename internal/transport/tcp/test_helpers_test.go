package tcp

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

const testSecret = "s3cret"

type fixture struct {
	registry *core.Registry
	handler  *Handler
	ledger   *memLedger
	ctx      context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	secret, err := auth.NewSecret(testSecret)
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := core.NewRegistry()
	ledger := newMemLedger()
	h := NewHandler(reg, HandlerOptions{
		Secret:       secret,
		Store:        ledger,
		WriteTimeout: time.Second,
	})
	return &fixture{registry: reg, handler: h, ledger: ledger, ctx: ctx}
}

type testConn struct {
	t     *testing.T
	conn  net.Conn
	lines *proto.LineReader
	done  chan struct{}
}

// connect starts a handler on one end of an in-memory pipe.
func (f *fixture) connect(t *testing.T) *testConn {
	t.Helper()

	server, client := net.Pipe()
	c := &testConn{t: t, conn: client, lines: proto.NewLineReader(client, 0), done: make(chan struct{})}
	go func() {
		defer close(c.done)
		f.handler.ServeConn(f.ctx, server)
	}()
	t.Cleanup(func() {
		_ = client.Close()
		<-c.done
	})
	return c
}

// join runs the full handshake for name and consumes the caller's own ENTER.
func (f *fixture) join(t *testing.T, name string) *testConn {
	t.Helper()

	c := f.connect(t)
	c.expect("AUTH:")
	c.send(proto.AuthResponse(testSecret))
	c.expect("OK:")
	c.expect("WHO:")
	c.send(proto.Name(name))
	c.expect("OK:")
	c.expect(proto.Enter(name))
	return c
}

func (c *testConn) send(line string) {
	c.t.Helper()

	_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.WriteString(c.conn, line); err != nil {
		c.t.Fatalf("send %q: %v", line, err)
	}
}

func (c *testConn) expect(want string) {
	c.t.Helper()

	want = trimNewline(want)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := c.lines.ReadLine()
	if err != nil {
		c.t.Fatalf("expected %q, got error %v", want, err)
	}
	if got != want {
		c.t.Fatalf("expected %q, got %q", want, got)
	}
}

func (c *testConn) expectNothing() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	got, err := c.lines.ReadLine()
	if err == nil {
		c.t.Fatalf("unexpected line %q", got)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		c.t.Fatalf("expected a read timeout, got %v", err)
	}
}

func (c *testConn) expectClosed() {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := c.lines.ReadLine()
	if err == nil {
		c.t.Fatalf("expected connection close, got %q", got)
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
		c.t.Fatalf("expected EOF, got %v", err)
	}
}

func (c *testConn) waitHandler() {
	c.t.Helper()

	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		c.t.Fatalf("handler did not return")
	}
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

// memLedger is an in-memory store.SessionStore.
type memLedger struct {
	mu      sync.Mutex
	joined  map[string]store.SessionRecord
	reasons map[string]store.LeaveReason
	counts  map[string]store.SessionCounts
}

func newMemLedger() *memLedger {
	return &memLedger{
		joined:  make(map[string]store.SessionRecord),
		reasons: make(map[string]store.LeaveReason),
		counts:  make(map[string]store.SessionCounts),
	}
}

func (m *memLedger) RecordJoin(_ context.Context, rec store.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joined[rec.ID] = rec
	return nil
}

func (m *memLedger) RecordLeave(_ context.Context, id string, reason store.LeaveReason, counts store.SessionCounts, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reasons[id] = reason
	m.counts[id] = counts
	return nil
}

func (m *memLedger) RecentSessions(context.Context, int) ([]store.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.SessionRecord, 0, len(m.joined))
	for _, rec := range m.joined {
		out = append(out, rec)
	}
	return out, nil
}

// leaveOf returns the recorded leave reason for name.
func (m *memLedger) leaveOf(name string) (store.LeaveReason, store.SessionCounts, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range m.joined {
		if rec.Name == name {
			reason, ok := m.reasons[id]
			return reason, m.counts[id], ok
		}
	}
	return "", store.SessionCounts{}, false
}
