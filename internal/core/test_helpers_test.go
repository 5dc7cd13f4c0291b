package core

import (
	"bufio"
	"bytes"
	"net"
	"strings"
	"sync"
	"testing"
	"time"
)

type testPeer struct {
	conn  net.Conn
	lines chan string
}

// newTestSession returns a session wired to an in-memory peer that collects
// every line the session writes.
func newTestSession(t *testing.T, id string) (*Session, *testPeer) {
	t.Helper()

	server, client := net.Pipe()
	p := &testPeer{conn: client, lines: make(chan string, 64)}
	go func() {
		defer close(p.lines)
		sc := bufio.NewScanner(client)
		for sc.Scan() {
			p.lines <- sc.Text()
		}
	}()

	s := NewSession(id, server, SessionOptions{WriteTimeout: time.Second})
	t.Cleanup(func() {
		s.Close()
		_ = client.Close()
	})
	return s, p
}

func mustLine(t *testing.T, p *testPeer, want string) {
	t.Helper()

	want = strings.TrimSuffix(want, "\n")
	select {
	case got, ok := <-p.lines:
		if !ok {
			t.Fatalf("expected %q, connection closed", want)
		}
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected %q not received", want)
	}
}

func mustNoLine(t *testing.T, p *testPeer) {
	t.Helper()

	select {
	case got, ok := <-p.lines:
		if ok {
			t.Fatalf("unexpected line %q", got)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func mustClosed(t *testing.T, p *testPeer) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("expected peer connection to close")
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
