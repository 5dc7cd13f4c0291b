package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

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

func waitForOutput(t *testing.T, b *syncBuffer, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output never contained %q; got %q", want, b.String())
}

// fakeServer is the server end of an in-memory connection.
type fakeServer struct {
	t     *testing.T
	conn  net.Conn
	lines *proto.LineReader
}

func (s *fakeServer) send(line string) {
	s.t.Helper()

	_ = s.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.WriteString(s.conn, line); err != nil {
		s.t.Fatalf("send %q: %v", line, err)
	}
}

func (s *fakeServer) expect(want string) {
	s.t.Helper()

	_ = s.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	got, err := s.lines.ReadLine()
	if err != nil {
		s.t.Fatalf("expected %q, got error %v", want, err)
	}
	if got != want {
		s.t.Fatalf("expected %q, got %q", want, got)
	}
}

type harness struct {
	server   *fakeServer
	terminal *io.PipeWriter
	out      *syncBuffer
	client   *Client
	result   chan error
}

func startClient(t *testing.T, name, credential string) *harness {
	t.Helper()
	return startClientWithGrace(t, name, credential, 10*time.Millisecond)
}

func startClientWithGrace(t *testing.T, name, credential string, grace time.Duration) *harness {
	t.Helper()

	serverSide, clientSide := net.Pipe()
	termR, termW := io.Pipe()
	out := &syncBuffer{}

	c := New(clientSide, Options{
		Name:       name,
		Credential: credential,
		Terminal:   termR,
		Output:     out,
		LeaveGrace: grace,
	})
	h := &harness{
		server:   &fakeServer{t: t, conn: serverSide, lines: proto.NewLineReader(serverSide, 0)},
		terminal: termW,
		out:      out,
		client:   c,
		result:   make(chan error, 1),
	}
	go func() {
		h.result <- c.Run(context.Background())
	}()
	t.Cleanup(func() {
		_ = termW.Close()
		_ = serverSide.Close()
	})
	return h
}

// handshake walks the client through AUTH and WHO as a well-behaved server.
func (h *harness) handshake(credential, name string) {
	h.server.t.Helper()

	h.server.send(proto.AuthChallenge())
	h.server.expect("AUTH:" + credential)
	h.server.send(proto.OK())
	h.server.send(proto.Who())
	h.server.expect("NAME:" + name)
	h.server.send(proto.OK())
}

func (h *harness) typeLine(line string) {
	h.server.t.Helper()

	if _, err := io.WriteString(h.terminal, line+"\n"); err != nil {
		h.server.t.Fatalf("terminal write: %v", err)
	}
}

func (h *harness) wait() error {
	h.server.t.Helper()

	select {
	case err := <-h.result:
		return err
	case <-time.After(3 * time.Second):
		h.server.t.Fatalf("client did not exit")
		return nil
	}
}
