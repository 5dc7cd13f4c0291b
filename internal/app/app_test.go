package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/transport/tcp"
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

func waitContains(t *testing.T, b *syncBuffer, want string) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("never saw %q in %q", want, b.String())
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.AdminAddr = "127.0.0.1:0"
	cfg.DatabasePath = filepath.Join(t.TempDir(), "ledger.db")
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestRunServesChatAdminAndDiagnostics(t *testing.T) {
	secret, err := auth.NewSecret("pw")
	if err != nil {
		t.Fatalf("secret: %v", err)
	}
	logger := zerolog.Nop()
	transcript := &syncBuffer{}
	diagnostics := &syncBuffer{}
	signals := make(chan os.Signal, 1)

	a, err := New(testConfig(t), secret, &logger, Options{
		Transcript:  transcript,
		Diagnostics: diagnostics,
		Signals:     signals,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if a.Port() == 0 || a.AdminAddr() == "" {
		t.Fatalf("listeners not bound: %d %q", a.Port(), a.AdminAddr())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	conn, err := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(a.Port())))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

	r := bufio.NewReader(conn)
	expect := func(want string) {
		t.Helper()
		got, err := r.ReadString('\n')
		if err != nil || got != want+"\n" {
			t.Fatalf("expected %q, got %q (%v)", want, got, err)
		}
	}
	expect("AUTH:")
	_, _ = conn.Write([]byte("AUTH:pw\n"))
	expect("OK:")
	expect("WHO:")
	_, _ = conn.Write([]byte("NAME:zed\n"))
	expect("OK:")
	expect("ENTER:zed")
	_, _ = conn.Write([]byte("SAY:hi\n"))
	expect("MSG:zed:hi")

	waitContains(t, transcript, "(zed has entered the chat)\nzed: hi\n")

	signals <- syscall.SIGHUP
	waitContains(t, diagnostics, "@CLIENTS@\nzed:SAY:1:KICK:0:LIST:0\n@SERVER@\nserver:AUTH:1:NAME:1:SAY:1:KICK:0:LIST:0:LEAVE:0\n")

	resp, err := http.Get("http://" + a.AdminAddr() + "/names")
	if err != nil {
		t.Fatalf("admin request: %v", err)
	}
	var body struct {
		Names []string `json:"names"`
	}
	err = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if err != nil || len(body.Names) != 1 || body.Names[0] != "zed" {
		t.Fatalf("unexpected names %+v (%v)", body, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
	waitContains(t, transcript, "(zed has left the chat)")
}

func TestNewReportsBusyPort(t *testing.T) {
	ln, err := tcp.Listen(0)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.Default()
	cfg.Port = tcp.Port(ln)
	logger := zerolog.Nop()

	_, err = New(cfg, nil, &logger, Options{})
	var commErr *tcp.CommunicationsError
	if !errors.As(err, &commErr) {
		t.Fatalf("expected a communications error, got %v", err)
	}
}
