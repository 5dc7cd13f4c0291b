package client

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func TestHandshakeWithNameCollision(t *testing.T) {
	h := startClient(t, "A", "s3cret")

	h.server.send(proto.AuthChallenge())
	h.server.expect("AUTH:s3cret")
	h.server.send(proto.Enter("ghost"))
	h.server.send(proto.OK())
	h.server.send(proto.Who())
	h.server.expect("NAME:A")
	h.server.send(proto.NameTaken())
	h.server.send(proto.Who())
	h.server.expect("NAME:A1")
	h.server.send(proto.OK())
	h.server.send(proto.Enter("A1"))

	waitForOutput(t, h.out, "(A1 has entered the chat)")
	if strings.Contains(h.out.String(), "ghost") {
		t.Fatalf("notices before the handshake must not be shown: %q", h.out.String())
	}
	if got := h.client.Identity().Progress(); got != 2 {
		t.Fatalf("expected progress 2, got %d", got)
	}

	h.server.send(proto.Kick())
	if err := h.wait(); !errors.Is(err, ErrKicked) {
		t.Fatalf("expected ErrKicked, got %v", err)
	}
}

func TestTerminalInputIsForwarded(t *testing.T) {
	h := startClient(t, "A", "")
	h.handshake("", "A")

	h.typeLine("hello there")
	h.server.expect("SAY:hello there")

	h.typeLine("*LIST:")
	h.server.expect("LIST:")
	h.server.send(proto.List([]string{"A", "b"}))
	waitForOutput(t, h.out, "(current chatters: A,b)")

	h.typeLine("*KICK:b")
	h.server.expect("KICK:b")

	h.server.send(proto.Msg("b", "hi\x1b"))
	waitForOutput(t, h.out, "b: hi?")

	h.typeLine("*LEAVE:")
	h.server.expect("LEAVE:")
	if err := h.wait(); err != nil {
		t.Fatalf("expected a normal exit, got %v", err)
	}
}

func TestServerClosingAfterLeaveIsNormalExit(t *testing.T) {
	h := startClientWithGrace(t, "A", "", time.Minute)
	h.handshake("", "A")

	h.typeLine("*LEAVE:")
	h.server.expect("LEAVE:")
	_ = h.server.conn.Close()

	if err := h.wait(); err != nil {
		t.Fatalf("expected a normal exit, got %v", err)
	}
}

func TestTerminalEndOfStreamExitsNormally(t *testing.T) {
	h := startClient(t, "A", "")
	h.handshake("", "A")

	_ = h.terminal.Close()
	if err := h.wait(); err != nil {
		t.Fatalf("expected a normal exit, got %v", err)
	}
}

func TestRejectedCredential(t *testing.T) {
	h := startClient(t, "A", "wrong")

	h.server.send(proto.AuthChallenge())
	h.server.expect("AUTH:wrong")
	_ = h.server.conn.Close()

	if err := h.wait(); !errors.Is(err, ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestServerGoneBeforeAuth(t *testing.T) {
	h := startClient(t, "A", "")
	_ = h.server.conn.Close()

	if err := h.wait(); !errors.Is(err, ErrCommunications) {
		t.Fatalf("expected ErrCommunications, got %v", err)
	}
}

func TestServerGoneMidSession(t *testing.T) {
	h := startClient(t, "A", "")
	h.handshake("", "A")
	_ = h.server.conn.Close()

	if err := h.wait(); !errors.Is(err, ErrCommunications) {
		t.Fatalf("expected ErrCommunications, got %v", err)
	}
}

func TestIgnoresUnknownAndMalformedLines(t *testing.T) {
	h := startClient(t, "A", "")
	h.handshake("", "A")

	h.server.send("garbage\n")
	h.server.send("PING:1\n")
	h.server.send(proto.Enter("B"))
	waitForOutput(t, h.out, "(B has entered the chat)")

	if got := h.out.String(); got != "(B has entered the chat)\n" {
		t.Fatalf("unexpected output %q", got)
	}
}
