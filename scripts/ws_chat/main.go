package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/client"
	wlog "github.com/vovakirdan/wirechat-relay/internal/log"
)

// ws_chat is the terminal client speaking through the admin WebSocket bridge.
func main() {
	err := run()
	if msg := client.ExitMessage(err); msg != "" {
		log.Printf("ws_chat: %v", err)
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(client.ExitCode(err))
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "cli-user", "display name")
	authFile := flag.String("authfile", "", "file holding the shared secret")
	logLevel := flag.String("log-level", "error", "log level")
	flag.Parse()

	credential := ""
	if *authFile != "" {
		secret, err := auth.LoadSecret(*authFile)
		if err != nil {
			return fmt.Errorf("%w: %w", client.ErrUsage, err)
		}
		credential = secret
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", client.ErrCommunications, err)
	}

	c := client.New(websocket.NetConn(context.Background(), conn, websocket.MessageText), client.Options{
		Name:       *user,
		Credential: credential,
		Terminal:   os.Stdin,
		Output:     os.Stdout,
		Logger:     wlog.New(*logLevel, os.Stderr),
	})
	return c.Run(ctx)
}
