package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// ws_smoke joins through the WebSocket bridge, says one line and leaves.
func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	user := flag.String("user", "tester", "display name to negotiate")
	secret := flag.String("secret", "", "shared secret")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	conn := websocket.NetConn(ctx, ws, websocket.MessageText)
	defer conn.Close()

	lines := proto.NewLineReader(conn, 0)
	mustSend := func(line string) {
		if _, err := io.WriteString(conn, line); err != nil {
			log.Fatalf("send: %v", err)
		}
	}
	// await reads until a line with the wanted tag arrives.
	await := func(tag proto.Tag) proto.Message {
		for {
			line, err := lines.ReadLine()
			if err != nil {
				log.Fatalf("waiting for %s: %v", tag, err)
			}
			msg, err := proto.Decode(line)
			if err == nil && msg.Tag == tag {
				return msg
			}
		}
	}

	await(proto.TagAuth)
	mustSend(proto.AuthResponse(*secret))
	await(proto.TagOK)

	name := *user
	for attempt := 0; ; attempt++ {
		await(proto.TagWho)
		if attempt > 0 {
			name = fmt.Sprintf("%s%d", *user, attempt)
		}
		mustSend(proto.Name(name))

		line, err := lines.ReadLine()
		if err != nil {
			log.Fatalf("name reply: %v", err)
		}
		if msg, _ := proto.Decode(line); msg.Tag == proto.TagOK {
			break
		}
	}
	fmt.Printf("joined as %s\n", name)

	mustSend(proto.Say(*text))
	msg := await(proto.TagMsg)
	from, said, _ := proto.SplitMsg(msg.Payload)
	fmt.Printf("received %s: %s\n", from, said)

	mustSend(proto.ListRequest())
	fmt.Printf("chatters: %s\n", await(proto.TagList).Payload)

	mustSend(proto.LeaveRequest())
	fmt.Println("smoke test passed")
}
