package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/skillbridge/messaging-server/client"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	token := flag.String("token", "", "bearer token (see the server's token subcommand)")
	user := flag.String("user", "smoke-tester", "user id matching the token")
	receiver := flag.String("to", "", "receiver user id")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("-token is required")
	}
	if *receiver == "" {
		return fmt.Errorf("-to is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	c, err := client.Dial(ctx, client.Options{URL: *addr, Token: *token, UserID: *user})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	ref, err := c.SendMessage(ctx, *receiver, "text", *text, nil, "")
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	fmt.Printf("sent message ref=%s\n", ref)

	return c.Listen(ctx, func(ev client.Event) {
		switch ev.Name {
		case "message_sent":
			fmt.Printf("ack ref=%s id=%d\n", ev.Sent.Ref, ev.Sent.Message.ID)
		case "message_error":
			fmt.Printf("send failed ref=%s code=%s msg=%s\n", ev.SendError.Ref, ev.SendError.Error.Code, ev.SendError.Error.Msg)
		case "receive_message":
			fmt.Printf("received id=%d from=%s: %s\n", ev.Message.ID, ev.Message.SenderID, ev.Message.Content)
		case "message_read":
			fmt.Printf("read receipt id=%d at=%s\n", ev.Read.MessageID, ev.Read.ReadAt.Format(time.RFC3339))
		case "online_users":
			fmt.Printf("online: %v\n", ev.UserIDs)
		case "user_online":
			fmt.Printf("online: %s\n", ev.UserID)
		case "user_offline":
			fmt.Printf("offline: %s\n", ev.UserID)
		case "error":
			fmt.Printf("server error: %s: %s\n", ev.Err.Code, ev.Err.Msg)
		}
	})
}
