package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	confPath := flag.String("conf", "", "client connection file written by `tensor-server register`")
	addr := flag.String("addr", "ws://localhost:8080/", "WebSocket address (ignored with -conf)")
	token := flag.String("token", "", "client token (ignored with -conf)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *confPath != "" {
		export, err := auth.ReadExport(*confPath)
		if err != nil {
			return err
		}
		*addr = "ws://" + net.JoinHostPort(export.ServerIP, strconv.Itoa(export.WebSocketServerPort)) + "/"
		*token = export.ClientToken
	}
	if *token == "" {
		return fmt.Errorf("a token is required (-token or -conf)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{
		Subprotocols: []string{proto.AuthProtocol, *token},
	})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	var join proto.ServerMessage
	if err := wsjson.Read(ctx, conn, &join); err != nil {
		return fmt.Errorf("read join notice: %w", err)
	}
	fmt.Printf("Join notice: %s (mentioned=%v)\n", join.Data, join.IsMentioned)

	if err := wsjson.Write(ctx, conn, proto.NewMessageFrame(*text)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var msg proto.ServerMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received: id=%s author=%s mentioned=%v data=%q\n", msg.MessageUUID, msg.AuthorUUID, msg.IsMentioned, msg.Data)
		if msg.Data == *text {
			return nil
		}
	}
}
