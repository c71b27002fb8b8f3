package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	confPath := flag.String("conf", "", "client connection file written by `tensor-server register`")
	addr := flag.String("addr", "ws://localhost:8080/", "WebSocket address (ignored with -conf)")
	token := flag.String("token", "", "client token (ignored with -conf)")
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
		return errors.New("a token is required (-token or -conf)")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{
		Subprotocols: []string{proto.AuthProtocol, *token},
	})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. Mention someone with <<!uuid>>. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var msg proto.ServerMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		marker := " "
		if msg.IsMentioned {
			marker = "@"
		}
		fmt.Printf("%s[%s] %s\n", marker, msg.AuthorUUID, msg.Data)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}

			if err := wsjson.Write(ctx, conn, proto.NewMessageFrame(text)); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
