package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/config"
	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/proto"
	"github.com/vovakirdan/tensor-server/internal/store"
	"github.com/vovakirdan/tensor-server/internal/store/sqlite"
)

type testEnv struct {
	auth  *auth.Service
	coord *core.Coordinator
	ws    *httptest.Server
	http  *httptest.Server
}

// startTestEnv wires an in-memory store, a coordinator and both gateways.
// Each option may adjust the config before the gateways are built.
func startTestEnv(t *testing.T, opts ...func(*config.Config)) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	disabledLogger := zerolog.New(nil)
	authService := auth.NewService(st)

	cfg := config.Default()
	cfg.ReadHeaderTimeout = time.Second
	cfg.SinkBuffer = 16
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	coord := core.NewCoordinator(authService, map[core.Group]string{
		core.GroupWebSocket: cfg.WSAddr(),
		core.GroupHTTP:      cfg.HTTPAddr(),
	}, &disabledLogger)
	go coord.Run(ctx)

	wsServer, wsHandler := NewWSServer(coord, cfg, &disabledLogger)
	httpServer := NewHTTPServer(coord, cfg, &disabledLogger)

	env := &testEnv{
		auth:  authService,
		coord: coord,
		ws:    httptest.NewServer(wsServer.Handler),
		http:  httptest.NewServer(httpServer.Handler),
	}
	t.Cleanup(func() {
		env.http.Close()
		env.ws.CloseClientConnections()
		env.ws.Close()
		wsHandler.Wait()
		cancel()
		<-coord.Done()
	})
	return env
}

func (e *testEnv) register(t *testing.T, username string) (*store.ClientRecord, string) {
	t.Helper()

	client, token, err := e.auth.Register(context.Background(), username)
	if err != nil {
		t.Fatalf("register %s: %v", username, err)
	}
	return client, token
}

func (e *testEnv) wsURL() string {
	return strings.Replace(e.ws.URL, "http", "ws", 1) + "/"
}

func (e *testEnv) dial(ctx context.Context, t *testing.T, token string) *websocket.Conn {
	t.Helper()

	conn, resp, err := websocket.Dial(ctx, e.wsURL(), &websocket.DialOptions{
		Subprotocols: []string{proto.AuthProtocol, token},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if got := resp.Header.Get("Sec-WebSocket-Protocol"); got != proto.AuthProtocol {
		t.Fatalf("expected subprotocol %q echoed, got %q", proto.AuthProtocol, got)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

func readServerMessage(ctx context.Context, t *testing.T, conn *websocket.Conn) proto.ServerMessage {
	t.Helper()

	var msg proto.ServerMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read server message: %v", err)
	}
	return msg
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
