package app

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/config"
	applog "github.com/vovakirdan/tensor-server/internal/log"
	"github.com/vovakirdan/tensor-server/internal/proto"
	"github.com/vovakirdan/tensor-server/internal/store/sqlite"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.WSPort = 0
	cfg.HTTPPort = 0
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tensor.db")
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func registerClient(t *testing.T, dbPath, username string) string {
	t.Helper()

	st, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	_, token, err := auth.NewService(st).Register(context.Background(), username)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return token
}

func TestAppServesBothGatewaysAndShutsDown(t *testing.T) {
	cfg := testConfig(t)
	token := registerClient(t, cfg.DatabasePath, "alice")

	application, err := New(&cfg, applog.Nop())
	if err != nil {
		t.Fatalf("new app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- application.Run(ctx) }()

	select {
	case <-application.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("app not ready")
	}
	wsAddr, httpAddr := application.Addrs()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, "ws://"+wsAddr+"/", &websocket.DialOptions{
		Subprotocols: []string{proto.AuthProtocol, token},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	var join proto.ServerMessage
	if err := wsjson.Read(dialCtx, conn, &join); err != nil {
		t.Fatalf("read join notice: %v", err)
	}

	req, _ := http.NewRequestWithContext(dialCtx, http.MethodGet, "http://"+httpAddr+"/list_clients", nil)
	req.Header.Set("authorization", token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list clients: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("app did not shut down")
	}

	// the live connection is torn down with the server
	if _, _, err := conn.Read(dialCtx); err == nil {
		t.Fatal("expected connection to be closed after shutdown")
	}
}

func TestAppFailsFastOnUnusableStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabasePath = filepath.Join(t.TempDir(), "missing", "dir", "tensor.db")

	if _, err := New(&cfg, applog.Nop()); err == nil {
		t.Fatal("expected store initialization error")
	}
}
