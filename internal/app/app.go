package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/auth"
	"github.com/vovakirdan/tensor-server/internal/config"
	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/store"
	"github.com/vovakirdan/tensor-server/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/tensor-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	wsServer        *stdhttp.Server
	httpServer      *stdhttp.Server
	wsHandler       *transporthttp.WSHandler
	coord           *core.Coordinator
	store           store.Store
	shutdownTimeout time.Duration
	log             *zerolog.Logger

	ready    chan struct{}
	mu       sync.Mutex
	wsAddr   string
	httpAddr string
}

// New constructs the application. The store is opened here so that an
// unusable database fails before any listener starts.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	authService := auth.NewService(st)
	coord := core.NewCoordinator(authService, map[core.Group]string{
		core.GroupWebSocket: cfg.WSAddr(),
		core.GroupHTTP:      cfg.HTTPAddr(),
	}, logger)

	wsServer, wsHandler := transporthttp.NewWSServer(coord, *cfg, logger)
	httpServer := transporthttp.NewHTTPServer(coord, *cfg, logger)

	return &App{
		wsServer:        wsServer,
		httpServer:      httpServer,
		wsHandler:       wsHandler,
		coord:           coord,
		store:           st,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
		ready:           make(chan struct{}),
	}, nil
}

// Ready is closed once both gateways are listening.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addrs returns the bound WebSocket and HTTP gateway addresses. Valid after Ready.
func (a *App) Addrs() (ws, http string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wsAddr, a.httpAddr
}

// Run starts the coordinator and both gateways and blocks until context
// cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	coordCtx, stopCoord := context.WithCancel(context.WithoutCancel(ctx))
	go a.coord.Run(coordCtx)

	// Connection handlers see this context end on shutdown, since
	// http.Server.Shutdown does not touch hijacked connections.
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	baseContext := func(net.Listener) context.Context { return baseCtx }
	a.wsServer.BaseContext = baseContext
	a.httpServer.BaseContext = baseContext

	defer func() {
		cancelBase()
		a.waitConnections()
		stopCoord()
		<-a.coord.Done()
		a.cleanup()
	}()

	wsLn, err := a.listen(ctx, core.GroupWebSocket)
	if err != nil {
		return err
	}
	httpLn, err := a.listen(ctx, core.GroupHTTP)
	if err != nil {
		wsLn.Close()
		return err
	}

	a.mu.Lock()
	a.wsAddr = wsLn.Addr().String()
	a.httpAddr = httpLn.Addr().String()
	a.mu.Unlock()

	serverErr := make(chan error, 2)
	serve := func(name string, srv *stdhttp.Server, ln net.Listener) {
		a.log.Info().Str("gateway", name).Str("addr", ln.Addr().String()).Msg("listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- fmt.Errorf("%s gateway: %w", name, err)
			return
		}
		serverErr <- nil
	}
	go serve(core.GroupWebSocket.String(), a.wsServer, wsLn)
	go serve(core.GroupHTTP.String(), a.httpServer, httpLn)
	close(a.ready)

	var runErr error
	select {
	case runErr = <-serverErr:
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	a.log.Info().Msg("shutting down gateways")
	for _, srv := range []*stdhttp.Server{a.wsServer, a.httpServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("shutdown: %w", err)
		}
	}
	return runErr
}

func (a *App) listen(ctx context.Context, group core.Group) (net.Listener, error) {
	addr, err := a.coord.GetListenAddress(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("%s listen address: %w", group, err)
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s gateway on %s: %w", group, addr, err)
	}
	return ln, nil
}

// waitConnections waits for connection handlers to finish their leave
// sequence, bounded by the shutdown timeout.
func (a *App) waitConnections() {
	done := make(chan struct{})
	go func() {
		a.wsHandler.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(a.shutdownTimeout):
		a.log.Warn().Msg("connections still open after shutdown timeout")
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
