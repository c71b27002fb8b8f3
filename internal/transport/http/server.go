package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/config"
	"github.com/vovakirdan/tensor-server/internal/core"
)

// NewWSServer builds the WebSocket gateway. Any path other than /health and
// /metrics is treated as a chat upgrade.
func NewWSServer(coord *core.Coordinator, cfg config.Config, logger *zerolog.Logger) (*stdhttp.Server, *WSHandler) {
	ws := NewWSHandler(coord, cfg, logger)

	mux := stdhttp.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", ws)

	return &stdhttp.Server{
		Addr:              cfg.WSAddr(),
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}, ws
}

// NewHTTPServer builds the client listing gateway.
func NewHTTPServer(coord *core.Coordinator, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(coord, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func newRouter(coord *core.Coordinator, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware())

	api := NewAPIHandlers(coord, logger)
	router.GET("/list_clients", ConnectedTokenAuth(coord, logger), api.ListClients)
	router.OPTIONS("/list_clients", api.Preflight)
	router.NoRoute(api.NotFound)

	return router
}

func healthHandler(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
	_, _ = fmt.Fprint(w, "ok")
}
