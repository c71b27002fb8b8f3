package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/store"
)

// APIHandlers provides HTTP handlers for the listing gateway.
type APIHandlers struct {
	coord *core.Coordinator
	log   *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(coord *core.Coordinator, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		coord: coord,
		log:   logger,
	}
}

// ListClientsResponse partitions every registered client by connection state.
type ListClientsResponse struct {
	Online  []store.ClientRecord `json:"online"`
	Offline []store.ClientRecord `json:"offline"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListClients returns online and offline registered clients.
// GET /list_clients
func (h *APIHandlers) ListClients(c *gin.Context) {
	ctx := c.Request.Context()

	var conns []core.LiveConnection
	if v, ok := c.Get(ContextKeyConnections); ok {
		conns, _ = v.([]core.LiveConnection)
	}

	registered, err := h.coord.ListAllRegistered(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list registered clients")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, partitionClients(registered, conns))
}

// partitionClients keeps registry order; a client with several sockets is listed once.
func partitionClients(registered []store.ClientRecord, conns []core.LiveConnection) ListClientsResponse {
	live := make(map[string]struct{}, len(conns))
	for _, c := range conns {
		live[c.Client.UUID] = struct{}{}
	}

	resp := ListClientsResponse{
		Online:  make([]store.ClientRecord, 0, len(live)),
		Offline: make([]store.ClientRecord, 0, len(registered)),
	}
	for _, client := range registered {
		if _, ok := live[client.UUID]; ok {
			resp.Online = append(resp.Online, client)
		} else {
			resp.Offline = append(resp.Offline, client)
		}
	}
	return resp
}

// Preflight answers CORS preflight requests.
// OPTIONS /list_clients
func (h *APIHandlers) Preflight(c *gin.Context) {
	c.Status(http.StatusOK)
}

// NotFound is the response for every unrouted request. OPTIONS is answered
// as a preflight on any path.
func (h *APIHandlers) NotFound(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		h.Preflight(c)
		return
	}
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
}
