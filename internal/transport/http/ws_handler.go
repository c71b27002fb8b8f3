package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/config"
	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/metrics"
	"github.com/vovakirdan/tensor-server/internal/proto"
	"github.com/vovakirdan/tensor-server/internal/store"
)

var errProtocolViolation = errors.New("protocol violation")

// WSHandler authenticates WebSocket upgrades and relays chat messages between
// live connections.
type WSHandler struct {
	coord           *core.Coordinator
	log             *zerolog.Logger
	sinkBuffer      int
	maxMessageBytes int64
	rateLimit       int

	mu       sync.Mutex
	draining bool
	active   sync.WaitGroup
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(coord *core.Coordinator, cfg config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		coord:           coord,
		log:             logger,
		sinkBuffer:      cfg.SinkBuffer,
		maxMessageBytes: cfg.MaxMessageBytes,
		rateLimit:       cfg.MessageRateLimit,
	}
}

// Wait blocks until every connection served by h has finished its leave
// sequence. Requests arriving after Wait is called are refused.
func (h *WSHandler) Wait() {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()

	h.active.Wait()
}

// begin registers a connection unless h is draining.
func (h *WSHandler) begin() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.active.Add(1)
	return true
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.begin() {
		metrics.Handshakes.WithLabelValues("shutting_down").Inc()
		stdhttp.Error(w, "server shutting down", stdhttp.StatusServiceUnavailable)
		return
	}
	defer h.active.Done()

	ctx := r.Context()
	addr := r.RemoteAddr
	connID := uuid.NewString()
	log := h.log.With().Str("conn_id", connID).Str("addr", addr).Logger()

	client, ok := h.handshake(ctx, w, r, connID, &log)
	if !ok {
		return
	}
	log = log.With().Str("uuid", client.UUID).Logger()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{proto.AuthProtocol},
		InsecureSkipVerify: true,
	})
	if err != nil {
		metrics.Handshakes.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("ws accept error")
		if err := h.coord.Disconnect(context.WithoutCancel(ctx), addr); err != nil {
			log.Warn().Err(err).Msg("disconnect after failed accept")
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.maxMessageBytes > 0 {
		conn.SetReadLimit(h.maxMessageBytes)
	}

	metrics.Handshakes.WithLabelValues("accepted").Inc()
	metrics.ConnectionsActive.Inc()
	defer metrics.ConnectionsActive.Dec()
	log.Info().Msg("client connected")

	sink := core.NewSink(h.sinkBuffer)
	defer sink.Close()

	err = h.relay(ctx, conn, addr, client, sink, &log)
	h.leave(context.WithoutCancel(ctx), addr, client.UUID, sink, &log)

	status, reason := closeStatus(err)
	if status == websocket.StatusPolicyViolation || status == websocket.StatusInternalError {
		log.Warn().Err(err).Msg("ws connection closed with error")
	} else {
		log.Info().Msg("client disconnected")
	}
	conn.Close(status, reason)
}

// handshake validates the subprotocol token and registers the connection.
// On failure it has already written the HTTP rejection.
func (h *WSHandler) handshake(ctx context.Context, w stdhttp.ResponseWriter, r *stdhttp.Request, connID string, log *zerolog.Logger) (store.ClientRecord, bool) {
	token, ok := tokenFromSubprotocols(r.Header.Values("Sec-WebSocket-Protocol"))
	if !ok {
		metrics.Handshakes.WithLabelValues("missing_token").Inc()
		log.Debug().Msg("handshake without authorization subprotocol")
		rejectUnauthenticated(w)
		return store.ClientRecord{}, false
	}

	client, err := h.coord.ValidateToken(ctx, token)
	if err != nil {
		metrics.Handshakes.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("validate token")
		stdhttp.Error(w, "service unavailable", stdhttp.StatusServiceUnavailable)
		return store.ClientRecord{}, false
	}
	if client == nil {
		metrics.Handshakes.WithLabelValues("invalid_token").Inc()
		log.Info().Msg("handshake with unknown token")
		rejectUnauthenticated(w)
		return store.ClientRecord{}, false
	}

	inserted, err := h.coord.RegisterConnected(ctx, r.RemoteAddr, connID, *client)
	if err != nil {
		metrics.Handshakes.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("register connection")
		stdhttp.Error(w, "service unavailable", stdhttp.StatusServiceUnavailable)
		return store.ClientRecord{}, false
	}
	if !inserted {
		metrics.Handshakes.WithLabelValues("invalid_token").Inc()
		rejectUnauthenticated(w)
		return store.ClientRecord{}, false
	}

	return *client, true
}

func rejectUnauthenticated(w stdhttp.ResponseWriter) {
	stdhttp.Error(w, "missing or invalid token", stdhttp.StatusNetworkAuthenticationRequired)
}

// tokenFromSubprotocols extracts <token> from "Authorization, <token>".
func tokenFromSubprotocols(values []string) (string, bool) {
	parts := strings.Split(strings.Join(values, ","), ",")
	if len(parts) != 2 {
		return "", false
	}
	if strings.TrimSpace(parts[0]) != proto.AuthProtocol {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// relay attaches the sink, announces the join and runs the read and write
// loops until either ends.
func (h *WSHandler) relay(ctx context.Context, conn *websocket.Conn, addr string, client store.ClientRecord, sink *core.Sink, log *zerolog.Logger) error {
	if err := h.coord.AttachSink(ctx, addr, sink); err != nil {
		return fmt.Errorf("attach sink: %w", err)
	}
	if err := h.broadcast(ctx, joinNotice(client.UUID), log); err != nil {
		return fmt.Errorf("join notice: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, log)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, sink, log)
	}()

	err := <-errCh
	cancel() // stop the other goroutine
	<-errCh
	return err
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client store.ClientRecord, log *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		cs, err := proto.DecodeClientSend(data)
		if err != nil {
			metrics.ProtocolViolations.Inc()
			log.Warn().Err(err).Msg("malformed frame")
			return fmt.Errorf("%w: %w", errProtocolViolation, err)
		}

		if !limiter.allow() {
			metrics.RateLimitHits.Inc()
			log.Warn().Msg("rate limit exceeded, frame dropped")
			continue
		}

		switch cs.Op {
		case proto.OpNew:
			msg := core.NewMessage(client.UUID, cs.Message, proto.ExtractMentions(cs.Message))
			if err := h.broadcast(ctx, msg, log); err != nil {
				return err
			}
			metrics.MessagesRelayed.Inc()
		default:
			log.Debug().Stringer("op", cs.Op).Str("message_uuid", cs.MessageUUID).Msg("ignoring op without message history")
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, sink *core.Sink, log *zerolog.Logger) error {
	for {
		select {
		case m := <-sink.Messages():
			if err := wsjson.Write(ctx, conn, outboundFromMessage(m)); err != nil {
				log.Debug().Err(err).Msg("write ws message")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) broadcast(ctx context.Context, msg core.Message, log *zerolog.Logger) error {
	conns, err := h.coord.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	for _, f := range core.Broadcast(conns, msg) {
		log.Warn().Err(f.Err).Str("recipient_addr", f.Addr).Str("recipient_uuid", f.UUID).Msg("delivery dropped")
	}
	return nil
}

// leave removes the connection and tells the remaining clients.
func (h *WSHandler) leave(ctx context.Context, addr, clientUUID string, sink *core.Sink, log *zerolog.Logger) {
	err := h.coord.Disconnect(ctx, addr)
	sink.Close()
	if err != nil {
		log.Warn().Err(err).Msg("disconnect")
		return
	}
	if err := h.broadcast(ctx, leaveNotice(clientUUID), log); err != nil {
		log.Warn().Err(err).Msg("leave notice")
	}
}

func closeStatus(err error) (websocket.StatusCode, string) {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
		return websocket.StatusNormalClosure, "closing"
	case errors.Is(err, errProtocolViolation):
		return websocket.StatusPolicyViolation, "malformed frame"
	}
	switch s := websocket.CloseStatus(err); s {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return websocket.StatusNormalClosure, "closing"
	case websocket.StatusMessageTooBig:
		return websocket.StatusMessageTooBig, "message too big"
	}
	if errors.Is(err, core.ErrCoordinatorStopped) {
		return websocket.StatusGoingAway, "server shutting down"
	}
	return websocket.StatusInternalError, "internal error"
}
