package core

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/tensor-server/internal/metrics"
	"github.com/vovakirdan/tensor-server/internal/store"
)

// Directory is the backing client registry the coordinator consults.
type Directory interface {
	// ValidateToken returns the client owning token. Unknown tokens yield an
	// error matching store.ErrClientNotFound.
	ValidateToken(ctx context.Context, token string) (*store.ClientRecord, error)
	// ListClients returns every registered client.
	ListClients(ctx context.Context) ([]*store.ClientRecord, error)
}

type entry struct {
	conn LiveConnection
	seq  uint64
}

// Coordinator is the single owner of live connection state. All reads and
// writes go through Run's goroutine, one request at a time.
type Coordinator struct {
	requests  chan Request
	done      chan struct{}
	closeOnce sync.Once

	directory Directory
	addrs     map[Group]string
	log       *zerolog.Logger

	// owned by Run
	registry map[string]*entry
	nextSeq  uint64
}

// NewCoordinator creates a coordinator backed by directory. addrs maps each
// gateway group to its listen address.
func NewCoordinator(directory Directory, addrs map[Group]string, logger *zerolog.Logger) *Coordinator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	copied := make(map[Group]string, len(addrs))
	for g, a := range addrs {
		copied[g] = a
	}
	return &Coordinator{
		requests:  make(chan Request, 1),
		done:      make(chan struct{}),
		directory: directory,
		addrs:     copied,
		log:       logger,
		registry:  make(map[string]*entry),
	}
}

// Run processes requests in arrival order until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.closeOnce.Do(func() { close(c.done) })

	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Int("live_connections", len(c.registry)).Msg("coordinator stopping")
			return
		case req := <-c.requests:
			metrics.CoordinatorRequests.WithLabelValues(req.Kind.String()).Inc()
			req.reply <- c.handle(ctx, req)
		}
	}
}

// Done is closed when Run has returned.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// do submits req and waits for its reply. Once a request is queued the caller
// waits for the answer even if ctx ends, so mutations are never half observed.
func (c *Coordinator) do(ctx context.Context, req Request) (Response, error) {
	req.reply = make(chan Response, 1)

	select {
	case c.requests <- req:
	case <-c.done:
		return Response{}, ErrCoordinatorStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}

	select {
	case resp := <-req.reply:
		return resp, resp.Err
	case <-c.done:
		// Run may have answered just before exiting.
		select {
		case resp := <-req.reply:
			return resp, resp.Err
		default:
			return Response{}, ErrCoordinatorStopped
		}
	}
}

func (c *Coordinator) handle(ctx context.Context, req Request) Response {
	switch req.Kind {
	case RequestListenAddress:
		addr, ok := c.addrs[req.Group]
		if !ok {
			return Response{Err: fmt.Errorf("no listen address for %s gateway", req.Group)}
		}
		return Response{Addr: addr}

	case RequestValidateToken:
		client, err := c.lookup(ctx, req.Token)
		return Response{Client: client, Err: err}

	case RequestRegisterConnected:
		return c.registerConnected(ctx, req)

	case RequestAttachSink:
		e, ok := c.registry[req.Addr]
		if !ok {
			c.log.Warn().Str("addr", req.Addr).Msg("attach sink: connection already gone")
			return Response{}
		}
		e.conn.Sink = req.Sink
		return Response{Applied: true}

	case RequestDisconnect:
		if _, ok := c.registry[req.Addr]; !ok {
			c.log.Debug().Str("addr", req.Addr).Msg("disconnect: connection already gone")
			return Response{}
		}
		delete(c.registry, req.Addr)
		return Response{Applied: true}

	case RequestSnapshot:
		return Response{Connections: c.snapshot()}

	case RequestListAllRegistered:
		clients, err := c.directory.ListClients(ctx)
		if err != nil {
			return Response{Err: fmt.Errorf("list clients: %w", err)}
		}
		out := make([]store.ClientRecord, 0, len(clients))
		for _, cl := range clients {
			if cl != nil {
				out = append(out, *cl)
			}
		}
		return Response{Clients: out}

	default:
		return Response{Err: fmt.Errorf("unknown request kind %d", req.Kind)}
	}
}

// lookup maps "unknown token" to a nil client with no error.
func (c *Coordinator) lookup(ctx context.Context, token string) (*store.ClientRecord, error) {
	if token == "" {
		return nil, nil
	}
	client, err := c.directory.ValidateToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrClientNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("validate token: %w", err)
	}
	return client, nil
}

func (c *Coordinator) registerConnected(ctx context.Context, req Request) Response {
	current, err := c.lookup(ctx, req.Client.Token)
	if err != nil {
		return Response{Err: err}
	}
	if current == nil || current.UUID != req.Client.UUID {
		c.log.Info().Str("addr", req.Addr).Str("uuid", req.Client.UUID).Msg("register: token no longer valid")
		return Response{}
	}

	if prev, ok := c.registry[req.Addr]; ok {
		c.log.Warn().Str("addr", req.Addr).Str("previous_uuid", prev.conn.Client.UUID).Msg("register: replacing stale connection")
	}

	c.nextSeq++
	c.registry[req.Addr] = &entry{
		conn: LiveConnection{
			Addr:   req.Addr,
			ConnID: req.ConnID,
			Client: req.Client,
		},
		seq: c.nextSeq,
	}
	return Response{Applied: true}
}

func (c *Coordinator) snapshot() []LiveConnection {
	entries := make([]*entry, 0, len(c.registry))
	for _, e := range c.registry {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	conns := make([]LiveConnection, 0, len(entries))
	for _, e := range entries {
		conns = append(conns, e.conn)
	}
	return conns
}

// GetListenAddress returns the listen address configured for group.
func (c *Coordinator) GetListenAddress(ctx context.Context, group Group) (string, error) {
	resp, err := c.do(ctx, Request{Kind: RequestListenAddress, Group: group})
	return resp.Addr, err
}

// ValidateToken returns the client owning token, or nil when there is none.
func (c *Coordinator) ValidateToken(ctx context.Context, token string) (*store.ClientRecord, error) {
	resp, err := c.do(ctx, Request{Kind: RequestValidateToken, Token: token})
	return resp.Client, err
}

// RegisterConnected records a sinkless live connection for addr, provided
// client's token is still valid. It reports whether the entry was inserted.
func (c *Coordinator) RegisterConnected(ctx context.Context, addr, connID string, client store.ClientRecord) (bool, error) {
	resp, err := c.do(ctx, Request{Kind: RequestRegisterConnected, Addr: addr, ConnID: connID, Client: client})
	return resp.Applied, err
}

// AttachSink attaches sink to the connection at addr. A connection that is
// already gone is a logged no-op.
func (c *Coordinator) AttachSink(ctx context.Context, addr string, sink *Sink) error {
	_, err := c.do(ctx, Request{Kind: RequestAttachSink, Addr: addr, Sink: sink})
	return err
}

// Disconnect removes the connection at addr. Idempotent.
func (c *Coordinator) Disconnect(ctx context.Context, addr string) error {
	_, err := c.do(ctx, Request{Kind: RequestDisconnect, Addr: addr})
	return err
}

// Snapshot returns all live connections in registration order.
func (c *Coordinator) Snapshot(ctx context.Context) ([]LiveConnection, error) {
	resp, err := c.do(ctx, Request{Kind: RequestSnapshot})
	return resp.Connections, err
}

// ListAllRegistered returns every client known to the directory.
func (c *Coordinator) ListAllRegistered(ctx context.Context) ([]store.ClientRecord, error) {
	resp, err := c.do(ctx, Request{Kind: RequestListAllRegistered})
	return resp.Clients, err
}

// IsConnectedToken reports whether any live connection authenticated with token.
func IsConnectedToken(conns []LiveConnection, token string, equal func(a, b string) bool) bool {
	for _, c := range conns {
		if equal(c.Client.Token, token) {
			return true
		}
	}
	return false
}
