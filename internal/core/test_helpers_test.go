package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/tensor-server/internal/store"
)

// fakeDirectory is an in-memory Directory keyed by plaintext token.
type fakeDirectory struct {
	mu      sync.Mutex
	clients map[string]store.ClientRecord
	order   []string
	err     error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{clients: make(map[string]store.ClientRecord)}
}

func (d *fakeDirectory) add(uuid, token, username string) store.ClientRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec := store.ClientRecord{UUID: uuid, Token: token, Username: username, DisplayName: username}
	d.clients[token] = rec
	d.order = append(d.order, token)
	return rec
}

func (d *fakeDirectory) revoke(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.clients, token)
}

func (d *fakeDirectory) fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDirectory) ValidateToken(_ context.Context, token string) (*store.ClientRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	rec, ok := d.clients[token]
	if !ok {
		return nil, fmt.Errorf("lookup: %w", store.ErrClientNotFound)
	}
	return &rec, nil
}

func (d *fakeDirectory) ListClients(context.Context) ([]*store.ClientRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	out := make([]*store.ClientRecord, 0, len(d.order))
	for _, tok := range d.order {
		if rec, ok := d.clients[tok]; ok {
			out = append(out, &rec)
		}
	}
	return out, nil
}

var errDirectoryDown = errors.New("directory down")

func startCoordinator(t testing.TB, dir Directory) *Coordinator {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	coord := NewCoordinator(dir, map[Group]string{
		GroupWebSocket: "127.0.0.1:8080",
		GroupHTTP:      "127.0.0.1:8081",
	}, nil)
	go coord.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-coord.Done()
	})
	return coord
}

func mustMessage(t *testing.T, sink *Sink) Message {
	t.Helper()

	select {
	case m := <-sink.Messages():
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("expected message not received")
	}
	return Message{}
}

func expectEmpty(t *testing.T, sink *Sink) {
	t.Helper()

	select {
	case m := <-sink.Messages():
		t.Fatalf("unexpected message: %+v", m)
	default:
	}
}
