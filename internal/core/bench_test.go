package core

import (
	"context"
	"fmt"
	"testing"
)

func benchmarkBroadcast(b *testing.B, recipients int) {
	dir := newFakeDirectory()
	coord := startCoordinator(b, dir)
	ctx := context.Background()

	sinks := make([]*Sink, 0, recipients)
	for i := range recipients {
		rec := dir.add(fmt.Sprintf("%03d-000-000-000-", i), fmt.Sprintf("token%011d", i), "client")
		addr := fmt.Sprintf("10.0.%d.%d:4000", i/256, i%256)
		if _, err := coord.RegisterConnected(ctx, addr, addr, rec); err != nil {
			b.Fatalf("register: %v", err)
		}
		sink := NewSink(1)
		if err := coord.AttachSink(ctx, addr, sink); err != nil {
			b.Fatalf("attach: %v", err)
		}
		sinks = append(sinks, sink)
	}

	mentions := []string{"000-000-000-000-"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		conns, err := coord.Snapshot(ctx)
		if err != nil {
			b.Fatalf("snapshot: %v", err)
		}
		Broadcast(conns, NewMessage("000-000-000-000-", "payload", mentions))
		for _, s := range sinks {
			<-s.Messages()
		}
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }
