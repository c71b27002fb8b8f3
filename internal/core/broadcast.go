package core

import (
	"errors"

	"github.com/vovakirdan/tensor-server/internal/metrics"
)

// DeliveryFailure records a recipient that did not get a broadcast.
type DeliveryFailure struct {
	Addr   string
	ConnID string
	UUID   string
	Err    error
}

// Broadcast enqueues msg on every recipient's sink, setting IsMentioned per
// recipient. Failed deliveries are dropped and returned; they never stop the
// fan-out to the remaining recipients.
func Broadcast(recipients []LiveConnection, msg Message) []DeliveryFailure {
	var failures []DeliveryFailure
	for _, r := range recipients {
		err := ErrSinkNotAttached
		if r.Sink != nil {
			m := msg
			m.IsMentioned = msg.mentions(r.Client.UUID)
			err = r.Sink.Send(m)
		}
		if err == nil {
			continue
		}

		metrics.DeliveriesDropped.WithLabelValues(dropReason(err)).Inc()
		failures = append(failures, DeliveryFailure{
			Addr:   r.Addr,
			ConnID: r.ConnID,
			UUID:   r.Client.UUID,
			Err:    err,
		})
	}
	return failures
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrSinkFull):
		return "full"
	case errors.Is(err, ErrSinkClosed):
		return "closed"
	default:
		return "detached"
	}
}
