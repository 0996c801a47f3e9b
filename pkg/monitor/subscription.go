package monitor

import (
	"context"
	"errors"
	"io"
	"iter"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/simtap/simtap-go/pkg/capture"
)

// Subscription is a stream of captured packets for one or more SIMs.
// Close it when done; packets are buffered without bound until read.
type Subscription struct {
	id      string
	simIDs  []string
	monitor *Monitor
	session *session
	queue   *queue

	closeOnce sync.Once
}

func newSubscription(m *Monitor, sess *session, simIDs []string) *Subscription {
	return &Subscription{
		id:      uuid.NewString(),
		simIDs:  slices.Clone(simIDs),
		monitor: m,
		session: sess,
		queue:   newQueue(),
	}
}

// ID returns the subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// SimIDs returns the SIMs watched by the subscription.
func (s *Subscription) SimIDs() []string {
	return slices.Clone(s.simIDs)
}

// Pending returns the number of packets queued but not yet read.
func (s *Subscription) Pending() int {
	return s.queue.len()
}

// Deliver queues pkt without blocking. It returns false once the
// subscription is closed or its connection is gone.
func (s *Subscription) Deliver(pkt capture.Packet) bool {
	return s.queue.push(pkt)
}

// fail ends the subscription with err after pending packets are read.
func (s *Subscription) fail(err error) {
	s.queue.close(err)
}

// Next returns the next packet. It returns io.EOF after Close, and the
// disconnection error once the connection is lost and the queue is drained.
func (s *Subscription) Next(ctx context.Context) (capture.Packet, error) {
	return s.queue.pop(ctx, s.session)
}

// Packets returns an iterator over the packets of the subscription. It
// ends after Close; any other terminal error is yielded once before it ends.
func (s *Subscription) Packets(ctx context.Context) iter.Seq2[capture.Packet, error] {
	return func(yield func(capture.Packet, error) bool) {
		for {
			pkt, err := s.Next(ctx)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(capture.Packet{}, err)
				}
				return
			}
			if !yield(pkt, nil) {
				return
			}
		}
	}
}

// Close unregisters the subscription from its SIMs and discards pending
// packets. SIMs left without subscribers are unsubscribed on a best-effort
// basis. Close is idempotent and never fails.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.monitor.unsubscribe(s)
	})
	return nil
}
