package monitor

import (
	"context"
	"io"
	"sync"

	"github.com/simtap/simtap-go/pkg/capture"
)

// queue is an unbounded packet queue with many producers and one consumer.
type queue struct {
	mu     sync.Mutex
	items  []capture.Packet
	notify chan struct{}
	closed bool
	err    error
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

// push appends pkt. Returns false if the queue is closed.
func (q *queue) push(pkt capture.Packet) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, pkt)
	q.mu.Unlock()

	q.signal()
	return true
}

// close stops the queue. A nil or io.EOF err discards pending packets;
// any other error is returned after the pending packets are drained.
func (q *queue) close(err error) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if err == nil {
		err = io.EOF
	}
	q.closed = true
	q.err = err
	if err == io.EOF {
		q.items = nil
	}
	q.mu.Unlock()

	q.signal()
	return true
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop returns the next packet, waiting until one is queued, the queue is
// closed, ctx is done or the session ends.
func (q *queue) pop(ctx context.Context, sess *session) (capture.Packet, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			pkt := q.items[0]
			q.items[0] = capture.Packet{}
			q.items = q.items[1:]
			if len(q.items) == 0 {
				q.items = nil
			}
			q.mu.Unlock()
			return pkt, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			return capture.Packet{}, err
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-sess.done:
			q.close(sess.Err())
		case <-ctx.Done():
			return capture.Packet{}, ctx.Err()
		}
	}
}

// len returns the number of queued packets.
func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
