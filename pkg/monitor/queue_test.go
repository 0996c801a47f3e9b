package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simtap/simtap-go/pkg/capture"
)

func testPacket(b byte) capture.Packet {
	return capture.Packet{Data: []byte{b}, SimID: "sim-1"}
}

func TestQueueOrder(t *testing.T) {
	q := newQueue()
	sess := newSession(1)

	for i := range 100 {
		require.True(t, q.push(testPacket(byte(i))))
	}
	assert.Equal(t, 100, q.len())

	for i := range 100 {
		pkt, err := q.pop(context.Background(), sess)
		require.NoError(t, err)
		assert.Equal(t, byte(i), pkt.Data[0])
	}
	assert.Zero(t, q.len())
}

func TestQueueCloseDiscards(t *testing.T) {
	q := newQueue()
	sess := newSession(1)
	q.push(testPacket(1))

	assert.True(t, q.close(nil))
	assert.False(t, q.close(nil))
	assert.False(t, q.push(testPacket(2)))

	_, err := q.pop(context.Background(), sess)
	assert.ErrorIs(t, err, io.EOF)
}

func TestQueueCloseWithErrorDrains(t *testing.T) {
	q := newQueue()
	sess := newSession(1)
	failure := errors.New("gone")
	q.push(testPacket(1))
	q.close(failure)

	pkt, err := q.pop(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, byte(1), pkt.Data[0])

	for range 3 {
		_, err = q.pop(context.Background(), sess)
		assert.ErrorIs(t, err, failure)
	}
}

func TestQueuePopWaits(t *testing.T) {
	q := newQueue()
	sess := newSession(1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		q.push(testPacket(7))
	}()

	pkt, err := q.pop(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, byte(7), pkt.Data[0])
}

func TestQueuePopCancelled(t *testing.T) {
	q := newQueue()
	sess := newSession(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.pop(ctx, sess)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The queue stays usable after a cancelled read.
	q.push(testPacket(1))
	_, err = q.pop(context.Background(), sess)
	assert.NoError(t, err)
}

func TestQueuePopObservesSessionEnd(t *testing.T) {
	q := newQueue()
	sess := newSession(1)
	failure := errors.New("disconnected")

	go func() {
		time.Sleep(20 * time.Millisecond)
		sess.fail(failure)
	}()

	_, err := q.pop(context.Background(), sess)
	assert.ErrorIs(t, err, failure)
	assert.False(t, q.push(testPacket(1)), "queue closed by session end")
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := newQueue()
	sess := newSession(1)

	const producers, perProducer = 8, 200
	var wg sync.WaitGroup
	for range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perProducer {
				q.push(testPacket(0))
			}
		}()
	}

	received := 0
	for received < producers*perProducer {
		_, err := q.pop(context.Background(), sess)
		require.NoError(t, err)
		received++
	}
	wg.Wait()
	assert.Zero(t, q.len())
}

func TestSessionFailOnce(t *testing.T) {
	sess := newSession(1)
	assert.NoError(t, sess.Err())

	first := errors.New("first")
	assert.True(t, sess.fail(first))
	assert.False(t, sess.fail(errors.New("second")))
	assert.Equal(t, first, sess.Err())

	sess.authenticate()
	sess.authenticate()
	select {
	case <-sess.authenticated:
	default:
		t.Fatal("authenticated not closed")
	}
}
