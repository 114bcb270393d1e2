package consumer

import (
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChannel struct {
	mu        sync.Mutex
	cancelled string
	closed    bool
}

func (f *fakeChannel) Cancel(tag string, noWait bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = tag
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeAcker struct {
	mu       sync.Mutex
	requeued []uint64
}

func (f *fakeAcker) Ack(uint64, bool) error { return nil }

func (f *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if requeue {
		f.requeued = append(f.requeued, tag)
	}
	return nil
}

func (f *fakeAcker) Reject(tag uint64, requeue bool) error { return f.Nack(tag, false, requeue) }

func TestConsumer_ForwardsDeliveries(t *testing.T) {
	ch := &fakeChannel{}
	msgs := make(chan amqp.Delivery, 1)
	c := newConsumer(ch, msgs, "tenant_events_queue", "events-1", zap.NewNop())

	msgs <- amqp.Delivery{DeliveryTag: 7, Body: []byte(`{}`)}

	select {
	case d := <-c.Jobs():
		assert.Equal(t, uint64(7), d.DeliveryTag)
	case <-time.After(time.Second):
		t.Fatal("delivery not forwarded")
	}

	c.Stop()
	_, ok := <-c.Jobs()
	assert.False(t, ok, "jobs channel must be closed after Stop")
	assert.Equal(t, "events-1", ch.cancelled)
	assert.True(t, ch.closed)
}

func TestConsumer_RequeuesUnclaimedDeliveryOnStop(t *testing.T) {
	ch := &fakeChannel{}
	acker := &fakeAcker{}
	msgs := make(chan amqp.Delivery, 1)
	c := newConsumer(ch, msgs, "q", "tag", nil)

	msgs <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3}
	require.Eventually(t, func() bool { return len(msgs) == 0 }, time.Second, 5*time.Millisecond)

	c.Stop()
	acker.mu.Lock()
	defer acker.mu.Unlock()
	assert.Equal(t, []uint64{3}, acker.requeued)
}

func TestConsumer_StopsWhenDeliveriesClose(t *testing.T) {
	msgs := make(chan amqp.Delivery)
	c := newConsumer(&fakeChannel{}, msgs, "q", "tag", nil)
	close(msgs)

	select {
	case <-c.DoneChan:
	case <-time.After(time.Second):
		t.Fatal("consumer did not finish")
	}
	c.Stop()
}
