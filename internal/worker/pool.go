package worker

import (
	"context"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// HandlerFunc processes one message body. A returned error dead-letters the
// message.
type HandlerFunc func(ctx context.Context, body []byte) error

// Recorder observes worker activity. metrics.Metrics satisfies it.
type Recorder interface {
	ObserveWorker(status string)
	SetWorkersActive(n int)
}

// Pool runs a resizable set of goroutines draining one delivery channel.
type Pool struct {
	jobs    <-chan amqp.Delivery
	handler HandlerFunc
	logger  *zap.Logger
	metrics Recorder

	mu      sync.Mutex
	workers int
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

func NewPool(jobs <-chan amqp.Delivery, handler HandlerFunc, workerCount int, logger *zap.Logger, rec Recorder) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		jobs:    jobs,
		handler: handler,
		logger:  logger.Named("worker"),
		metrics: rec,
		workers: workerCount,
	}
}

func (wp *Pool) Start() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.startLocked()
}

func (wp *Pool) startLocked() {
	if wp.running {
		return
	}
	wp.logger.Info("starting pool", zap.Int("workers", wp.workers))

	wp.stopCh = make(chan struct{})
	wp.running = true
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.run(wp.stopCh)
	}
	if wp.metrics != nil {
		wp.metrics.SetWorkersActive(wp.workers)
	}
}

// Stop waits for in-flight messages to finish.
func (wp *Pool) Stop() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	wp.stopLocked()
}

func (wp *Pool) stopLocked() {
	if !wp.running {
		return
	}
	close(wp.stopCh)
	wp.wg.Wait()
	wp.running = false
	if wp.metrics != nil {
		wp.metrics.SetWorkersActive(0)
	}
	wp.logger.Info("stopped pool")
}

func (wp *Pool) Workers() int {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	return wp.workers
}

// SetWorkerCount updates the worker pool to use a new concurrency level
func (wp *Pool) SetWorkerCount(n int) {
	wp.mu.Lock()
	defer wp.mu.Unlock()

	if n <= 0 || n == wp.workers {
		return
	}

	wp.logger.Info("rescaling worker pool", zap.Int("from", wp.workers), zap.Int("to", n))

	restart := wp.running
	wp.stopLocked()
	wp.workers = n
	if restart {
		wp.startLocked()
	}
}

func (wp *Pool) run(stop <-chan struct{}) {
	defer wp.wg.Done()
	for {
		select {
		case <-stop:
			return
		case msg, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.process(msg)
		}
	}
}

func (wp *Pool) process(msg amqp.Delivery) {
	if err := wp.handler(context.Background(), msg.Body); err != nil {
		wp.logger.Warn("failed to process message, dead-lettering",
			zap.String("message_id", msg.MessageId), zap.Error(err))
		_ = msg.Reject(false) // send to DLQ
		wp.observe("rejected")
		return
	}

	_ = msg.Ack(false)
	wp.observe("acked")
}

func (wp *Pool) observe(status string) {
	if wp.metrics != nil {
		wp.metrics.ObserveWorker(status)
	}
}
