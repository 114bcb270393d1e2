// internal/manager/invalidation_manager.go
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tenant-scope/internal/consumer"
	"tenant-scope/internal/messaging"
	"tenant-scope/internal/model"
	"tenant-scope/internal/worker"
)

var (
	ErrMalformedEvent = errors.New("malformed tenant event")
	ErrUnknownEvent   = errors.New("unknown tenant event type")
)

// Invalidator drops cached tenant entries. tenancy.Resolver satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, subdomain, domain string)
}

// Recorder observes processed events. metrics.Metrics satisfies it.
type Recorder interface {
	ObserveInvalidation(eventType, status string)
	SetQueueDepth(queue string, depth int)
	worker.Recorder
}

// InvalidationManager consumes tenant events and evicts the cache entries
// they make stale.
type InvalidationManager struct {
	invalidator Invalidator
	logger      *zap.Logger
	metrics     Recorder

	mu       sync.Mutex
	rabbit   *messaging.RabbitClient
	consumer *consumer.Consumer
	pool     *worker.Pool
}

func NewInvalidationManager(inv Invalidator, logger *zap.Logger, rec Recorder) *InvalidationManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationManager{
		invalidator: inv,
		logger:      logger.Named("invalidation"),
		metrics:     rec,
	}
}

// Start declares the events queues and begins consuming with workers
// goroutines.
func (m *InvalidationManager) Start(rabbit *messaging.RabbitClient, workers int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumer != nil {
		return nil // already running
	}

	if err := rabbit.DeclareQueues(); err != nil {
		return err
	}

	tag := "tenant-scope-" + uuid.NewString()
	c, err := consumer.StartConsumer(rabbit.GetConnection(), messaging.EventsQueue, tag, workers*2, m.logger)
	if err != nil {
		return err
	}

	var rec worker.Recorder
	if m.metrics != nil {
		rec = m.metrics
	}
	pool := worker.NewPool(c.Jobs(), m.HandleEvent, workers, m.logger, rec)
	pool.Start()

	m.rabbit = rabbit
	m.consumer = c
	m.pool = pool
	m.logger.Info("invalidation pipeline started", zap.Int("workers", workers))
	return nil
}

// HandleEvent decodes one message body and evicts the cache keys it
// touches, including the previous subdomain and domain on a rename.
func (m *InvalidationManager) HandleEvent(ctx context.Context, body []byte) (err error) {
	var ev model.TenantEvent
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		if m.metrics != nil {
			m.metrics.ObserveInvalidation(string(ev.Type), status)
		}
	}()

	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.TenantID == "" {
		return fmt.Errorf("%w: missing tenant_id", ErrMalformedEvent)
	}

	switch ev.Type {
	case model.EventStatusChanged, model.EventDomainChanged, model.EventUpdated, model.EventDeleted:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}

	m.invalidator.Invalidate(ctx, ev.Subdomain, ev.CustomDomain)
	if ev.PreviousSubdomain != "" || ev.PreviousDomain != "" {
		m.invalidator.Invalidate(ctx, ev.PreviousSubdomain, ev.PreviousDomain)
	}

	m.logger.Info("tenant cache invalidated",
		zap.String("tenant_id", ev.TenantID),
		zap.String("event", string(ev.Type)),
		zap.String("subdomain", ev.Subdomain),
		zap.String("custom_domain", ev.CustomDomain))
	return nil
}

// SetWorkerCount resizes the running pool.
func (m *InvalidationManager) SetWorkerCount(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pool == nil {
		return fmt.Errorf("invalidation pipeline not started")
	}
	m.pool.SetWorkerCount(n)
	return nil
}

// MonitorQueueDepth refreshes the queue depth gauge every interval until
// ctx is done.
func (m *InvalidationManager) MonitorQueueDepth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			rabbit := m.rabbit
			m.mu.Unlock()
			if rabbit == nil {
				continue
			}
			for _, q := range []string{messaging.EventsQueue, messaging.EventsDLQ} {
				depth, err := rabbit.QueueDepth(q)
				if err != nil {
					m.logger.Warn("failed to read queue depth", zap.String("queue", q), zap.Error(err))
					continue
				}
				if m.metrics != nil {
					m.metrics.SetQueueDepth(q, depth)
				}
			}
		}
	}
}

// Shutdown stops consuming, then drains the workers.
func (m *InvalidationManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.consumer != nil {
		m.consumer.Stop()
		m.consumer = nil
	}
	if m.pool != nil {
		m.pool.Stop()
		m.pool = nil
	}
	m.rabbit = nil
	m.logger.Info("invalidation pipeline stopped")
}
