package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"quill/internal/metrics"
	"quill/internal/queue"
)

const (
	DefaultWorkerCount  = 2
	DefaultBatchSize    = 10
	DefaultBlockTimeout = 5 * time.Second
)

// Manager runs a pool of consumer goroutines draining the timeline stream.
type Manager struct {
	consumer    queue.Consumer
	handler     *Handler
	workerCount int
	batchSize   int64
	blockTime   time.Duration

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// ManagerConfig tunes the consumer pool.
type ManagerConfig struct {
	WorkerCount  int
	BatchSize    int64
	BlockTimeout time.Duration
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		WorkerCount:  DefaultWorkerCount,
		BatchSize:    DefaultBatchSize,
		BlockTimeout: DefaultBlockTimeout,
	}
}

func NewManager(consumer queue.Consumer, handler *Handler, cfg ManagerConfig) *Manager {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultWorkerCount
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = DefaultBlockTimeout
	}
	return &Manager{
		consumer:    consumer,
		handler:     handler,
		workerCount: cfg.WorkerCount,
		batchSize:   cfg.BatchSize,
		blockTime:   cfg.BlockTimeout,
	}
}

// Start spins up the worker goroutines. Call Stop to shut down.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	if err := m.consumer.EnsureGroup(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline); err != nil {
		return err
	}

	log.Printf("[Manager] Starting %d workers for stream=%s group=%s",
		m.workerCount, queue.StreamTimeline, queue.ConsumerGroupTimeline)

	for i := 0; i < m.workerCount; i++ {
		workerID := i + 1
		m.wg.Add(1)
		go m.runWorker(workerID, fmt.Sprintf("worker-%d", workerID))
	}
	return nil
}

// Stop cancels the workers and blocks until they have drained.
func (m *Manager) Stop() {
	log.Printf("[Manager] Stopping workers...")
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All workers stopped")
}

func (m *Manager) runWorker(workerID int, consumerName string) {
	defer m.wg.Done()

	log.Printf("[Worker-%d] Started (consumer=%s)", workerID, consumerName)

	// Replay anything delivered to this consumer before a crash.
	m.drainPending(workerID, consumerName)

	for {
		select {
		case <-m.ctx.Done():
			log.Printf("[Worker-%d] Shutting down", workerID)
			return
		default:
			m.readBatch(workerID, consumerName)
		}
	}
}

func (m *Manager) drainPending(workerID int, consumerName string) {
	for {
		messages, err := m.consumer.ReadPending(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline, consumerName, m.batchSize)
		if err != nil {
			log.Printf("[Worker-%d] read pending FAILED: %v", workerID, err)
			return
		}
		if len(messages) == 0 {
			return
		}
		log.Printf("[Worker-%d] replaying %d pending messages", workerID, len(messages))
		m.handleMessages(workerID, messages)
	}
}

func (m *Manager) readBatch(workerID int, consumerName string) {
	messages, err := m.consumer.Read(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline, consumerName, m.batchSize, m.blockTime)
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		log.Printf("[Worker-%d] read FAILED: %v", workerID, err)
		time.Sleep(time.Second)
		return
	}
	if len(messages) == 0 {
		return
	}
	m.handleMessages(workerID, messages)
}

func (m *Manager) handleMessages(workerID int, messages []queue.Message) {
	for _, msg := range messages {
		if err := m.handler.HandleEvent(m.ctx, msg.Event); err != nil {
			// Ack anyway so a poisoned message can't wedge the stream.
			log.Printf("[Worker-%d] handle msgID=%s FAILED: %v", workerID, msg.ID, err)
			metrics.FanoutEventsTotal.WithLabelValues(msg.Event.Type, "error").Inc()
		} else {
			metrics.FanoutEventsTotal.WithLabelValues(msg.Event.Type, "ok").Inc()
		}
		if err := m.consumer.Ack(m.ctx, queue.StreamTimeline, queue.ConsumerGroupTimeline, msg.ID); err != nil {
			log.Printf("[Worker-%d] ack msgID=%s FAILED: %v", workerID, msg.ID, err)
		}
	}
}
