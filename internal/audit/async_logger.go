package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/pkg/types"
)

// asyncLogger buffers records in a ring and flushes them from a background
// goroutine. When the buffer wraps, the oldest unflushed record is dropped;
// the evaluation that produced it has already returned.
type asyncLogger struct {
	writer  Writer
	logger  *zap.Logger
	metrics *metrics.Metrics

	buffer []*types.PolicyEvaluation
	size   int
	head   int
	tail   int
	mu     sync.Mutex

	flushCh  chan struct{}
	doneCh   chan struct{}
	wg       sync.WaitGroup
	interval time.Duration

	dropped uint64
}

func newAsyncLogger(writer Writer, cfg Config, logger *zap.Logger) *asyncLogger {
	l := &asyncLogger{
		writer:   writer,
		logger:   logger,
		metrics:  cfg.Metrics,
		buffer:   make([]*types.PolicyEvaluation, cfg.BufferSize),
		size:     cfg.BufferSize,
		flushCh:  make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
		interval: cfg.FlushInterval,
	}

	l.wg.Add(1)
	go l.run()

	return l
}

// LogEvaluation enqueues a record without blocking.
func (l *asyncLogger) LogEvaluation(ctx context.Context, record *types.PolicyEvaluation) {
	l.mu.Lock()

	l.buffer[l.tail] = record
	l.tail = (l.tail + 1) % l.size

	// Drop oldest on overflow.
	if l.tail == l.head {
		l.head = (l.head + 1) % l.size
		l.dropped++
		l.metrics.RecordAuditDropped(1)
	}
	l.mu.Unlock()

	select {
	case l.flushCh <- struct{}{}:
	default:
	}
}

func (l *asyncLogger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.flush()
		case <-l.flushCh:
			l.flush()
		case <-l.doneCh:
			l.flush()
			return
		}
	}
}

// Flush writes all buffered records.
func (l *asyncLogger) Flush() error {
	l.flush()
	return nil
}

func (l *asyncLogger) flush() {
	l.mu.Lock()
	records := l.drain()
	l.mu.Unlock()

	for _, record := range records {
		if err := l.writer.Write(record); err != nil {
			// A lost audit record is acceptable; a blocked decision is not.
			l.logger.Warn("audit write failed",
				zap.String("evaluation_id", record.ID),
				zap.Error(err),
			)
		}
	}
}

// drain copies the buffered records and resets the ring. Caller holds mu.
func (l *asyncLogger) drain() []*types.PolicyEvaluation {
	if l.head == l.tail {
		return nil
	}

	var records []*types.PolicyEvaluation
	for i := l.head; i != l.tail; i = (i + 1) % l.size {
		records = append(records, l.buffer[i])
		l.buffer[i] = nil
	}
	l.head = l.tail
	return records
}

// Dropped reports how many records were discarded on overflow.
func (l *asyncLogger) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// Close flushes remaining records and stops the background goroutine.
func (l *asyncLogger) Close() error {
	close(l.doneCh)
	l.wg.Wait()
	return l.writer.Close()
}
