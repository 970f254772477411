package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/campuserp/abac-core/pkg/types"
)

// Writer persists one evaluation record.
type Writer interface {
	Write(record *types.PolicyEvaluation) error
	Close() error
}

// stdoutWriter writes records to stdout as JSON lines.
type stdoutWriter struct {
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewStdoutWriter creates a writer that emits JSON lines on stdout.
func NewStdoutWriter() Writer {
	return &stdoutWriter{encoder: json.NewEncoder(os.Stdout)}
}

func (w *stdoutWriter) Write(record *types.PolicyEvaluation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.encoder.Encode(record)
}

func (w *stdoutWriter) Close() error { return nil }

// storeWriter adapts a Store into a Writer for the async logger.
type storeWriter struct {
	store   Store
	timeout time.Duration
}

// NewStoreWriter wraps an audit store so the async logger can flush into it.
func NewStoreWriter(store Store) Writer {
	return &storeWriter{store: store, timeout: 5 * time.Second}
}

func (w *storeWriter) Write(record *types.PolicyEvaluation) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	return w.store.AppendEvaluation(ctx, record)
}

func (w *storeWriter) Close() error { return nil }
