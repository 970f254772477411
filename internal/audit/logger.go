// Package audit provides best-effort persistence of evaluation traces.
//
// The audit side effect is strictly decoupled from the decision path: records
// are enqueued into a ring buffer and flushed by a background goroutine, and
// every failure mode, including a full buffer, results in dropped records
// rather than a blocked or altered evaluation.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuserp/abac-core/internal/metrics"
	"github.com/campuserp/abac-core/pkg/types"
)

// Logger records evaluation traces.
type Logger interface {
	// LogEvaluation enqueues a record. It never blocks and never fails the
	// caller; persistence errors are logged and swallowed.
	LogEvaluation(ctx context.Context, record *types.PolicyEvaluation)

	// Flush writes pending records.
	Flush() error

	// Close flushes remaining records and releases resources.
	Close() error
}

// Config for the audit logger.
type Config struct {
	// Enabled enables audit logging.
	Enabled bool

	// Output type: stdout, file, db.
	Type string

	// For file output.
	FilePath       string
	FileMaxSize    int // MB
	FileMaxAge     int // days
	FileMaxBackups int

	// For db output.
	DB *sql.DB

	// Performance tuning.
	BufferSize    int
	FlushInterval time.Duration

	// Metrics counts dropped records. Nil is fine.
	Metrics *metrics.Metrics
}

// DefaultConfig returns the default audit configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Type:           "stdout",
		BufferSize:     1000,
		FlushInterval:  100 * time.Millisecond,
		FileMaxSize:    100,
		FileMaxAge:     30,
		FileMaxBackups: 10,
	}
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Type {
	case "stdout":
	case "file":
		if c.FilePath == "" {
			return fmt.Errorf("file path is required for file output")
		}
	case "db":
		if c.DB == nil {
			return fmt.Errorf("db handle is required for db output")
		}
	default:
		return fmt.Errorf("invalid audit type: %s (must be stdout, file, or db)", c.Type)
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 100 * time.Millisecond
	}
	return nil
}

// NewLogger creates an audit logger for the configured output.
func NewLogger(cfg Config, logger *zap.Logger) (Logger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit config: %w", err)
	}
	if !cfg.Enabled {
		return NopLogger(), nil
	}

	var writer Writer
	var err error
	switch cfg.Type {
	case "stdout":
		writer = NewStdoutWriter()
	case "file":
		writer, err = NewFileWriter(cfg.FilePath, cfg.FileMaxSize, cfg.FileMaxAge, cfg.FileMaxBackups)
		if err != nil {
			return nil, fmt.Errorf("create file writer: %w", err)
		}
	case "db":
		writer = NewStoreWriter(NewPostgresStore(cfg.DB))
	}

	return newAsyncLogger(writer, cfg, logger), nil
}

// NopLogger returns a logger that discards every record.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) LogEvaluation(ctx context.Context, record *types.PolicyEvaluation) {}
func (nopLogger) Flush() error                                                      { return nil }
func (nopLogger) Close() error                                                      { return nil }
