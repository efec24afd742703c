package auditlog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// batchSize caps how many entries accumulate before an immediate write,
// regardless of the flush timer.
const batchSize = 100

// LoggerInterface is implemented by Logger and NoopLogger. Handlers hold this
// so disabling operation logging costs nothing at the call sites.
type LoggerInterface interface {
	Write(entry *Entry)
	Config() Config
	Close() error
}

// Logger buffers operation log entries in memory and writes them to the
// store in batches, either when the batch fills or on a timer. Write never
// blocks the request path.
type Logger struct {
	store    LogStore
	config   Config
	incoming chan *Entry
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewLogger starts the background flush goroutine and returns the logger.
func NewLogger(store LogStore, cfg Config) *Logger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	l := &Logger{
		store:    store,
		config:   cfg,
		incoming: make(chan *Entry, cfg.BufferSize),
		done:     make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Write queues an entry without blocking. A full buffer drops the entry with
// a warning rather than stalling the caller.
func (l *Logger) Write(entry *Entry) {
	if entry == nil {
		return
	}
	select {
	case l.incoming <- entry:
	default:
		slog.Warn("operation log buffer full, dropping entry",
			"operation", string(entry.Operation),
			"item_id", entry.ItemID,
		)
	}
}

// Config returns the logger configuration.
func (l *Logger) Config() Config {
	return l.config
}

// Close drains and writes all queued entries, then closes the store.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.store.Close()
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.FlushInterval)
	defer ticker.Stop()

	var batch []*Entry
	for {
		select {
		case entry := <-l.incoming:
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				batch = l.write(batch)
			}
		case <-ticker.C:
			batch = l.write(batch)
		case <-l.done:
			close(l.incoming)
			for entry := range l.incoming {
				batch = append(batch, entry)
			}
			l.write(batch)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := l.store.Flush(ctx); err != nil {
				slog.Error("failed to flush operation log store", "error", err)
			}
			cancel()
			return
		}
	}
}

// write persists the batch and returns a reset slice for reuse.
func (l *Logger) write(batch []*Entry) []*Entry {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.store.WriteBatch(ctx, batch); err != nil {
		slog.Error("failed to write operation log batch",
			"error", err,
			"count", len(batch),
		)
	}
	return batch[:0]
}

// NoopLogger discards all entries; used when operation logging is disabled.
type NoopLogger struct{}

func (l *NoopLogger) Write(_ *Entry) {}

func (l *NoopLogger) Config() Config {
	return Config{Enabled: false}
}

func (l *NoopLogger) Close() error {
	return nil
}
