// Package storage provides the key-value backends that hold ring buffer
// ranges and items: an in-memory map and SQLite. Typed adapters bridge a
// Backend to the ringbuffer store contracts through a Codec.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// BackendSQLite selects SQLiteStore.
	BackendSQLite = "sqlite"
	// BackendMemory selects MemoryStore.
	BackendMemory = "memory"
)

var (
	// ErrUnknownBackend is returned by Open for an unsupported backend name.
	ErrUnknownBackend = errors.New("unknown storage backend")

	// ErrIndexOverflow is returned when a stored index does not fit the
	// index type the buffer is opened with.
	ErrIndexOverflow = errors.New("stored index exceeds index width")
)

// Backend is a byte-level key-value store keyed by buffer name. Each buffer
// has one range value and any number of items keyed by slot index.
// Implementations must be safe for concurrent use.
type Backend interface {
	// LoadRange returns the stored (start, end) of buffer. found is false
	// when the buffer has never been committed.
	LoadRange(ctx context.Context, buffer string) (start, end uint64, found bool, err error)
	StoreRange(ctx context.Context, buffer string, start, end uint64) error

	// GetItem returns the payload at idx. found is false for an empty slot.
	GetItem(ctx context.Context, buffer string, idx uint64) (payload []byte, found bool, err error)
	PutItem(ctx context.Context, buffer string, idx uint64, payload []byte) error
	// TakeItem returns the payload at idx and deletes the slot.
	TakeItem(ctx context.Context, buffer string, idx uint64) (payload []byte, found bool, err error)

	// CountItems returns the number of occupied slots of buffer, reachable
	// or not.
	CountItems(ctx context.Context, buffer string) (int64, error)

	Close() error
}

// Option configures a backend.
type Option func(*backendOptions)

type backendOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger for background maintenance errors.
func WithLogger(logger *slog.Logger) Option {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) backendOptions {
	o := backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns the backend named by kind. path is only used by SQLite; an
// empty path selects DefaultDBPath.
func Open(kind, path string, opts ...Option) (Backend, error) {
	switch kind {
	case BackendSQLite, "":
		return NewSQLiteStore(path, opts...)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, kind)
	}
}
