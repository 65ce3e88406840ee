package storage

import (
	"context"
	"fmt"

	"github.com/runger/ringq/internal/ringbuffer"
)

// Items exposes one buffer's slots of a Backend as a ringbuffer.ItemStore.
type Items[I ringbuffer.Index, T any] struct {
	backend Backend
	buffer  string
	codec   Codec[T]
}

// NewItems binds buffer on backend to items of type T encoded with codec.
func NewItems[I ringbuffer.Index, T any](backend Backend, buffer string, codec Codec[T]) *Items[I, T] {
	return &Items[I, T]{backend: backend, buffer: buffer, codec: codec}
}

// GetOrDefault implements ringbuffer.ItemStore.
func (s *Items[I, T]) GetOrDefault(ctx context.Context, idx I) (T, error) {
	payload, found, err := s.backend.GetItem(ctx, s.buffer, uint64(idx))
	return s.decode(payload, found, err)
}

// Insert implements ringbuffer.ItemStore.
func (s *Items[I, T]) Insert(ctx context.Context, idx I, item T) error {
	payload, err := s.codec.Marshal(item)
	if err != nil {
		return err
	}
	return s.backend.PutItem(ctx, s.buffer, uint64(idx), payload)
}

// Take implements ringbuffer.ItemStore.
func (s *Items[I, T]) Take(ctx context.Context, idx I) (T, error) {
	payload, found, err := s.backend.TakeItem(ctx, s.buffer, uint64(idx))
	return s.decode(payload, found, err)
}

// Count returns the number of occupied slots, including stale ones left
// behind by overwrites.
func (s *Items[I, T]) Count(ctx context.Context) (int64, error) {
	return s.backend.CountItems(ctx, s.buffer)
}

func (s *Items[I, T]) decode(payload []byte, found bool, err error) (T, error) {
	var zero T
	if err != nil || !found {
		return zero, err
	}
	return s.codec.Unmarshal(payload)
}

// Ranges exposes one buffer's range value of a Backend as a
// ringbuffer.RangeStore.
type Ranges[I ringbuffer.Index] struct {
	backend Backend
	buffer  string
}

// NewRanges binds buffer on backend.
func NewRanges[I ringbuffer.Index](backend Backend, buffer string) *Ranges[I] {
	return &Ranges[I]{backend: backend, buffer: buffer}
}

// Get implements ringbuffer.RangeStore. A buffer that was never committed
// yields the empty range (0, 0).
func (s *Ranges[I]) Get(ctx context.Context) (ringbuffer.Range[I], error) {
	start, end, found, err := s.backend.LoadRange(ctx, s.buffer)
	if err != nil || !found {
		return ringbuffer.Range[I]{}, err
	}

	r := ringbuffer.Range[I]{Start: I(start), End: I(end)}
	if uint64(r.Start) != start || uint64(r.End) != end {
		return ringbuffer.Range[I]{}, fmt.Errorf("%w: buffer %q range (%d,%d)", ErrIndexOverflow, s.buffer, start, end)
	}
	return r, nil
}

// Put implements ringbuffer.RangeStore.
func (s *Ranges[I]) Put(ctx context.Context, r ringbuffer.Range[I]) error {
	return s.backend.StoreRange(ctx, s.buffer, uint64(r.Start), uint64(r.End))
}
