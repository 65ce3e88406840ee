package ringbuffer

import (
	"context"
	"fmt"
)

// Range delimits the occupied region of a buffer. Start is the slot of the
// oldest unread item, End is one past the newest. Start == End means empty.
// Start > End is valid and denotes a region that wraps past the top of the
// index space.
type Range[I Index] struct {
	Start I
	End   I
}

// Empty reports whether the range holds no items.
func (r Range[I]) Empty() bool {
	return r.Start == r.End
}

// Len returns the number of reachable items in the range.
func (r Range[I]) Len() uint64 {
	return Distance(r.Start, r.End)
}

func (r Range[I]) String() string {
	return fmt.Sprintf("(%d,%d)", r.Start, r.End)
}

// ItemStore is a persistent mapping from slot index to item.
type ItemStore[I Index, T any] interface {
	// GetOrDefault returns the item at idx, or the zero value of T when the
	// slot has never been written or was deleted.
	GetOrDefault(ctx context.Context, idx I) (T, error)
	// Insert writes item at idx, replacing any previous value.
	Insert(ctx context.Context, idx I, item T) error
	// Take returns the item at idx and deletes the slot. Absent slots yield
	// the zero value.
	Take(ctx context.Context, idx I) (T, error)
}

// RangeStore persists the single (start, end) pair of a buffer.
type RangeStore[I Index] interface {
	// Get returns the stored range, or the zero Range when none was stored.
	Get(ctx context.Context) (Range[I], error)
	Put(ctx context.Context, r Range[I]) error
}
