package ringbuffer

import (
	"context"
	"fmt"
	"log/slog"
)

// State tracks where a Transient is in its load, mutate, commit cycle.
type State int

const (
	// StateConstructed means the range was loaded and not yet mutated.
	StateConstructed State = iota
	// StateDirty means at least one push or pop changed the in-memory range
	// since the last commit.
	StateDirty
	// StateCommitted means the in-memory range has been written back.
	StateCommitted
)

func (s State) String() string {
	switch s {
	case StateConstructed:
		return "constructed"
	case StateDirty:
		return "dirty"
	case StateCommitted:
		return "committed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Option configures a Transient.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	evictOverwritten bool
}

// WithLogger sets the logger used for overwrite and commit debug lines.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEvictOverwritten deletes the slot of an item that falls off the front
// of a full buffer. Without it the stale value stays in the item store until
// the next push writes over it.
func WithEvictOverwritten() Option {
	return func(o *options) {
		o.evictOverwritten = true
	}
}

// Transient is a working copy of a buffer's range. Pushes and pops write
// items straight to the ItemStore but only change the range in memory;
// Commit writes the range back to the RangeStore. A Transient is not safe
// for concurrent use.
type Transient[I Index, T any] struct {
	ranges RangeStore[I]
	items  ItemStore[I, T]

	start I
	end   I
	state State

	logger           *slog.Logger
	evictOverwritten bool
}

// New loads the current range from ranges and returns a Transient bound to
// both stores.
func New[I Index, T any](ctx context.Context, ranges RangeStore[I], items ItemStore[I, T], opts ...Option) (*Transient[I, T], error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	r, err := ranges.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load range: %w", err)
	}

	return &Transient[I, T]{
		ranges:           ranges,
		items:            items,
		start:            r.Start,
		end:              r.End,
		state:            StateConstructed,
		logger:           o.logger,
		evictOverwritten: o.evictOverwritten,
	}, nil
}

// Push appends item at the end of the queue. When the buffer is already at
// capacity the oldest item becomes unreachable instead of the push failing.
func (t *Transient[I, T]) Push(ctx context.Context, item T) error {
	if err := t.items.Insert(ctx, t.end, item); err != nil {
		return fmt.Errorf("failed to insert item at %d: %w", t.end, err)
	}
	t.state = StateDirty

	next := WrappingAdd(t.end, 1)
	if next == t.start {
		// The write wrapped onto the oldest item: drop it from the front.
		evicted := t.start
		t.start = WrappingAdd(t.start, 1)
		t.logger.Debug("ring buffer full, overwriting oldest item",
			"evicted_index", uint64(evicted),
			"start", uint64(t.start),
		)
		if t.evictOverwritten {
			if _, err := t.items.Take(ctx, evicted); err != nil {
				t.end = next
				return fmt.Errorf("failed to evict item at %d: %w", evicted, err)
			}
		}
	}
	t.end = next
	return nil
}

// PushMany pushes items in order. It stops at the first store error; items
// pushed before the error remain part of the batch.
func (t *Transient[I, T]) PushMany(ctx context.Context, items ...T) error {
	for _, item := range items {
		if err := t.Push(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Pop removes and returns the oldest item. It reports false, and leaves the
// range untouched, when the buffer is empty.
func (t *Transient[I, T]) Pop(ctx context.Context) (T, bool, error) {
	var zero T
	if t.IsEmpty() {
		return zero, false, nil
	}

	item, err := t.items.Take(ctx, t.start)
	if err != nil {
		return zero, false, fmt.Errorf("failed to take item at %d: %w", t.start, err)
	}
	t.start = WrappingAdd(t.start, 1)
	t.state = StateDirty

	return item, true, nil
}

// Peek returns the oldest item without removing it.
func (t *Transient[I, T]) Peek(ctx context.Context) (T, bool, error) {
	var zero T
	if t.IsEmpty() {
		return zero, false, nil
	}

	item, err := t.items.GetOrDefault(ctx, t.start)
	if err != nil {
		return zero, false, fmt.Errorf("failed to read item at %d: %w", t.start, err)
	}
	return item, true, nil
}

// IsEmpty reports whether the in-memory range holds no items.
func (t *Transient[I, T]) IsEmpty() bool {
	return t.start == t.end
}

// Len returns the number of reachable items.
func (t *Transient[I, T]) Len() uint64 {
	return Distance(t.start, t.end)
}

// Range returns the in-memory range, which may differ from the stored one
// until Commit is called.
func (t *Transient[I, T]) Range() Range[I] {
	return Range[I]{Start: t.start, End: t.end}
}

// State returns the current lifecycle state.
func (t *Transient[I, T]) State() State {
	return t.state
}

// Commit writes the in-memory range to the RangeStore. It is safe to call
// more than once and safe to call when nothing changed.
func (t *Transient[I, T]) Commit(ctx context.Context) error {
	r := t.Range()
	if err := t.ranges.Put(ctx, r); err != nil {
		return fmt.Errorf("failed to commit range %s: %w", r, err)
	}
	t.state = StateCommitted
	t.logger.Debug("ring buffer committed", "start", uint64(r.Start), "end", uint64(r.End))
	return nil
}
