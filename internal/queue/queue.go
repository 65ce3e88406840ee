// Package queue binds ring buffer transients to concrete stores and makes
// sure every batch of operations ends with exactly one commit.
package queue

import (
	"context"
	"errors"

	"github.com/runger/ringq/internal/ringbuffer"
)

// WithQueue loads a transient from ranges and items, runs fn against it and
// commits afterwards. The commit also runs when fn fails or panics; a panic
// is re-raised once the commit is done. An error from fn and a commit error
// are both returned, joined.
func WithQueue[I ringbuffer.Index, T any](
	ctx context.Context,
	ranges ringbuffer.RangeStore[I],
	items ringbuffer.ItemStore[I, T],
	fn func(q *ringbuffer.Transient[I, T]) error,
	opts ...ringbuffer.Option,
) (err error) {
	q, err := ringbuffer.New(ctx, ranges, items, opts...)
	if err != nil {
		return err
	}

	defer func() {
		recovered := recover()
		if cerr := q.Commit(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if recovered != nil {
			panic(recovered)
		}
	}()

	return fn(q)
}
