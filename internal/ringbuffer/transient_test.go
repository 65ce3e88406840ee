package ringbuffer

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type someStruct struct {
	Foo uint64
	Bar uint64
}

// mapItems and valueRange are in-memory stand-ins for the persistent stores.
type mapItems[I Index, T any] struct {
	m       map[I]T
	takes   int
	failOn  string
	failErr error
}

func newMapItems[I Index, T any]() *mapItems[I, T] {
	return &mapItems[I, T]{m: make(map[I]T)}
}

func (s *mapItems[I, T]) GetOrDefault(_ context.Context, idx I) (T, error) {
	if s.failOn == "get" {
		var zero T
		return zero, s.failErr
	}
	return s.m[idx], nil
}

func (s *mapItems[I, T]) Insert(_ context.Context, idx I, item T) error {
	if s.failOn == "insert" {
		return s.failErr
	}
	s.m[idx] = item
	return nil
}

func (s *mapItems[I, T]) Take(_ context.Context, idx I) (T, error) {
	if s.failOn == "take" {
		var zero T
		return zero, s.failErr
	}
	s.takes++
	item := s.m[idx]
	delete(s.m, idx)
	return item, nil
}

type valueRange[I Index] struct {
	r       Range[I]
	puts    int
	failErr error
}

func (s *valueRange[I]) Get(context.Context) (Range[I], error) {
	if s.failErr != nil {
		return Range[I]{}, s.failErr
	}
	return s.r, nil
}

func (s *valueRange[I]) Put(_ context.Context, r Range[I]) error {
	if s.failErr != nil {
		return s.failErr
	}
	s.puts++
	s.r = r
	return nil
}

type testStores struct {
	ranges *valueRange[uint8]
	items  *mapItems[uint8, someStruct]
}

func newTestStores() testStores {
	return testStores{
		ranges: &valueRange[uint8]{},
		items:  newMapItems[uint8, someStruct](),
	}
}

func (s testStores) transient(t *testing.T, opts ...Option) *Transient[uint8, someStruct] {
	t.Helper()
	tr, err := New[uint8, someStruct](context.Background(), s.ranges, s.items, opts...)
	require.NoError(t, err)
	return tr
}

func TestTransient_SimplePush(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	require.NoError(t, ring.Push(ctx, someStruct{Foo: 1, Bar: 2}))
	require.NoError(t, ring.Commit(ctx))

	assert.Equal(t, Range[uint8]{Start: 0, End: 1}, stores.ranges.r)
	assert.Equal(t, someStruct{Foo: 1, Bar: 2}, stores.items.m[0])
}

func TestTransient_UncommittedChangesNotPersisted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	require.NoError(t, ring.Push(ctx, someStruct{Foo: 1}))

	assert.Equal(t, Range[uint8]{}, stores.ranges.r, "range must not change before commit")
	assert.Equal(t, Range[uint8]{Start: 0, End: 1}, ring.Range())
	// The item write itself is not deferred.
	assert.Contains(t, stores.items.m, uint8(0))
}

func TestTransient_PushMany(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	require.NoError(t, ring.PushMany(ctx, someStruct{Bar: 1}, someStruct{Bar: 2}, someStruct{Bar: 3}))
	require.NoError(t, ring.Commit(ctx))

	assert.Equal(t, Range[uint8]{Start: 0, End: 3}, stores.ranges.r)
	assert.Equal(t, uint64(3), ring.Len())
}

func TestTransient_FIFOOrder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	for i := uint64(1); i <= 100; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Bar: i}))
	}
	for i := uint64(1); i <= 100; i++ {
		item, ok, err := ring.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, item.Bar)
	}
	assert.True(t, ring.IsEmpty())
	assert.Empty(t, stores.items.m, "popped slots are deleted")
}

func TestTransient_PopEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	stores.ranges.r = Range[uint8]{Start: 7, End: 7}
	ring := stores.transient(t)

	item, ok, err := ring.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, someStruct{}, item)
	assert.Equal(t, Range[uint8]{Start: 7, End: 7}, ring.Range())
	assert.Equal(t, StateConstructed, ring.State())
	assert.Zero(t, stores.items.takes)
}

func TestTransient_WrapAround(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	for i := uint64(1); i < math.MaxUint8+2; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Foo: 42, Bar: i}))
	}
	require.NoError(t, ring.Commit(ctx))
	assert.Equal(t, Range[uint8]{Start: 1, End: 0}, stores.ranges.r,
		"range should be inverted because the index wrapped around")

	item, ok, err := ring.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ring.Commit(ctx))
	assert.Equal(t, Range[uint8]{Start: 2, End: 0}, stores.ranges.r)
	assert.Equal(t, uint64(2), item.Bar, "bar = 2 was placed at index 1")

	item, ok, err = ring.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, ring.Commit(ctx))
	assert.Equal(t, Range[uint8]{Start: 3, End: 0}, stores.ranges.r)
	assert.Equal(t, uint64(3), item.Bar, "bar = 3 was placed at index 2")

	for i := uint64(1); i < 4; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Foo: 21, Bar: i}))
	}
	require.NoError(t, ring.Commit(ctx))
	assert.Equal(t, Range[uint8]{Start: 4, End: 3}, stores.ranges.r)
}

func TestTransient_OverwriteKeepsMostRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	const total = 600
	for i := uint64(1); i <= total; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Bar: i}))
	}

	reachable := Capacity[uint8]() - 1
	require.Equal(t, reachable, ring.Len())

	want := total - reachable + 1
	for !ring.IsEmpty() {
		item, ok, err := ring.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, item.Bar)
		want++
	}
	assert.Equal(t, uint64(total+1), want)
}

func TestTransient_OverwriteLeavesStaleSlot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	for i := uint64(1); i <= 256; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Bar: i}))
	}

	assert.Equal(t, Range[uint8]{Start: 1, End: 0}, ring.Range())
	assert.Len(t, stores.items.m, 256)
	assert.Equal(t, uint64(1), stores.items.m[0].Bar, "evicted item stays in the store")

	// The next push reuses the stale slot.
	require.NoError(t, ring.Push(ctx, someStruct{Bar: 257}))
	assert.Equal(t, uint64(257), stores.items.m[0].Bar)
	assert.Equal(t, Range[uint8]{Start: 2, End: 1}, ring.Range())
}

func TestTransient_EvictOverwritten(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t, WithEvictOverwritten())

	for i := uint64(1); i <= 256; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Bar: i}))
	}

	assert.Equal(t, Range[uint8]{Start: 1, End: 0}, ring.Range())
	assert.Len(t, stores.items.m, 255)
	assert.NotContains(t, stores.items.m, uint8(0))

	item, ok, err := ring.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(2), item.Bar)
}

func TestTransient_CommitPersistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{Bar: i}))
	}
	_, _, err := ring.Pop(ctx)
	require.NoError(t, err)
	require.NoError(t, ring.Commit(ctx))

	reopened := stores.transient(t)
	assert.Equal(t, ring.Range(), reopened.Range())
	assert.Equal(t, uint64(4), reopened.Len())

	for i := uint64(2); i <= 5; i++ {
		item, ok, err := reopened.Pop(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, item.Bar)
	}
	assert.True(t, reopened.IsEmpty())
}

func TestTransient_CommitIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	require.NoError(t, ring.Commit(ctx))
	assert.Equal(t, StateCommitted, ring.State())
	assert.Equal(t, Range[uint8]{}, stores.ranges.r)

	require.NoError(t, ring.Push(ctx, someStruct{Bar: 1}))
	require.NoError(t, ring.Commit(ctx))
	require.NoError(t, ring.Commit(ctx))

	assert.Equal(t, 3, stores.ranges.puts)
	assert.Equal(t, Range[uint8]{Start: 0, End: 1}, stores.ranges.r)
}

func TestTransient_StateTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)
	assert.Equal(t, StateConstructed, ring.State())

	require.NoError(t, ring.Push(ctx, someStruct{Bar: 1}))
	assert.Equal(t, StateDirty, ring.State())

	require.NoError(t, ring.Commit(ctx))
	assert.Equal(t, StateCommitted, ring.State())

	_, ok, err := ring.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StateDirty, ring.State())

	assert.Equal(t, "dirty", StateDirty.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestTransient_Peek(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t)

	_, ok, err := ring.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ring.PushMany(ctx, someStruct{Bar: 1}, someStruct{Bar: 2}))
	item, ok, err := ring.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), item.Bar)
	assert.Equal(t, uint64(2), ring.Len(), "peek does not consume")
}

func TestTransient_WideIndexWrap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ranges := &valueRange[uint16]{r: Range[uint16]{Start: math.MaxUint16, End: math.MaxUint16}}
	items := newMapItems[uint16, string]()

	ring, err := New[uint16, string](ctx, ranges, items)
	require.NoError(t, err)

	require.NoError(t, ring.PushMany(ctx, "a", "b"))
	assert.Equal(t, Range[uint16]{Start: math.MaxUint16, End: 1}, ring.Range())
	assert.Equal(t, "a", items.m[math.MaxUint16])
	assert.Equal(t, "b", items.m[0])

	first, _, err := ring.Pop(ctx)
	require.NoError(t, err)
	second, _, err := ring.Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{first, second})
	assert.Equal(t, Range[uint16]{Start: 1, End: 1}, ring.Range())
}

func TestTransient_StoreErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("load", func(t *testing.T) {
		ranges := &valueRange[uint8]{failErr: boom}
		_, err := New[uint8, someStruct](ctx, ranges, newMapItems[uint8, someStruct]())
		require.ErrorIs(t, err, boom)
	})

	t.Run("insert", func(t *testing.T) {
		stores := newTestStores()
		ring := stores.transient(t)
		stores.items.failOn, stores.items.failErr = "insert", boom

		err := ring.Push(ctx, someStruct{})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, Range[uint8]{}, ring.Range(), "failed push must not move the range")
		assert.Equal(t, StateConstructed, ring.State())
	})

	t.Run("push many stops at first error", func(t *testing.T) {
		stores := newTestStores()
		ring := stores.transient(t)
		require.NoError(t, ring.Push(ctx, someStruct{Bar: 1}))
		stores.items.failOn, stores.items.failErr = "insert", boom

		err := ring.PushMany(ctx, someStruct{Bar: 2}, someStruct{Bar: 3})
		require.ErrorIs(t, err, boom)
		assert.Equal(t, Range[uint8]{Start: 0, End: 1}, ring.Range())
	})

	t.Run("take", func(t *testing.T) {
		stores := newTestStores()
		ring := stores.transient(t)
		require.NoError(t, ring.Push(ctx, someStruct{Bar: 1}))
		stores.items.failOn, stores.items.failErr = "take", boom

		_, ok, err := ring.Pop(ctx)
		require.ErrorIs(t, err, boom)
		assert.False(t, ok)
		assert.Equal(t, Range[uint8]{Start: 0, End: 1}, ring.Range())
	})

	t.Run("commit", func(t *testing.T) {
		stores := newTestStores()
		ring := stores.transient(t)
		stores.ranges.failErr = boom

		err := ring.Commit(ctx)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, StateConstructed, ring.State())
	})
}

func TestTransient_LogsOverwrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := context.Background()
	stores := newTestStores()
	ring := stores.transient(t, WithLogger(logger))

	for i := 0; i < 256; i++ {
		require.NoError(t, ring.Push(ctx, someStruct{}))
	}
	require.NoError(t, ring.Commit(ctx))

	assert.Contains(t, buf.String(), "overwriting oldest item")
	assert.Contains(t, buf.String(), `"evicted_index":0`)
	assert.Contains(t, buf.String(), "ring buffer committed")
}
