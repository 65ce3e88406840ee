package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/runger/ringq/internal/log"
	"github.com/runger/ringq/internal/ringbuffer"
	"github.com/runger/ringq/internal/storage"
)

// Index is the slot type of service queues: 256 slots, at most 255 of them
// reachable at once.
type Index = uint8

// Value is the item type stored by Service.
type Value struct {
	Integer int32 `json:"integer" yaml:"integer"`
	Boolean bool  `json:"boolean" yaml:"boolean"`
}

// Status is a read-only snapshot of a queue.
type Status struct {
	Name        string
	Range       ringbuffer.Range[Index]
	Len         uint64
	Capacity    uint64
	StoredSlots int64  // occupied slots in the backend, stale ones included
	Head        *Value // oldest item, nil when empty
}

// Empty reports whether the queue holds no items.
func (s Status) Empty() bool {
	return s.Range.Empty()
}

// Service exposes a named queue of Values on a storage.Backend. Batches on the
// same backend and queue name are serialized, so each one observes the
// committed result of the previous one.
type Service struct {
	backend storage.Backend
	name    string
	codec   storage.Codec[Value]
	logger  *slog.Logger
	evict   bool
	onPop   func(Value)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCodec overrides the item encoding (JSON by default).
func WithCodec(codec storage.Codec[Value]) ServiceOption {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithEvictOverwritten deletes slots that fall off the front of a full
// queue instead of leaving them for the next push to overwrite.
func WithEvictOverwritten(evict bool) ServiceOption {
	return func(s *Service) {
		s.evict = evict
	}
}

// WithPopHook registers fn to be called with every popped value.
func WithPopHook(fn func(Value)) ServiceOption {
	return func(s *Service) {
		s.onPop = fn
	}
}

// NewService returns a Service for the queue called name on backend.
func NewService(backend storage.Backend, name string, opts ...ServiceOption) *Service {
	s := &Service{
		backend: backend,
		name:    name,
		codec:   storage.JSONCodec[Value]{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the queue name.
func (s *Service) Name() string {
	return s.name
}

// AddToQueue pushes one value.
func (s *Service) AddToQueue(ctx context.Context, integer int32, boolean bool) error {
	return s.Batch(ctx, func(b *Batch) error {
		return b.Push(ctx, Value{Integer: integer, Boolean: boolean})
	})
}

// AddMultiple pushes one value per integer, all sharing boolean, in order.
func (s *Service) AddMultiple(ctx context.Context, integers []int32, boolean bool) error {
	values := make([]Value, len(integers))
	for i, integer := range integers {
		values[i] = Value{Integer: integer, Boolean: boolean}
	}
	return s.Batch(ctx, func(b *Batch) error {
		return b.Push(ctx, values...)
	})
}

// PopFromQueue removes the oldest value. ok is false when the queue is
// empty.
func (s *Service) PopFromQueue(ctx context.Context) (v Value, ok bool, err error) {
	err = s.Batch(ctx, func(b *Batch) error {
		v, ok, err = b.Pop(ctx)
		return err
	})
	if err != nil {
		return Value{}, false, err
	}
	return v, ok, nil
}

// Batch runs fn with exclusive access to the queue and commits once when fn
// returns, whatever fn returns. Once the commit has gone through the pop hook
// is called with every value fn popped, even if fn returned an error.
//
// The queue lock is not reentrant: fn must not call Batch, AddToQueue,
// AddMultiple or PopFromQueue on the same queue. Status, Range and Value
// are safe to call from fn and see the last committed state.
func (s *Service) Batch(ctx context.Context, fn func(b *Batch) error) error {
	key := lockKey{backend: s.backend, name: s.name}
	mu := bufferLocks.acquire(key)
	defer bufferLocks.release(key, mu)

	b := &Batch{svc: s, id: uuid.NewString()}
	opts := []ringbuffer.Option{ringbuffer.WithLogger(s.logger.With("queue", s.name, "batch_id", b.id))}
	if s.evict {
		opts = append(opts, ringbuffer.WithEvictOverwritten())
	}

	err := WithQueue(ctx, s.ranges(), s.items(), func(q *ringbuffer.Transient[Index, Value]) error {
		b.q = q
		return fn(b)
	}, opts...)

	if b.q != nil && b.q.State() == ringbuffer.StateCommitted {
		r := b.q.Range()
		log.LogCommit(s.logger, s.name, b.id, uint64(r.Start), uint64(r.End))
		if s.onPop != nil {
			for _, v := range b.popped {
				s.onPop(v)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update queue %q: %w", s.name, err)
	}
	return nil
}

// Batch is a group of queue operations that share one commit. It is only
// valid inside the function passed to Service.Batch.
type Batch struct {
	svc    *Service
	id     string
	q      *ringbuffer.Transient[Index, Value]
	popped []Value
}

// ID returns the batch id used in log lines.
func (b *Batch) ID() string {
	return b.id
}

// Push appends values in order.
func (b *Batch) Push(ctx context.Context, values ...Value) error {
	if err := b.q.PushMany(ctx, values...); err != nil {
		return err
	}
	log.LogPushed(b.svc.logger, b.svc.name, b.id, len(values))
	return nil
}

// Pop removes the oldest value.
func (b *Batch) Pop(ctx context.Context) (Value, bool, error) {
	v, ok, err := b.q.Pop(ctx)
	if err != nil || !ok {
		return v, ok, err
	}
	b.popped = append(b.popped, v)
	log.LogPopped(b.svc.logger, b.svc.name, b.id, v.Integer, v.Boolean)
	return v, true, nil
}

// Peek returns the oldest value without removing it.
func (b *Batch) Peek(ctx context.Context) (Value, bool, error) {
	return b.q.Peek(ctx)
}

// Range returns the batch's uncommitted range.
func (b *Batch) Range() ringbuffer.Range[Index] {
	return b.q.Range()
}

// Status returns a snapshot of the committed queue state. It does not
// write to the store and does not take the queue lock.
func (s *Service) Status(ctx context.Context) (Status, error) {
	r, err := s.ranges().Get(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read range: %w", err)
	}

	items := s.items()
	stored, err := items.Count(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("failed to count items: %w", err)
	}

	st := Status{
		Name:        s.name,
		Range:       r,
		Len:         r.Len(),
		Capacity:    ringbuffer.Capacity[Index](),
		StoredSlots: stored,
	}
	if !r.Empty() {
		head, err := items.GetOrDefault(ctx, r.Start)
		if err != nil {
			return Status{}, fmt.Errorf("failed to read head item: %w", err)
		}
		st.Head = &head
	}
	return st, nil
}

// Range returns the committed range.
func (s *Service) Range(ctx context.Context) (ringbuffer.Range[Index], error) {
	return s.ranges().Get(ctx)
}

// Value returns the value stored at idx, or the zero Value for an empty
// slot. The slot does not have to be reachable.
func (s *Service) Value(ctx context.Context, idx Index) (Value, error) {
	return s.items().GetOrDefault(ctx, idx)
}

func (s *Service) ranges() *storage.Ranges[Index] {
	return storage.NewRanges[Index](s.backend, s.name)
}

func (s *Service) items() *storage.Items[Index, Value] {
	return storage.NewItems[Index, Value](s.backend, s.name, s.codec)
}

type lockKey struct {
	backend storage.Backend
	name    string
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// lockTable hands out one mutex per (backend, queue name). An entry lives
// only while some caller holds or waits for it.
type lockTable struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

var bufferLocks = &lockTable{entries: make(map[lockKey]*lockEntry)}

func (t *lockTable) acquire(key lockKey) *lockEntry {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &lockEntry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()
	return e
}

func (t *lockTable) release(key lockKey, e *lockEntry) {
	e.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(t.entries, key)
	}
}

func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *lockTable) holds(key lockKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[key]
	return ok
}
