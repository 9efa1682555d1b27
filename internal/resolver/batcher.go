package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/rcliao/mod-catalog/internal/model"
)

const (
	DefaultBatchWindow = 2 * time.Millisecond
	DefaultMaxBatch    = 100
)

// Batcher coalesces single lookups issued concurrently within one window
// into a single ResolveBestJars call. Identical lookups share one result.
type Batcher struct {
	res      *Resolver
	window   time.Duration
	maxBatch int

	mu      sync.Mutex
	pending []*pendingCall
	byKey   map[string]*pendingCall
	waiters int
	timer   *time.Timer
}

type pendingCall struct {
	lookup Lookup
	done   chan struct{}
	jar    *model.ModJar
	err    error
}

// NewBatcher returns a batcher dispatching after window elapses from the first
// pending lookup, or as soon as maxBatch loads are waiting. Non-positive values
// select defaults.
func NewBatcher(res *Resolver, window time.Duration, maxBatch int) *Batcher {
	if window <= 0 {
		window = DefaultBatchWindow
	}
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Batcher{res: res, window: window, maxBatch: maxBatch, byKey: map[string]*pendingCall{}}
}

// Load resolves l together with every other lookup pending in the window.
// A canceled ctx returns early; the shared query still runs to completion.
func (b *Batcher) Load(ctx context.Context, l Lookup) (*model.ModJar, error) {
	// Invalid lookups fail here, before they can join and fail a shared batch.
	l, _, err := b.res.normalize(l)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	c, ok := b.byKey[l.key()]
	if !ok {
		c = &pendingCall{lookup: l, done: make(chan struct{})}
		b.byKey[l.key()] = c
		b.pending = append(b.pending, c)
	}
	b.waiters++
	var batch []*pendingCall
	if b.waiters >= b.maxBatch {
		batch = b.takeLocked()
	} else if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.Flush)
	}
	b.mu.Unlock()

	if batch != nil {
		go b.dispatch(batch)
	}

	select {
	case <-c.done:
		return c.jar, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Flush dispatches whatever is pending without waiting for the window.
func (b *Batcher) Flush() {
	b.mu.Lock()
	batch := b.takeLocked()
	b.mu.Unlock()
	if batch != nil {
		b.dispatch(batch)
	}
}

func (b *Batcher) takeLocked() []*pendingCall {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = nil
	b.byKey = map[string]*pendingCall{}
	b.waiters = 0
	return batch
}

func (b *Batcher) dispatch(batch []*pendingCall) {
	lookups := make([]Lookup, len(batch))
	for i, c := range batch {
		lookups[i] = c.lookup
	}
	b.res.opts.Logger.Debug("dispatching batch", "lookups", len(lookups))
	jars, err := b.res.ResolveBestJars(context.Background(), lookups)
	for i, c := range batch {
		if err != nil {
			c.err = err
		} else {
			c.jar = jars[i]
		}
		close(c.done)
	}
}
