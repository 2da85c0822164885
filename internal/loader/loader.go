// Package loader turns expansion requests into single, cancellable,
// deduplicated units of work. Concurrent requests for the same node coalesce
// onto one in-flight materialization; total parallelism is bounded by a
// semaphore; each caller's wait is bounded by a timeout.
//
// Timeout policy: the timeout is a caller-side give-up. The caller gets
// ErrLoadTimeout, but the materialization keeps running and populates the
// node for future requests. Explicit cancellation is different: when every
// waiter has cancelled, the in-flight work is cancelled too and the node
// returns to Idle.
package loader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/luisOO/json-view/internal/events"
	"github.com/luisOO/json-view/internal/tree"
)

// Defaults for Config fields left zero.
const (
	DefaultWorkers = 3
	DefaultTimeout = 10 * time.Second
)

// ErrLoadTimeout reports that a caller gave up waiting for an expansion. The
// underlying work continues; retrying later usually finds the node loaded.
var ErrLoadTimeout = errors.New("load timed out")

// Config holds coordinator settings.
type Config struct {
	Workers    int64         // concurrent materializations
	Timeout    time.Duration // per-request wait bound
	ChildLimit int           // children per materialization call
}

func (c Config) workers() int64 {
	if c.Workers <= 0 {
		return DefaultWorkers
	}
	return c.Workers
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// A flight tracks one in-progress load and the callers waiting on it. Its
// context is detached from any single caller; it is cancelled only when the
// last waiter explicitly cancels.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Coordinator deduplicates and bounds node expansions over one tree.
type Coordinator struct {
	tree *tree.Tree
	bus  *events.Bus
	log  zerolog.Logger
	cfg  Config
	sem  *semaphore.Weighted
	sf   singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight

	// delayFn is a test seam invoked before materialization; nil in
	// production.
	delayFn func(context.Context) error
}

// New builds a Coordinator for t publishing to bus.
func New(t *tree.Tree, bus *events.Bus, log zerolog.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		tree:    t,
		bus:     bus,
		log:     log.With().Str("component", "loader").Logger(),
		cfg:     cfg,
		sem:     semaphore.NewWeighted(cfg.workers()),
		flights: make(map[string]*flight),
	}
}

// Expand materializes n's immediate children, reusing any load already in
// flight for the same path. All concurrent callers observe the same result.
// Scalar nodes return no children and do no work.
func (c *Coordinator) Expand(ctx context.Context, n *tree.Node) ([]*tree.Node, error) {
	if !n.CanExpand() {
		return nil, nil
	}
	if n.State() == tree.StateLoaded {
		return n.Children(), nil
	}

	key := n.Path.String()
	fl := c.addWaiter(key)
	ch := c.sf.DoChan(key, func() (any, error) {
		defer c.endFlight(key)
		return c.load(fl.ctx, n)
	})

	timer := time.NewTimer(c.cfg.timeout())
	defer timer.Stop()

	select {
	case res := <-ch:
		c.dropWaiter(key, false)
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]*tree.Node), nil

	case <-timer.C:
		// Give up on behalf of this caller only; the work keeps running.
		c.dropWaiter(key, false)
		c.log.Warn().Str("path", key).Dur("timeout", c.cfg.timeout()).Msg("expand timed out")
		return nil, ErrLoadTimeout

	case <-ctx.Done():
		c.dropWaiter(key, true)
		return nil, ctx.Err()
	}
}

func (c *Coordinator) addWaiter(key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl := c.flights[key]
	if fl == nil {
		fctx, cancel := context.WithCancel(context.Background())
		fl = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = fl
	}
	fl.waiters++
	return fl
}

// dropWaiter detaches one caller from the flight. When cancelIfLast is set
// and no waiters remain, the in-flight work is cancelled.
func (c *Coordinator) dropWaiter(key string, cancelIfLast bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fl := c.flights[key]
	if fl == nil {
		return
	}
	fl.waiters--
	if cancelIfLast && fl.waiters <= 0 {
		fl.cancel()
	}
}

// endFlight retires the flight record once its work function returns, so a
// retry starts fresh.
func (c *Coordinator) endFlight(key string) {
	c.mu.Lock()
	fl := c.flights[key]
	delete(c.flights, key)
	c.mu.Unlock()
	if fl != nil {
		fl.cancel()
	}
	c.sf.Forget(key)
}

// load runs one materialization under the concurrency bound. Cancellation
// between batches leaves the node Idle; materialization failures mark it
// Failed and retryable.
func (c *Coordinator) load(ctx context.Context, n *tree.Node) ([]*tree.Node, error) {
	if !n.BeginLoad() {
		if n.State() == tree.StateLoaded {
			return n.Children(), nil
		}
		return nil, errors.New("node is busy")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		n.CancelLoad()
		return nil, err
	}
	defer c.sem.Release(1)

	if c.delayFn != nil {
		if err := c.delayFn(ctx); err != nil {
			n.CancelLoad()
			return nil, err
		}
	}

	children, partial, err := c.tree.Materialize(ctx, n.Path, c.cfg.ChildLimit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			n.CancelLoad()
			return nil, err
		}
		n.FailLoad(err)
		c.log.Error().Err(err).Str("path", n.Path.String()).Msg("materialization failed")
		c.bus.Publish(events.Event{Type: events.TypeLoadFailed, Data: map[string]any{
			"path":  n.Path.String(),
			"error": err.Error(),
		}})
		return nil, err
	}

	c.tree.Commit(n, children, partial)
	c.bus.Publish(events.Event{Type: events.TypeChildrenLoaded, Data: map[string]any{
		"path":    n.Path.String(),
		"count":   len(children),
		"partial": partial,
	}})
	return children, nil
}
