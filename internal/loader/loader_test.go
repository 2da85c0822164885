package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luisOO/json-view/internal/events"
	"github.com/luisOO/json-view/internal/jsondoc"
	"github.com/luisOO/json-view/internal/tree"
)

func newFixture(t *testing.T, src string, cfg Config) (*tree.Tree, *Coordinator, *events.Bus) {
	t.Helper()
	d, err := jsondoc.Parse([]byte(src), jsondoc.Options{})
	require.NoError(t, err)
	tr := tree.New(d)
	bus := events.NewBus()
	return tr, New(tr, bus, zerolog.Nop(), cfg), bus
}

func TestExpandDedup(t *testing.T) {
	tr, c, bus := newFixture(t, `{"a":1,"b":2,"c":3}`, Config{})

	var loads atomic.Int32
	bus.Subscribe(events.TypeChildrenLoaded, func(events.Event) { loads.Add(1) })

	// Hold every load long enough for all callers to pile onto one flight.
	release := make(chan struct{})
	c.delayFn = func(ctx context.Context) error {
		<-release
		return nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([][]*tree.Node, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Expand(context.Background(), tr.Root())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load(), "concurrent expands must coalesce into one materialization")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 3)
		// Every caller observes the same child list.
		for j, n := range results[i] {
			assert.Same(t, results[0][j], n)
		}
	}
	assert.Equal(t, tree.StateLoaded, tr.Root().State())
}

func TestExpandLoadedFastPath(t *testing.T) {
	tr, c, bus := newFixture(t, `{"a":1}`, Config{})

	var loads atomic.Int32
	bus.Subscribe(events.TypeChildrenLoaded, func(events.Event) { loads.Add(1) })

	_, err := c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	_, err = c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())
}

func TestExpandScalar(t *testing.T) {
	tr, c, _ := newFixture(t, `{"a":"leaf"}`, Config{})
	children, err := c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	require.Len(t, children, 1)

	got, err := c.Expand(context.Background(), children[0])
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTimeoutIsCallerSideGiveUp(t *testing.T) {
	tr, c, _ := newFixture(t, `{"a":1,"b":2}`, Config{Timeout: 20 * time.Millisecond})

	// The load deliberately outlives the caller's patience and ignores
	// cancellation, standing in for a genuinely slow materialization.
	c.delayFn = func(ctx context.Context) error {
		time.Sleep(120 * time.Millisecond)
		return nil
	}

	_, err := c.Expand(context.Background(), tr.Root())
	assert.ErrorIs(t, err, ErrLoadTimeout)
	assert.NotEqual(t, tree.StateLoaded, tr.Root().State())

	// The abandoned work finishes anyway and populates the node.
	assert.Eventually(t, func() bool {
		return tr.Root().State() == tree.StateLoaded
	}, time.Second, 10*time.Millisecond)

	// A later request finds the children without a second load.
	children, err := c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	assert.Len(t, children, 2)
}

func TestCancelLeavesNodeIdle(t *testing.T) {
	tr, c, _ := newFixture(t, `{"a":1}`, Config{})

	c.delayFn = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := c.Expand(ctx, tr.Root())
	assert.ErrorIs(t, err, context.Canceled)

	assert.Eventually(t, func() bool {
		return tr.Root().State() == tree.StateIdle
	}, time.Second, 5*time.Millisecond)

	// Cancelled nodes are safe to retry.
	c.delayFn = nil
	children, err := c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	assert.Len(t, children, 1)
}

func TestResolveFailureMarksFailed(t *testing.T) {
	_, c, bus := newFixture(t, `{"a":1}`, Config{})

	var failed atomic.Int32
	bus.Subscribe(events.TypeLoadFailed, func(events.Event) { failed.Add(1) })

	// A node whose path does not resolve; defensive handling keeps the
	// failure local and retryable.
	bogus := &tree.Node{
		Path:       jsondoc.RootPath.Child("missing"),
		Key:        "missing",
		Kind:       jsondoc.Object,
		ChildCount: 1,
	}
	_, err := c.Expand(context.Background(), bogus)
	var rerr *tree.ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, tree.StateFailed, bogus.State())
	assert.Error(t, bogus.LoadErr())
	assert.Equal(t, int32(1), failed.Load())

	// Retry is permitted (and fails the same way).
	_, err = c.Expand(context.Background(), bogus)
	require.Error(t, err)
}

func TestWorkerBound(t *testing.T) {
	tr, c, _ := newFixture(t, `{"a":{"x":1},"b":{"x":1}}`, Config{Workers: 1})

	children, err := c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	require.Len(t, children, 2)

	const hold = 60 * time.Millisecond
	c.delayFn = func(ctx context.Context) error {
		time.Sleep(hold)
		return nil
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, n := range children {
		wg.Add(1)
		go func(n *tree.Node) {
			defer wg.Done()
			_, err := c.Expand(context.Background(), n)
			assert.NoError(t, err)
		}(n)
	}
	wg.Wait()

	// With one worker the two loads must run back to back.
	if elapsed := time.Since(start); elapsed < 2*hold {
		t.Errorf("loads overlapped under Workers=1: elapsed %v", elapsed)
	}
}

func TestChildLimitRespected(t *testing.T) {
	var b []byte
	b = append(b, '[')
	for i := 0; i < 50; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, fmt.Sprintf("%d", i)...)
	}
	b = append(b, ']')

	tr, c, _ := newFixture(t, string(b), Config{ChildLimit: 10})
	children, err := c.Expand(context.Background(), tr.Root())
	require.NoError(t, err)
	assert.Len(t, children, 10)
	assert.True(t, tr.Root().Partial())
}

func TestBusyNodeError(t *testing.T) {
	tr, c, _ := newFixture(t, `{"a":1}`, Config{})
	require.True(t, tr.Root().BeginLoad())
	_, err := c.Expand(context.Background(), tr.Root())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrLoadTimeout))
	tr.Root().CancelLoad()
}
