package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/status"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSource struct {
	name  string
	recs  []Record
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Records(ctx context.Context) ([]Record, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.recs, f.err
}

func fixed(srcs ...Source) func() []Source {
	return func() []Source { return srcs }
}

func TestCacheLookupByNormalizedKey(t *testing.T) {
	src := &fakeSource{name: "primary", recs: []Record{
		{First: " Ana ", Last: "Silva", Phone: "+1 (555) 123-4567"},
		{First: "", Last: "Okafor", Phone: "5559876543"},
		{First: "NoPhone"},
		{Phone: "+15550000000"},
	}}
	c := New(fixed(src), nil, nil, nil)
	require.NoError(t, c.Load(context.Background()))

	name, ok := c.Lookup("5551234567")
	require.True(t, ok)
	assert.Equal(t, "Ana Silva", name)

	name, ok = c.Lookup("+1 555 987 6543")
	require.True(t, ok)
	assert.Equal(t, "Okafor", name)

	_, ok = c.Lookup("+15550000000")
	assert.False(t, ok, "record without a name is skipped")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, status.Loaded, c.State())
}

func TestCacheLastWriterWins(t *testing.T) {
	first := &fakeSource{name: "a", recs: []Record{{First: "Old", Phone: "+15551234567"}}}
	second := &fakeSource{name: "b", recs: []Record{{First: "New", Phone: "5551234567"}}}
	c := New(fixed(first, second), nil, nil, nil)
	require.NoError(t, c.Load(context.Background()))

	name, _ := c.Lookup("5551234567")
	assert.Equal(t, "New", name)
}

func TestCachePartialOnFailingSource(t *testing.T) {
	b := bus.New()
	events, cancel := b.Subscribe(bus.KindDirectoryLoaded, 1)
	defer cancel()

	bad := &fakeSource{name: "broken", err: errors.New("permission denied")}
	good := &fakeSource{name: "ok", recs: []Record{{First: "Lee", Phone: "5551112222"}}}
	c := New(fixed(bad, good), status.NewMachine(b), b, nil)
	require.NoError(t, c.Load(context.Background()))

	assert.Equal(t, status.Partial, c.State())
	_, ok := c.Lookup("5551112222")
	assert.True(t, ok)

	select {
	case evt := <-events:
		loaded, ok := evt.Payload.(Loaded)
		require.True(t, ok)
		assert.Equal(t, status.Partial, loaded.State)
		assert.Equal(t, []string{"broken"}, loaded.Failed)
	case <-time.After(time.Second):
		t.Fatal("no directory.loaded event")
	}
}

func TestCacheBuildsOnceUnderConcurrency(t *testing.T) {
	src := &fakeSource{name: "slow", gate: make(chan struct{}), recs: []Record{{First: "Max", Phone: "5553334444"}}}
	c := New(fixed(src), nil, nil, nil)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Load(context.Background()))
		}()
	}
	// Lookups during the build see an empty cache, not a panic.
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Lookup("5553334444")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(src.gate)
	wg.Wait()

	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, int32(1), src.calls.Load())
	name, ok := c.Lookup("5553334444")
	assert.True(t, ok)
	assert.Equal(t, "Max", name)
}

func TestCacheRebuildRescans(t *testing.T) {
	src := &fakeSource{name: "a", recs: []Record{{First: "Before", Phone: "5551234567"}}}
	c := New(fixed(src), nil, nil, nil)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	src.recs = []Record{{First: "After", Phone: "5551234567"}}
	require.NoError(t, c.Load(ctx))
	name, _ := c.Lookup("5551234567")
	assert.Equal(t, "Before", name, "Load does not rescan a built cache")

	require.NoError(t, c.Rebuild(ctx))
	name, _ = c.Lookup("5551234567")
	assert.Equal(t, "After", name)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheLoadHonoursCallerContext(t *testing.T) {
	src := &fakeSource{name: "slow", gate: make(chan struct{})}
	c := New(fixed(src), nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The shared scan keeps running; let it finish so nothing leaks.
	close(src.gate)
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, status.Loaded, c.State())
}

func TestCacheCloseStopsScanQuietly(t *testing.T) {
	b := bus.New()
	events, unsub := b.Subscribe(bus.KindDirectoryLoaded, 1)
	defer unsub()

	slow := &fakeSource{name: "slow", gate: make(chan struct{})}
	next := &fakeSource{name: "next", recs: []Record{{First: "Kai", Phone: "5550001111"}}}
	c := New(fixed(slow, next), status.NewMachine(b), b, nil)

	done := make(chan error, 1)
	go func() { done <- c.Load(context.Background()) }()
	require.Eventually(t, func() bool { return slow.calls.Load() == 1 }, time.Second, time.Millisecond)

	c.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Load did not return after Close")
	}

	assert.Zero(t, next.calls.Load(), "sources after the close are not read")
	assert.Equal(t, 0, c.Len())
	select {
	case evt := <-events:
		t.Fatalf("unexpected event after close: %+v", evt)
	default:
	}

	assert.ErrorIs(t, c.Load(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Rebuild(context.Background()), ErrClosed)
}

func TestCacheCloseIdle(t *testing.T) {
	src := &fakeSource{name: "a", recs: []Record{{First: "Zoe", Phone: "5552223333"}}}
	c := New(fixed(src), nil, nil, nil)
	require.NoError(t, c.Load(context.Background()))
	c.Close()

	name, ok := c.Lookup("5552223333")
	assert.True(t, ok, "lookups still answer after close")
	assert.Equal(t, "Zoe", name)
	assert.NoError(t, c.Load(context.Background()), "a built cache needs no scan")
}
