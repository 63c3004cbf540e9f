package directory

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/matheus3301/replykit/internal/bus"
	"github.com/matheus3301/replykit/internal/identity"
	"github.com/matheus3301/replykit/internal/logging"
	"github.com/matheus3301/replykit/internal/status"
)

// Cache maps identity keys to display names from the contact stores. It is
// built at most once unless Rebuild is called, and Lookup is safe from any
// goroutine before, during and after a build.
type Cache struct {
	sources func() []Source
	state   *status.Machine
	bus     *bus.Bus
	log     *zap.Logger

	group singleflight.Group

	// stop is cancelled by Close; a running scan stops between sources.
	stop   context.Context
	cancel context.CancelFunc
	scans  sync.WaitGroup

	mu     sync.RWMutex
	names  map[string]string
	closed bool
}

// ErrClosed is returned by Load and Rebuild after Close.
var ErrClosed = errors.New("directory cache closed")

// Loaded is the payload of directory.loaded events.
type Loaded struct {
	State   status.State `json:"state"`
	Entries int          `json:"entries"`
	Failed  []string     `json:"failed,omitempty"`
}

// New creates an empty cache. sources is called at the start of every
// build so newly linked accounts are picked up by Rebuild.
func New(sources func() []Source, state *status.Machine, b *bus.Bus, log *zap.Logger) *Cache {
	if state == nil {
		state = status.NewMachine(b)
	}
	stop, cancel := context.WithCancel(context.Background())
	return &Cache{
		sources: sources,
		state:   state,
		bus:     b,
		log:     logging.OrNop(log),
		stop:    stop,
		cancel:  cancel,
		names:   map[string]string{},
	}
}

// Close stops a running scan and waits for it to return. Lookups keep
// answering from whatever was loaded; no event is emitted afterwards.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.scans.Wait()
}

// Load builds the cache if no build has finished yet. Concurrent callers
// share one scan. The scan is not cancelled with ctx; ctx only bounds how
// long this caller waits. Only Close stops a scan.
func (c *Cache) Load(ctx context.Context) error {
	if c.state.Done() {
		return nil
	}
	return c.build(ctx, false)
}

// Rebuild rescans every source and replaces the cache contents.
func (c *Cache) Rebuild(ctx context.Context) error {
	return c.build(ctx, true)
}

func (c *Cache) build(ctx context.Context, force bool) error {
	ch := c.group.DoChan("build", func() (any, error) {
		if !force && c.state.Done() {
			return nil, nil
		}
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		c.scans.Add(1)
		c.mu.Unlock()
		defer c.scans.Done()

		c.scan(c.stop)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) scan(ctx context.Context) {
	if err := c.state.Transition(status.Loading); err != nil {
		c.log.Warn("directory build skipped", zap.Error(err))
		return
	}

	names := map[string]string{}
	var failed []string
	for _, src := range c.sources() {
		if ctx.Err() != nil {
			break
		}
		recs, err := src.Records(ctx)
		if err != nil {
			c.log.Warn("contact store unreadable, skipping", zap.String("source", src.Name()), zap.Error(err))
			failed = append(failed, src.Name())
			continue
		}
		for _, r := range recs {
			name := r.DisplayName()
			if name == "" || r.Phone == "" {
				continue
			}
			names[identity.Key(r.Phone)] = name
		}
	}
	if ctx.Err() != nil {
		c.log.Info("directory build abandoned on close")
		return
	}

	c.mu.Lock()
	c.names = names
	c.mu.Unlock()

	final := status.Loaded
	if len(failed) > 0 {
		final = status.Partial
	}
	_ = c.state.Transition(final)
	c.log.Info("directory loaded", zap.Int("entries", len(names)), zap.Int("failed_sources", len(failed)))
	c.bus.Emit(bus.KindDirectoryLoaded, Loaded{State: final, Entries: len(names), Failed: failed})
}

// Lookup returns the display name stored for id's identity key.
func (c *Cache) Lookup(id string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.names[identity.Key(id)]
	return name, ok
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.names)
}

// State returns the current load state.
func (c *Cache) State() status.State {
	return c.state.Current()
}
