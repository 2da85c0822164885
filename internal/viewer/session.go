// Package viewer is the façade the UI or CLI shell consumes: it owns one
// document session end to end — parse, lazy tree, load coordination, memory
// monitoring, search — and exposes the narrow operation set the shell needs.
// The core never renders anything; consumers subscribe to the event bus and
// refresh their own views.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/luisOO/json-view/internal/config"
	"github.com/luisOO/json-view/internal/events"
	"github.com/luisOO/json-view/internal/jsondoc"
	"github.com/luisOO/json-view/internal/loader"
	"github.com/luisOO/json-view/internal/memwatch"
	"github.com/luisOO/json-view/internal/search"
	"github.com/luisOO/json-view/internal/tree"
)

// ErrNotMaterialized reports an operation on a path whose node has not been
// surfaced by a parent expansion yet.
var ErrNotMaterialized = errors.New("node is not materialized")

// A Session owns the navigation core for one open document.
type Session struct {
	ID  uuid.UUID
	cfg *config.Config
	log zerolog.Logger
	bus *events.Bus

	mu      sync.RWMutex
	srcPath string
	doc     *jsondoc.Document
	tree    *tree.Tree
	coord   *loader.Coordinator
	monitor *memwatch.Monitor

	index   atomic.Pointer[search.Index]
	watcher *fsnotify.Watcher
}

// Open reads and parses the file at path. The size cap is enforced against
// the file size before any bytes are read, with an error distinct from
// parse failure. The session watches the file and publishes a
// document-changed event when it is modified externally.
func Open(path string, cfg *config.Config, log zerolog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if maxBytes := cfg.Parse.MaxBytes; maxBytes > 0 && fi.Size() > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", jsondoc.ErrTooLarge, fi.Size(), maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	s, err := OpenBytes(data, cfg, log)
	if err != nil {
		return nil, err
	}
	s.srcPath = path
	if err := s.startWatch(path); err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("file watch unavailable")
	}
	return s, nil
}

// OpenBytes parses raw document bytes and builds a session around them.
func OpenBytes(data []byte, cfg *config.Config, log zerolog.Logger) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	doc, err := jsondoc.Parse(data, parseOptions(cfg))
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:  uuid.New(),
		cfg: cfg,
		log: log.With().Str("component", "viewer").Logger(),
		bus: events.NewBus(),
	}
	s.install(doc)
	s.monitor.Start()
	s.log.Info().Stringer("session", s.ID).Int64("bytes", doc.Size()).Msg("document opened")
	return s, nil
}

func parseOptions(cfg *config.Config) jsondoc.Options {
	return jsondoc.Options{
		MaxDepth:      cfg.Parse.MaxDepth,
		MaxBytes:      cfg.Parse.MaxBytes,
		AllowComments: cfg.Parse.AllowComments,
	}
}

// install wires a fresh document into the session. Caller must hold mu for
// writing, except during construction.
func (s *Session) install(doc *jsondoc.Document) {
	t := tree.New(doc)
	s.doc = doc
	s.tree = t
	s.coord = loader.New(t, s.bus, s.log, loader.Config{
		Workers:    s.cfg.Loader.Workers,
		Timeout:    s.cfg.Loader.Timeout,
		ChildLimit: s.cfg.Tree.ChildLimit,
	})
	s.monitor = memwatch.New(t, s.bus, s.log, memwatch.Config{
		Interval:      s.cfg.Memory.Interval,
		WarnBytes:     s.cfg.Memory.WarnBytes,
		CriticalBytes: s.cfg.Memory.CriticalBytes,
		WarningStreak: s.cfg.Memory.WarningStreak,
		MinIdle:       s.cfg.Memory.MinIdle,
	})
	s.index.Store(nil)
}

// Events returns the session's notification bus.
func (s *Session) Events() *events.Bus { return s.bus }

// Root returns the root node.
func (s *Session) Root() *tree.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tree.Root()
}

// Analyze computes document statistics; cancellable via ctx.
func (s *Session) Analyze(ctx context.Context) (*jsondoc.StructureInfo, error) {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()
	return jsondoc.Analyze(ctx, doc)
}

// Expand loads the children of the node at p and marks it expanded. The
// node must already be materialized (the root always is).
func (s *Session) Expand(ctx context.Context, p jsondoc.Path) ([]*tree.Node, error) {
	s.mu.RLock()
	t, coord := s.tree, s.coord
	s.mu.RUnlock()

	n, ok := t.Lookup(p.String())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotMaterialized, p)
	}
	children, err := coord.Expand(ctx, n)
	if err != nil {
		return nil, err
	}
	n.SetExpanded(true)
	return children, nil
}

// Collapse clears the expansion flag at p. It is synchronous and cheap;
// the children stay materialized until the memory monitor evicts them.
func (s *Session) Collapse(p jsondoc.Path) error {
	s.mu.RLock()
	t := s.tree
	s.mu.RUnlock()

	n, ok := t.Lookup(p.String())
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotMaterialized, p)
	}
	n.SetExpanded(false)
	return nil
}

// SetFocus records the selected path; the focused node and its ancestors
// are exempt from eviction.
func (s *Session) SetFocus(p jsondoc.Path) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.tree.SetFocus(p)
}

// RebuildIndex re-indexes the currently materialized tree and swaps the
// index atomically. Rebuilds are explicit: bulk expansion does not trigger
// an index storm.
func (s *Session) RebuildIndex(ctx context.Context) error {
	s.mu.RLock()
	t := s.tree
	s.mu.RUnlock()

	ix, err := search.Build(ctx, t)
	if err != nil {
		return err
	}
	s.index.Store(ix)
	s.log.Debug().Int("nodes", ix.Nodes()).Msg("search index rebuilt")
	return nil
}

// Search queries the current index snapshot, building it first if it has
// never been built. Limit and timeout default from configuration.
func (s *Session) Search(ctx context.Context, text string, opts search.Options) ([]search.Result, error) {
	if s.index.Load() == nil {
		if err := s.RebuildIndex(ctx); err != nil {
			return nil, err
		}
	}
	if opts.Limit <= 0 {
		opts.Limit = s.cfg.Search.MaxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = s.cfg.Search.Timeout
	}
	return s.index.Load().Search(ctx, text, opts)
}

// MemoryStatus reports the monitor's latest classification.
func (s *Session) MemoryStatus() memwatch.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor.Status()
}

// SaveTo serializes the document to w, order preserved.
func (s *Session) SaveTo(w io.Writer) error {
	s.mu.RLock()
	t := s.tree
	s.mu.RUnlock()
	return t.Serialize(w, t.Root())
}

// Reload re-reads the source file and replaces the whole document — the
// only mutation a session permits. The old tree, coordinator and monitor
// are discarded wholesale and a document-replaced event is published.
func (s *Session) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srcPath == "" {
		return errors.New("session has no backing file")
	}
	data, err := os.ReadFile(s.srcPath)
	if err != nil {
		return err
	}
	doc, err := jsondoc.Parse(data, parseOptions(s.cfg))
	if err != nil {
		return err
	}

	s.monitor.Stop()
	s.install(doc)
	s.monitor.Start()
	s.bus.Publish(events.Event{Type: events.TypeDocumentReplaced, Data: map[string]any{
		"path":  s.srcPath,
		"bytes": doc.Size(),
	}})
	s.log.Info().Str("path", s.srcPath).Msg("document reloaded")
	return nil
}

// Close stops the monitor and the file watcher.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitor.Stop()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

func (s *Session) startWatch(path string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return err
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) {
					s.log.Debug().Str("path", ev.Name).Msg("source file changed")
					s.bus.Publish(events.Event{Type: events.TypeDocumentChanged, Data: map[string]any{
						"path": ev.Name,
					}})
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("file watch error")
			}
		}
	}()
	return nil
}
