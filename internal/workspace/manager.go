package workspace

import (
	"sync"
	"time"

	"github.com/MrSnakeDoc/mapmarks/internal/logger"
	"github.com/MrSnakeDoc/mapmarks/internal/mapflow"
	"github.com/MrSnakeDoc/mapmarks/internal/metrics"
	"github.com/google/uuid"
)

const DefaultIdleTTL = 30 * time.Minute

type Options struct {
	IdleTTL time.Duration
	Strict  bool
	Map     mapflow.Options // template for each workspace's map workflow
	Clock   func() time.Time
	Logger  logger.Logger
}

// Manager owns every live workspace, keyed by an opaque client id.
type Manager struct {
	mu    sync.Mutex
	items map[string]*Workspace
	opts  Options
	log   logger.Logger
}

func NewManager(opts Options) *Manager {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	opts.Map.Strict = opts.Strict
	return &Manager{items: make(map[string]*Workspace), opts: opts, log: opts.Logger}
}

// NewID returns a fresh workspace id.
func NewID() string {
	return uuid.NewString()
}

// Strict reports whether wizards run in strict mode.
func (m *Manager) Strict() bool { return m.opts.Strict }

// Get returns the workspace for id, creating it if needed, and marks it used.
func (m *Manager) Get(id string) *Workspace {
	now := m.opts.Clock()

	m.mu.Lock()
	ws, ok := m.items[id]
	if !ok {
		mapOpts := m.opts.Map
		mapOpts.Logger = m.log.With(logger.String("workspace", id))
		ws = &Workspace{
			ID:    id,
			state: State{Map: mapflow.New(mapOpts)},
		}
		m.items[id] = ws
		metrics.ActiveWorkspaces.Set(float64(len(m.items)))
	}
	m.mu.Unlock()

	ws.touch(now)
	return ws
}

// Peek returns the workspace for id without creating or touching it.
func (m *Manager) Peek(id string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.items[id]
	return ws, ok
}

// Drop discards the workspace and stops its pending work.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	ws, ok := m.items[id]
	delete(m.items, id)
	metrics.ActiveWorkspaces.Set(float64(len(m.items)))
	m.mu.Unlock()

	if ok {
		ws.close()
	}
}

// Sweep drops workspaces idle for longer than the idle TTL and returns how
// many were removed.
func (m *Manager) Sweep() int {
	now := m.opts.Clock()

	m.mu.Lock()
	var stale []*Workspace
	for id, ws := range m.items {
		if ws.idleSince(now) > m.opts.IdleTTL {
			stale = append(stale, ws)
			delete(m.items, id)
		}
	}
	metrics.ActiveWorkspaces.Set(float64(len(m.items)))
	m.mu.Unlock()

	for _, ws := range stale {
		ws.close()
	}
	if len(stale) > 0 {
		m.log.Debug("workspaces swept", logger.Int("removed", len(stale)))
	}
	return len(stale)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
