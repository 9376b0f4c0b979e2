// Package memory implements ports.RoomDirectory as an in-process
// map of *services.Room, grounded on the teacher's MemoryPeerRepository
// mutex-guarded map idiom plus an eviction ticker.
package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/internal/core/ports"
	"github.com/Akitash/opentogethertube/internal/core/services"
	"github.com/Akitash/opentogethertube/pkg/distributed"
)

const (
	evictionInterval = 30 * time.Second
	leaseTTL         = 10 * time.Second
	leasePrefix      = "room-lease:"
)

// RoomManager owns every Room this process has loaded. It is the sole
// place a Room is constructed, so there is never more than one *Room
// instance for a given name on this node.
//
// lockManager is optional: when set, a cache-miss first tries a short-TTL
// Redis lease for the room name before constructing it, addressing the
// multi-node leasing concern the single-process engine otherwise leaves
// open. A lease failure never blocks loading the room — it's a best-effort
// hint to the rest of the cluster, not a correctness requirement.
type RoomManager struct {
	mu    sync.Mutex
	rooms map[domain.RoomName]*services.Room

	newDeps     func(name domain.RoomName) services.Deps
	logger      *zap.SugaredLogger
	lockManager *distributed.LockManager
	metrics     *services.RoomMetrics

	stopCh chan struct{}
}

func NewRoomManager(newDeps func(name domain.RoomName) services.Deps, logger *zap.SugaredLogger) *RoomManager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	m := &RoomManager{
		rooms:   make(map[domain.RoomName]*services.Room),
		newDeps: newDeps,
		logger:  logger,
		metrics: services.NewNoopRoomMetrics(),
		stopCh:  make(chan struct{}),
	}
	go m.evictStaleLoop()
	return m
}

// WithLeasing enables the best-effort distributed room-ownership lease
// described in SPEC_FULL.md §9.2. Returns m for chaining at construction.
func (m *RoomManager) WithLeasing(lm *distributed.LockManager) *RoomManager {
	m.lockManager = lm
	return m
}

// WithMetrics drives otto_rooms_active from this manager's own load/evict
// lifecycle, rather than from each Room's construction — a Room has no
// way to observe its own eviction. Returns m for chaining at construction.
func (m *RoomManager) WithMetrics(metrics *services.RoomMetrics) *RoomManager {
	m.metrics = metrics
	return m
}

// GetRoom implements ports.RoomDirectory: return the loaded Room, or
// construct and load a fresh one on first reference (spec §6: a room is
// created lazily the first time any client joins it).
func (m *RoomManager) GetRoom(ctx context.Context, name domain.RoomName) (ports.RoomHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if room, ok := m.rooms[name]; ok {
		return room, nil
	}

	m.acquireLease(ctx, name)

	deps := m.newDeps(name)
	deps.Seed = m.loadSeed(ctx, name, deps)

	room := services.NewRoom(name, deps)
	m.rooms[name] = room
	m.metrics.RoomLoaded()
	m.logger.Infow("room loaded", "room", string(name), "warm_started", deps.Seed != nil)
	return room, nil
}

// loadSeed best-effort warm-starts a freshly-loaded room from whatever
// this node's snapshot key for name last held on the bus — either a
// still-live snapshot from before an eviction, or one a restore pushed
// back in from backup storage (SPEC_FULL.md §9.1). A miss or decode
// failure just means the room loads empty, never an error.
func (m *RoomManager) loadSeed(ctx context.Context, name domain.RoomName, deps services.Deps) *services.Seed {
	if deps.Bus == nil {
		return nil
	}
	raw, found, err := deps.Bus.Get(ctx, snapshotKeyForRoom(name))
	if err != nil || !found {
		return nil
	}
	seed, err := services.SeedFromSnapshotJSON(raw)
	if err != nil {
		m.logger.Warnw("failed to decode room snapshot seed", "room", string(name), "error", err)
		return nil
	}
	return seed
}

func snapshotKeyForRoom(name domain.RoomName) string {
	return "room-sync:" + string(name)
}

// acquireLease tries, best-effort, to claim this node as the lease holder
// for name. Failure (or no lockManager configured) just means the room
// loads anyway — spec.md does not require hard mutual exclusion.
func (m *RoomManager) acquireLease(ctx context.Context, name domain.RoomName) {
	if m.lockManager == nil {
		return
	}
	lock := m.lockManager.AcquireLock(string(name), leaseTTL)
	ok, err := lock.TryLock(ctx)
	if err != nil {
		m.logger.Warnw("room lease acquisition failed", "room", string(name), "error", err)
		return
	}
	if !ok {
		m.logger.Warnw("room lease already held by another node", "room", string(name))
	}
}

// ListLoaded returns the names of every room currently loaded on this
// node, for the snapshot backup scheduler to iterate.
func (m *RoomManager) ListLoaded() []domain.RoomName {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]domain.RoomName, 0, len(m.rooms))
	for name := range m.rooms {
		names = append(names, name)
	}
	return names
}

// Close stops the eviction loop and unloads every room.
func (m *RoomManager) Close(ctx context.Context) {
	close(m.stopCh)

	m.mu.Lock()
	rooms := make([]*services.Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.rooms = make(map[domain.RoomName]*services.Room)
	m.mu.Unlock()

	for _, room := range rooms {
		room.OnBeforeUnload(ctx)
	}
}

func (m *RoomManager) evictStaleLoop() {
	ticker := time.NewTicker(evictionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evictStale()
		case <-m.stopCh:
			return
		}
	}
}

// evictStale drops every room that IsStale per spec §4.D, publishing the
// unload notification before forgetting it.
func (m *RoomManager) evictStale() {
	now := time.Now()

	m.mu.Lock()
	var stale []*services.Room
	for name, room := range m.rooms {
		if room.IsStale(now) {
			stale = append(stale, room)
			delete(m.rooms, name)
		}
	}
	m.mu.Unlock()

	for _, room := range stale {
		m.logger.Infow("room stale, unloading", "room", string(room.Name()))
		room.OnBeforeUnload(context.Background())
		m.metrics.RoomUnloaded()
	}
}
