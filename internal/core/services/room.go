// Package services implements the Room engine: the authoritative,
// in-memory state machine for one room (queue, playback clock,
// votes, roles, dirty-tracked sync, staleness-based unload).
package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Akitash/opentogethertube/internal/core/domain"
	"github.com/Akitash/opentogethertube/internal/core/ports"
	"github.com/Akitash/opentogethertube/pkg/circuitbreaker"
	"github.com/Akitash/opentogethertube/pkg/retry"
)

const (
	defaultSyncCoalesceWindow = 50 * time.Millisecond
	defaultStaleTimeout       = 240 * time.Second
	defaultTickInterval       = 1 * time.Second
	defaultRequestQueueDepth  = 64
)

// requestEnvelope is what Submit sends into the room's single worker
// goroutine; done carries back the handler's result.
type requestEnvelope struct {
	ctx  context.Context
	req  domain.Request
	done chan error
}

// Room is the Room engine: one goroutine serializes every request and
// every tick for a single room, so no two handlers for the same room ever
// run concurrently (spec §5). It implements ports.RoomHandle.
type Room struct {
	state *domain.State

	bus       ports.MessageBus
	extractor ports.VideoExtractor
	users     ports.UserStore
	metrics   *RoomMetrics
	logger    *zap.SugaredLogger

	busBreaker *circuitbreaker.CircuitBreaker
	busRetry   retry.Config

	syncCoalesceWindow time.Duration
	staleTimeout       time.Duration
	tickInterval       time.Duration

	reqCh  chan requestEnvelope
	syncC  chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}

	syncArmed bool
	syncTimer *time.Timer
}

// Deps bundles Room's external collaborators, all of them out-of-scope
// collaborators per spec §1 (bus aside, which is in-scope as the contract,
// not as an implementation). The tuning fields mirror pkg/config's Room
// section; a zero value falls back to the engine's own default.
type Deps struct {
	Bus       ports.MessageBus
	Extractor ports.VideoExtractor
	Users     ports.UserStore
	Metrics   *RoomMetrics
	Logger    *zap.SugaredLogger

	SyncCoalesceWindow time.Duration
	StaleTimeout       time.Duration
	TickInterval       time.Duration
	RequestQueueDepth  int

	// Seed best-effort warm-starts room content (title, description,
	// visibility, queue mode, current source, queue, playback position)
	// from a prior snapshot, per SPEC_FULL.md §9.1. Grants are not seeded.
	// Live participants/votes are never seeded; those only ever come from
	// clients actually rejoining.
	Seed *Seed
}

// Seed is the subset of a room's last-synced snapshot worth warm-starting
// a freshly constructed Room from.
type Seed struct {
	Title            string
	Description      string
	Visibility       domain.Visibility
	QueueMode        domain.QueueMode
	CurrentSource    *domain.Video
	Queue            []domain.Video
	PlaybackPosition float64
}

// NewRoom constructs a Room and starts its serializing worker goroutine.
// Callers (the RoomManager) own the single instance per room name.
func NewRoom(name domain.RoomName, deps Deps) *Room {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Metrics == nil {
		deps.Metrics = NewNoopRoomMetrics()
	}
	if deps.SyncCoalesceWindow <= 0 {
		deps.SyncCoalesceWindow = defaultSyncCoalesceWindow
	}
	if deps.StaleTimeout <= 0 {
		deps.StaleTimeout = defaultStaleTimeout
	}
	if deps.TickInterval <= 0 {
		deps.TickInterval = defaultTickInterval
	}
	if deps.RequestQueueDepth <= 0 {
		deps.RequestQueueDepth = defaultRequestQueueDepth
	}

	now := time.Now()
	state := domain.NewState(name, now)
	if deps.Seed != nil {
		applySeed(state, deps.Seed)
	}

	r := &Room{
		state:              state,
		bus:                deps.Bus,
		extractor:          deps.Extractor,
		users:              deps.Users,
		metrics:            deps.Metrics,
		logger:             deps.Logger.With("room", string(name)),
		busBreaker:         circuitbreaker.New(circuitbreaker.DefaultConfig()),
		busRetry:           retry.DefaultConfig(),
		syncCoalesceWindow: deps.SyncCoalesceWindow,
		staleTimeout:       deps.StaleTimeout,
		tickInterval:       deps.TickInterval,
		reqCh:              make(chan requestEnvelope, deps.RequestQueueDepth),
		syncC:              make(chan struct{}, 1),
		stopCh:             make(chan struct{}),
		doneCh:             make(chan struct{}),
	}
	go r.run()
	return r
}

func applySeed(state *domain.State, seed *Seed) {
	state.Title = seed.Title
	state.Description = seed.Description
	if seed.Visibility != "" {
		state.Visibility = seed.Visibility
	}
	if seed.QueueMode != "" {
		state.QueueMode = seed.QueueMode
	}
	state.CurrentSource = seed.CurrentSource
	state.Queue = seed.Queue
	state.PlaybackPosition = seed.PlaybackPosition
}

// Name implements ports.RoomHandle.
func (r *Room) Name() domain.RoomName { return r.state.Name }

// Submit implements ports.RoomHandle: enqueue req and block for the
// result, honoring ctx cancellation on both ends of the round trip.
func (r *Room) Submit(ctx context.Context, req domain.Request) error {
	select {
	case <-r.stopCh:
		return domain.ErrRoomNotFound
	default:
	}
	done := make(chan error, 1)
	select {
	case r.reqCh <- requestEnvelope{ctx: ctx, req: req, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopCh:
		return domain.ErrRoomNotFound
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopCh:
		return domain.ErrRoomNotFound
	}
}

// IsStale reports whether the room has had no participants long enough
// for the RoomManager's eviction loop to drop it.
func (r *Room) IsStale(now time.Time) bool {
	return r.state.IsStale(now, r.staleTimeout)
}

// OnBeforeUnload publishes an unload event so every node's ClientManager
// can disconnect its locally-joined clients, then stops the worker.
func (r *Room) OnBeforeUnload(ctx context.Context) {
	msg := map[string]any{"action": "unload"}
	r.publishJSON(ctx, channelForRoom(r.state.Name), msg)
	close(r.stopCh)
	<-r.doneCh
}

// run is the single serializing goroutine for this room: every request,
// every debounced sync, and every periodic tick funnel through here so
// state mutation is never concurrent within a room (spec §5).
func (r *Room) run() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-r.reqCh:
			err := r.processRequest(env.ctx, env.req)
			env.done <- err
		case <-r.syncC:
			r.syncArmed = false
			r.sync(context.Background())
		case <-ticker.C:
			r.tick(time.Now())
		case <-r.stopCh:
			return
		}
	}
}

// markDirty records a changed field and arms the trailing-edge coalesced
// sync timer if it isn't already armed (DESIGN NOTES: debounced sync).
func (r *Room) markDirty(field string) {
	r.state.MarkDirty(field)
	if r.syncArmed {
		return
	}
	r.syncArmed = true
	r.syncTimer = time.AfterFunc(r.syncCoalesceWindow, func() {
		select {
		case r.syncC <- struct{}{}:
		default:
		}
	})
}

func channelForRoom(name domain.RoomName) string {
	return "room:" + string(name)
}

func snapshotKeyForRoom(name domain.RoomName) string {
	return "room-sync:" + string(name)
}
