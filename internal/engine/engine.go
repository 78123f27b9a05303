// Package engine reconciles the local dataset with the remote snapshot file.
//
// An attempt pulls the remote snapshot, merges it into the local dataset,
// writes the result locally and pushes it back guarded by the fetched
// revision. A revision conflict restarts the attempt once. At most one
// attempt runs at a time, and local mutations never interleave with the
// merge write. Notifications are published only after the engine's locks are
// released, so listeners may call back into it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/notify"
	"github.com/bolasblack/medbuddy/internal/remote"
	"github.com/bolasblack/medbuddy/internal/store"
)

// State is the sync lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateError   State = "error"
)

// maxPasses is the first pass plus one retry after a revision conflict.
const maxPasses = 2

// Status is the observable sync state. It is not persisted.
type Status struct {
	State      State     `json:"state"`
	LastSyncAt time.Time `json:"lastSyncAt,omitzero"`
	LastError  string    `json:"lastError,omitempty"`
}

// Engine runs sync attempts against the configured remote.
type Engine struct {
	store    *store.Store
	notifier *notify.Notifier
	factory  remote.Factory
	logger   *zap.Logger
	timeout  time.Duration
	now      func() time.Time

	// gate is held by a running attempt and by every local mutation, so the
	// merge write and a mutation never interleave.
	gate sync.Mutex

	mu       sync.Mutex
	status   Status
	inFlight bool
	// released is signalled on mu whenever inFlight is cleared.
	released *sync.Cond

	wg sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTimeout bounds every remote call.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an idle engine. Status changes are published on the store's
// notifier.
func New(st *store.Store, factory remote.Factory, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		notifier: st.Notifier(),
		factory:  factory,
		logger:   zap.NewNop(),
		timeout:  remote.DefaultTimeout,
		now:      time.Now,
		status:   Status{State: StateIdle},
	}
	e.released = sync.NewCond(&e.mu)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// SyncNow runs one attempt and returns the resulting status. If an attempt is
// already in flight it returns immediately with the current status.
func (e *Engine) SyncNow(ctx context.Context) Status {
	if !e.begin() {
		return e.Status()
	}
	e.run(context.WithoutCancel(ctx))
	return e.Status()
}

// SyncFresh waits for any attempt in flight, background or not, and then runs
// one of its own, so the result reflects every change made before the call.
func (e *Engine) SyncFresh(ctx context.Context) Status {
	e.mu.Lock()
	for e.inFlight {
		e.released.Wait()
	}
	e.inFlight = true
	e.mu.Unlock()

	e.run(context.WithoutCancel(ctx))
	return e.Status()
}

// Schedule starts an attempt in the background unless one is in flight.
func (e *Engine) Schedule(ctx context.Context) {
	if !e.begin() {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(context.WithoutCancel(ctx))
	}()
}

// Wait blocks until all scheduled attempts have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Mutate applies fn to the local dataset while no attempt is merging, then
// schedules an attempt if anything changed. A mutation issued during an
// attempt waits for it to finish.
func (e *Engine) Mutate(ctx context.Context, fn func(*model.Dataset) error) (bool, error) {
	e.gate.Lock()
	changed, err := e.store.UpdateUnpublished(ctx, fn)
	e.gate.Unlock()
	if err != nil {
		return false, err
	}
	if changed {
		e.notifier.Publish()
		e.Schedule(ctx)
	}
	return changed, nil
}

// Reset waits for any running attempt and returns to idle with no error.
// Used when the sync configuration is removed.
func (e *Engine) Reset() {
	e.gate.Lock()
	e.mu.Lock()
	e.status = Status{State: StateIdle, LastSyncAt: e.status.LastSyncAt}
	e.mu.Unlock()
	e.gate.Unlock()
	e.notifier.Publish()
}

// begin claims the single in-flight slot.
func (e *Engine) begin() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return false
	}
	e.inFlight = true
	return true
}

func (e *Engine) run(ctx context.Context) {
	cfg, err := e.store.SyncConfig(ctx)
	if err != nil {
		e.finish(fmt.Errorf("failed to read sync config: %w", err))
		return
	}
	if cfg == nil {
		e.mu.Lock()
		e.releaseLocked()
		e.mu.Unlock()
		e.logger.Debug("sync skipped: no remote configured")
		return
	}

	e.setSyncing()
	e.logger.Info("sync started", zap.Stringer("remote", cfg))

	adapter, err := e.factory(ctx, *cfg)
	if err != nil {
		e.finish(fmt.Errorf("failed to connect remote: %w", err))
		return
	}

	// The slot is released before the gate, so a mutation waiting on the
	// gate can always schedule its follow-up attempt.
	e.gate.Lock()
	changed, err := e.attempt(ctx, adapter)
	e.settle(err)
	e.gate.Unlock()

	if changed {
		e.notifier.Publish()
	}
	e.notifier.Publish()
}

// attempt runs the fetch, merge and push passes. It reports whether the merge
// changed local data.
func (e *Engine) attempt(ctx context.Context, adapter remote.Adapter) (bool, error) {
	changed := false
	for pass := 0; pass < maxPasses; pass++ {
		fetchCtx, cancel := context.WithTimeout(ctx, e.timeout)
		snap, err := adapter.Fetch(fetchCtx)
		cancel()
		if err != nil {
			return changed, fmt.Errorf("fetch: %w", err)
		}

		remoteData := model.Dataset{}
		if snap.Content != nil {
			remoteData = *snap.Content
		}

		var merged model.Dataset
		wrote, err := e.store.UpdateUnpublished(ctx, func(local *model.Dataset) error {
			merged = Merge(*local, remoteData)
			*local = merged
			return nil
		})
		if err != nil {
			return changed, fmt.Errorf("save merged data: %w", err)
		}
		changed = changed || wrote

		if snap.Content != nil && model.Equal(merged, remoteData) {
			e.logger.Debug("remote already up to date", zap.String("revision", snap.Revision))
			return changed, nil
		}

		pushCtx, cancel := context.WithTimeout(ctx, e.timeout)
		revision, err := adapter.Write(pushCtx, merged, snap.Revision)
		cancel()
		if err == nil {
			e.logger.Debug("pushed snapshot", zap.String("revision", revision))
			return changed, nil
		}
		if errors.Is(err, remote.ErrConflict) && pass+1 < maxPasses {
			e.logger.Info("remote changed during sync, retrying", zap.Error(err))
			continue
		}
		return changed, fmt.Errorf("push: %w", err)
	}
	return changed, nil
}

func (e *Engine) setSyncing() {
	e.mu.Lock()
	e.status = Status{State: StateSyncing, LastSyncAt: e.status.LastSyncAt}
	e.mu.Unlock()
	e.notifier.Publish()
}

// finish records the outcome, releases the in-flight slot and publishes.
func (e *Engine) finish(err error) {
	e.settle(err)
	e.notifier.Publish()
}

// settle records the outcome and releases the in-flight slot.
func (e *Engine) settle(err error) {
	e.mu.Lock()
	if err != nil {
		e.status = Status{State: StateError, LastSyncAt: e.status.LastSyncAt, LastError: err.Error()}
	} else {
		e.status = Status{State: StateIdle, LastSyncAt: e.now()}
	}
	e.releaseLocked()
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("sync failed", zap.Error(err))
	} else {
		e.logger.Info("sync finished")
	}
}

func (e *Engine) releaseLocked() {
	e.inFlight = false
	e.released.Broadcast()
}
