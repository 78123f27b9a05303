// Package store persists the local dataset and sync configuration, and
// announces every change through a notifier.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/notify"
	"github.com/bolasblack/medbuddy/internal/util"
)

// Stable keys of the local persistence boundary.
const (
	KeyUsers         = "users"
	KeyFeverLogs     = "fever_logs"
	KeyPrescriptions = "prescriptions"
	KeySyncConfig    = "sync_config"
)

// Collection describes one typed collection of the dataset.
type Collection[T model.Record] struct {
	Key string
	get func(*model.Dataset) []T
	set func(*model.Dataset, []T)
}

var (
	Profiles = Collection[model.Profile]{
		Key: KeyUsers,
		get: func(d *model.Dataset) []model.Profile { return d.Users },
		set: func(d *model.Dataset, v []model.Profile) { d.Users = v },
	}
	FeverRecords = Collection[model.FeverRecord]{
		Key: KeyFeverLogs,
		get: func(d *model.Dataset) []model.FeverRecord { return d.FeverLogs },
		set: func(d *model.Dataset, v []model.FeverRecord) { d.FeverLogs = v },
	}
	Prescriptions = Collection[model.Prescription]{
		Key: KeyPrescriptions,
		get: func(d *model.Dataset) []model.Prescription { return d.Prescriptions },
		set: func(d *model.Dataset, v []model.Prescription) { d.Prescriptions = v },
	}
)

// Store is the single writer of the local dataset. Every write replaces the
// whole dataset atomically; reads never see a partial write.
type Store struct {
	backend  Backend
	notifier *notify.Notifier
	logger   *zap.Logger
	lockPath string
	mu       sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithProcessLock makes every write hold an advisory lock on path, so
// processes sharing a data directory do not lose each other's updates.
func WithProcessLock(path string) Option {
	return func(s *Store) { s.lockPath = path }
}

// New creates a Store. A nil notifier gets a private one.
func New(backend Backend, notifier *notify.Notifier, logger *zap.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.New(logger)
	}
	s := &Store{backend: backend, notifier: notifier, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// processLock takes the cross-process lock when one is configured.
func (s *Store) processLock() (util.Unlock, error) {
	if s.lockPath == "" {
		return func() error { return nil }, nil
	}
	unlock, err := util.Lock(s.lockPath)
	if err != nil {
		return nil, fmt.Errorf("failed to lock data directory: %w", err)
	}
	return unlock, nil
}

// Notifier returns the notifier that receives change signals.
func (s *Store) Notifier() *notify.Notifier {
	return s.notifier
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Snapshot returns the current dataset.
func (s *Store) Snapshot(ctx context.Context) (model.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, _, err := s.loadLocked(ctx)
	return ds, err
}

// Replace atomically replaces all three collections. It reports whether
// anything changed; observers are notified only then.
func (s *Store) Replace(ctx context.Context, ds model.Dataset) (bool, error) {
	return s.Update(ctx, func(cur *model.Dataset) error {
		*cur = ds.Clone()
		return nil
	})
}

// Update applies fn to a copy of the current dataset and persists the result
// in one atomic write. An error from fn aborts without writing.
func (s *Store) Update(ctx context.Context, fn func(*model.Dataset) error) (bool, error) {
	changed, err := s.update(ctx, fn)
	if err != nil {
		return false, err
	}
	if changed {
		s.notifier.Publish()
	}
	return changed, nil
}

// UpdateUnpublished is Update without the change notification. Callers that
// hold their own locks use it and publish once those are released, so a
// listener may write to the store again.
func (s *Store) UpdateUnpublished(ctx context.Context, fn func(*model.Dataset) error) (bool, error) {
	return s.update(ctx, fn)
}

func (s *Store) update(ctx context.Context, fn func(*model.Dataset) error) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.processLock()
	if err != nil {
		return false, err
	}
	defer func() { _ = unlock() }()

	cur, raw, err := s.loadLocked(ctx)
	if err != nil {
		return false, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return false, err
	}

	batch, err := encodeChanged(next, raw)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}
	if err := s.backend.Commit(ctx, batch); err != nil {
		return false, fmt.Errorf("failed to save dataset: %w", err)
	}
	s.logger.Debug("dataset saved", zap.Int("keys", len(batch)))
	return true, nil
}

// Get returns the records of one collection in stored order.
func Get[T model.Record](ctx context.Context, s *Store, c Collection[T]) ([]T, error) {
	ds, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return c.get(&ds), nil
}

// PutAll replaces one collection wholesale.
func PutAll[T model.Record](ctx context.Context, s *Store, c Collection[T], records []T) error {
	_, err := s.Update(ctx, func(ds *model.Dataset) error {
		c.set(ds, append([]T{}, records...))
		return nil
	})
	return err
}

// SyncConfig returns the stored sync configuration, or nil if none is set.
func (s *Store) SyncConfig(ctx context.Context) (*model.SyncConfig, error) {
	data, err := s.backend.Load(ctx, KeySyncConfig)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg model.SyncConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse sync config: %w", err)
	}
	return &cfg, nil
}

// SetSyncConfig stores cfg, replacing any previous configuration.
func (s *Store) SetSyncConfig(ctx context.Context, cfg model.SyncConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sync config: %w", err)
	}
	return s.commitConfig(ctx, data)
}

// ClearSyncConfig removes the sync configuration.
func (s *Store) ClearSyncConfig(ctx context.Context) error {
	return s.commitConfig(ctx, nil)
}

func (s *Store) commitConfig(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	unlock, err := s.processLock()
	if err != nil {
		return err
	}
	defer func() { _ = unlock() }()

	if err := s.backend.Commit(ctx, Batch{KeySyncConfig: data}); err != nil {
		return fmt.Errorf("failed to save sync config: %w", err)
	}
	return nil
}

// loadLocked reads all collections and returns the raw bytes per key
// alongside the decoded dataset.
func (s *Store) loadLocked(ctx context.Context) (model.Dataset, map[string][]byte, error) {
	raw := make(map[string][]byte, 3)
	var ds model.Dataset
	var err error
	if ds.Users, err = loadCollection[model.Profile](ctx, s.backend, Profiles.Key, raw); err != nil {
		return model.Dataset{}, nil, err
	}
	if ds.FeverLogs, err = loadCollection[model.FeverRecord](ctx, s.backend, FeverRecords.Key, raw); err != nil {
		return model.Dataset{}, nil, err
	}
	if ds.Prescriptions, err = loadCollection[model.Prescription](ctx, s.backend, Prescriptions.Key, raw); err != nil {
		return model.Dataset{}, nil, err
	}
	return ds.Normalized(), raw, nil
}

func loadCollection[T model.Record](ctx context.Context, b Backend, key string, raw map[string][]byte) ([]T, error) {
	data, err := b.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	raw[key] = data
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// encodeChanged returns a batch holding only the collections whose encoding
// differs from what is stored.
func encodeChanged(ds model.Dataset, raw map[string][]byte) (Batch, error) {
	ds = ds.Normalized()
	values := map[string]any{
		KeyUsers:         ds.Users,
		KeyFeverLogs:     ds.FeverLogs,
		KeyPrescriptions: ds.Prescriptions,
	}
	batch := Batch{}
	for key, v := range values {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", key, err)
		}
		if old, ok := raw[key]; ok && bytes.Equal(old, data) {
			continue
		}
		// An absent key and an empty collection are the same dataset.
		if _, ok := raw[key]; !ok && bytes.Equal(data, []byte("[]")) {
			continue
		}
		batch[key] = data
	}
	return batch, nil
}
