// Package tracker is the household health tracker's application service:
// profiles, fever logs, prescriptions, backups and sync control.
//
// Every mutation persists locally, notifies observers and schedules a sync
// attempt.
package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/engine"
	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/notify"
	"github.com/bolasblack/medbuddy/internal/store"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateID    = errors.New("record id already exists")
	ErrInvalid        = errors.New("invalid record")
	ErrImportRejected = errors.New("import rejected")
)

// Service implements the operations offered to the presentation layer.
type Service struct {
	store  *store.Store
	engine *engine.Engine
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock overrides time.Now for defaulted timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides uuid generation for new records.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// New creates a Service.
func New(st *store.Store, eng *engine.Engine, opts ...Option) *Service {
	s := &Service{
		store:  st,
		engine: eng,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a change listener for dataset and sync status
// changes. The listener must not mutate synchronously.
func (s *Service) Subscribe(fn notify.Listener) (unsubscribe func()) {
	return s.store.Notifier().Subscribe(fn)
}

// Snapshot returns the whole local dataset.
func (s *Service) Snapshot(ctx context.Context) (model.Dataset, error) {
	return s.store.Snapshot(ctx)
}

func (s *Service) nowMillis() int64 {
	return s.now().UnixMilli()
}

func (s *Service) mutate(ctx context.Context, fn func(*model.Dataset) error) error {
	_, err := s.engine.Mutate(ctx, fn)
	return err
}

// insertRecord appends r, rejecting a duplicate id.
func insertRecord[T model.Record](records []T, r T) ([]T, error) {
	if indexOf(records, r.RecordID()) >= 0 {
		return nil, ErrDuplicateID
	}
	return append(records, r), nil
}

// replaceRecord swaps the record with r's id in place.
func replaceRecord[T model.Record](records []T, r T) ([]T, error) {
	i := indexOf(records, r.RecordID())
	if i < 0 {
		return nil, ErrNotFound
	}
	records[i] = r
	return records, nil
}

// removeRecord drops the record with id, reporting whether it existed.
func removeRecord[T model.Record](records []T, id string) ([]T, bool) {
	i := indexOf(records, id)
	if i < 0 {
		return records, false
	}
	return append(records[:i:i], records[i+1:]...), true
}

func indexOf[T model.Record](records []T, id string) int {
	for i, r := range records {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}
