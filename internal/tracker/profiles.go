package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/store"
)

// ListUsers returns all profiles in stored order.
func (s *Service) ListUsers(ctx context.Context) ([]model.Profile, error) {
	return store.Get(ctx, s.store, store.Profiles)
}

// GetUser returns one profile.
func (s *Service) GetUser(ctx context.Context, id string) (model.Profile, error) {
	users, err := s.ListUsers(ctx)
	if err != nil {
		return model.Profile{}, err
	}
	if i := indexOf(users, id); i >= 0 {
		return users[i], nil
	}
	return model.Profile{}, fmt.Errorf("profile %s: %w", id, ErrNotFound)
}

// SaveUser adds a profile, assigning an id and creation time when missing.
func (s *Service) SaveUser(ctx context.Context, p model.Profile) (model.Profile, error) {
	if p.ID == "" {
		p.ID = s.newID()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = s.nowMillis()
	}
	if p.Type == "" {
		p.Type = model.CategoryAdult
	}
	if err := validateProfile(p); err != nil {
		return model.Profile{}, err
	}
	err := s.mutate(ctx, func(ds *model.Dataset) error {
		users, err := insertRecord(ds.Users, p)
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.ID, err)
		}
		ds.Users = users
		return nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// UpdateUser replaces an existing profile.
func (s *Service) UpdateUser(ctx context.Context, p model.Profile) error {
	if err := validateProfile(p); err != nil {
		return err
	}
	return s.mutate(ctx, func(ds *model.Dataset) error {
		users, err := replaceRecord(ds.Users, p)
		if err != nil {
			return fmt.Errorf("profile %s: %w", p.ID, err)
		}
		ds.Users = users
		return nil
	})
}

// DeleteUser removes a profile together with its fever records and
// prescriptions, in one local write. Deleting an unknown id is a no-op.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.mutate(ctx, func(ds *model.Dataset) error {
		ds.Users, _ = removeRecord(ds.Users, id)
		ds.FeverLogs = filterOut(ds.FeverLogs, func(r model.FeverRecord) bool { return r.UserID == id })
		ds.Prescriptions = filterOut(ds.Prescriptions, func(p model.Prescription) bool { return p.UserID == id })
		return nil
	})
}

func validateProfile(p model.Profile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: profile id is required", ErrInvalid)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: profile name is required", ErrInvalid)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: profile type must be %s or %s", ErrInvalid, model.CategoryAdult, model.CategoryKid)
	}
	return nil
}

func filterOut[T any](records []T, drop func(T) bool) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if !drop(r) {
			out = append(out, r)
		}
	}
	return out
}
