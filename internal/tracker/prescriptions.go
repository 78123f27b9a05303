package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/store"
)

// Prescriptions returns every prescription, newest first.
func (s *Service) Prescriptions(ctx context.Context) ([]model.Prescription, error) {
	all, err := store.Get(ctx, s.store, store.Prescriptions)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(all)
	return all, nil
}

// PrescriptionsFor returns one profile's prescriptions, newest first.
func (s *Service) PrescriptionsFor(ctx context.Context, profileID string) ([]model.Prescription, error) {
	all, err := s.Prescriptions(ctx)
	if err != nil {
		return nil, err
	}
	return filterOut(all, func(p model.Prescription) bool { return p.UserID != profileID }), nil
}

// SearchPrescriptions matches query case-insensitively against the medicine,
// illness, prescriber, and the owning profile's name and type. An empty query
// returns everything.
func (s *Service) SearchPrescriptions(ctx context.Context, query string) ([]model.Prescription, error) {
	ds, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]model.Profile, len(ds.Users))
	for _, u := range ds.Users {
		owners[u.ID] = u
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := filterOut(ds.Prescriptions, func(p model.Prescription) bool {
		if q == "" {
			return false
		}
		owner := owners[p.UserID]
		for _, field := range []string{p.MedicineName, p.Illness, p.PrescribedBy, owner.Name, string(owner.Type)} {
			if strings.Contains(strings.ToLower(field), q) {
				return false
			}
		}
		return true
	})
	sortNewestFirst(out)
	return out, nil
}

// SavePrescription adds an active prescription. Illness defaults to
// "General".
func (s *Service) SavePrescription(ctx context.Context, p model.Prescription) (model.Prescription, error) {
	if p.ID == "" {
		p.ID = s.newID()
	}
	if p.Timestamp == 0 {
		p.Timestamp = s.nowMillis()
	}
	if strings.TrimSpace(p.Illness) == "" {
		p.Illness = model.DefaultIllness
	}
	p.IsActive = true
	if err := validatePrescription(p); err != nil {
		return model.Prescription{}, err
	}
	err := s.mutate(ctx, func(ds *model.Dataset) error {
		list, err := insertRecord(ds.Prescriptions, p)
		if err != nil {
			return fmt.Errorf("prescription %s: %w", p.ID, err)
		}
		ds.Prescriptions = list
		return nil
	})
	if err != nil {
		return model.Prescription{}, err
	}
	return p, nil
}

// UpdatePrescription replaces an existing prescription.
func (s *Service) UpdatePrescription(ctx context.Context, p model.Prescription) error {
	if strings.TrimSpace(p.Illness) == "" {
		p.Illness = model.DefaultIllness
	}
	if err := validatePrescription(p); err != nil {
		return err
	}
	return s.mutate(ctx, func(ds *model.Dataset) error {
		list, err := replaceRecord(ds.Prescriptions, p)
		if err != nil {
			return fmt.Errorf("prescription %s: %w", p.ID, err)
		}
		ds.Prescriptions = list
		return nil
	})
}

// TogglePrescription flips the active flag and returns the new record.
func (s *Service) TogglePrescription(ctx context.Context, id string) (model.Prescription, error) {
	var toggled model.Prescription
	err := s.mutate(ctx, func(ds *model.Dataset) error {
		i := indexOf(ds.Prescriptions, id)
		if i < 0 {
			return fmt.Errorf("prescription %s: %w", id, ErrNotFound)
		}
		ds.Prescriptions[i].IsActive = !ds.Prescriptions[i].IsActive
		toggled = ds.Prescriptions[i]
		return nil
	})
	if err != nil {
		return model.Prescription{}, err
	}
	return toggled, nil
}

// DeletePrescription removes a prescription. Unknown ids are a no-op.
func (s *Service) DeletePrescription(ctx context.Context, id string) error {
	return s.mutate(ctx, func(ds *model.Dataset) error {
		ds.Prescriptions, _ = removeRecord(ds.Prescriptions, id)
		return nil
	})
}

func validatePrescription(p model.Prescription) error {
	if p.ID == "" {
		return fmt.Errorf("%w: prescription id is required", ErrInvalid)
	}
	if p.UserID == "" {
		return fmt.Errorf("%w: prescription needs a profile", ErrInvalid)
	}
	if strings.TrimSpace(p.MedicineName) == "" {
		return fmt.Errorf("%w: medicine name is required", ErrInvalid)
	}
	return nil
}

func sortNewestFirst(list []model.Prescription) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Timestamp > list[j].Timestamp })
}
