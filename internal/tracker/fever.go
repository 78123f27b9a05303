package tracker

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/store"
)

// FeverThreshold is the reading (°F) at or above which a summary reports a
// fever.
const FeverThreshold = 100.4

// FeverSummary describes one profile's readings.
type FeverSummary struct {
	Count  int
	Latest *model.FeverRecord
	Peak   *model.FeverRecord
	// Series holds the readings oldest first, for charting.
	Series   []model.FeverRecord
	HasFever bool
}

// FeverRecords returns a profile's readings, newest first.
func (s *Service) FeverRecords(ctx context.Context, profileID string) ([]model.FeverRecord, error) {
	all, err := store.Get(ctx, s.store, store.FeverRecords)
	if err != nil {
		return nil, err
	}
	out := filterOut(all, func(r model.FeverRecord) bool { return r.UserID != profileID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

// AllFeverRecords returns every reading, newest first.
func (s *Service) AllFeverRecords(ctx context.Context) ([]model.FeverRecord, error) {
	all, err := store.Get(ctx, s.store, store.FeverRecords)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp > all[j].Timestamp })
	return all, nil
}

// SaveFeverRecord adds a reading, assigning an id and timestamp when missing.
func (s *Service) SaveFeverRecord(ctx context.Context, r model.FeverRecord) (model.FeverRecord, error) {
	if r.ID == "" {
		r.ID = s.newID()
	}
	if r.Timestamp == 0 {
		r.Timestamp = s.nowMillis()
	}
	if err := validateFever(r); err != nil {
		return model.FeverRecord{}, err
	}
	err := s.mutate(ctx, func(ds *model.Dataset) error {
		logs, err := insertRecord(ds.FeverLogs, r)
		if err != nil {
			return fmt.Errorf("fever record %s: %w", r.ID, err)
		}
		ds.FeverLogs = logs
		return nil
	})
	if err != nil {
		return model.FeverRecord{}, err
	}
	return r, nil
}

// UpdateFeverRecord replaces an existing reading.
func (s *Service) UpdateFeverRecord(ctx context.Context, r model.FeverRecord) error {
	if err := validateFever(r); err != nil {
		return err
	}
	return s.mutate(ctx, func(ds *model.Dataset) error {
		logs, err := replaceRecord(ds.FeverLogs, r)
		if err != nil {
			return fmt.Errorf("fever record %s: %w", r.ID, err)
		}
		ds.FeverLogs = logs
		return nil
	})
}

// DeleteFeverRecord removes a reading. Unknown ids are a no-op.
func (s *Service) DeleteFeverRecord(ctx context.Context, id string) error {
	return s.mutate(ctx, func(ds *model.Dataset) error {
		ds.FeverLogs, _ = removeRecord(ds.FeverLogs, id)
		return nil
	})
}

// FeverSummary reports the latest and peak readings of a profile.
func (s *Service) FeverSummary(ctx context.Context, profileID string) (FeverSummary, error) {
	records, err := s.FeverRecords(ctx, profileID)
	if err != nil {
		return FeverSummary{}, err
	}
	summary := FeverSummary{Count: len(records)}
	if len(records) == 0 {
		return summary, nil
	}

	latest := records[0]
	summary.Latest = &latest
	summary.HasFever = latest.Temperature >= FeverThreshold

	peak := records[0]
	for _, r := range records[1:] {
		if r.Temperature > peak.Temperature {
			peak = r
		}
	}
	summary.Peak = &peak

	summary.Series = make([]model.FeverRecord, len(records))
	for i, r := range records {
		summary.Series[len(records)-1-i] = r
	}
	return summary, nil
}

func validateFever(r model.FeverRecord) error {
	if r.ID == "" {
		return fmt.Errorf("%w: fever record id is required", ErrInvalid)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: fever record needs a profile", ErrInvalid)
	}
	if math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) || r.Temperature <= 0 {
		return fmt.Errorf("%w: temperature must be a positive number", ErrInvalid)
	}
	return nil
}
