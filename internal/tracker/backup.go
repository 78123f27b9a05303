package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/model"
)

// ExportData returns the local dataset in the backup format.
func (s *Service) ExportData(ctx context.Context) ([]byte, error) {
	ds, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return ds.Encode()
}

// ExportFilename is the suggested backup file name for the given day.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("medbuddy-backup-%s.json", now.Format("2006-01-02"))
}

// ImportData replaces the whole local dataset with a backup. The payload must
// hold a users array; absent fever logs or prescriptions import as empty.
// A rejected payload leaves local data untouched.
func (s *Service) ImportData(ctx context.Context, data []byte) (model.Dataset, error) {
	ds, err := model.DecodeImport(data)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("%w: %v", ErrImportRejected, err)
	}
	if err := s.mutate(ctx, func(cur *model.Dataset) error {
		*cur = ds.Clone()
		return nil
	}); err != nil {
		return model.Dataset{}, err
	}
	s.logger.Info("backup imported",
		zap.Int("users", len(ds.Users)),
		zap.Int("feverLogs", len(ds.FeverLogs)),
		zap.Int("prescriptions", len(ds.Prescriptions)))
	return ds, nil
}
