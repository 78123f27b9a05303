package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolasblack/medbuddy/internal/engine"
	"github.com/bolasblack/medbuddy/internal/model"
	"github.com/bolasblack/medbuddy/internal/remote"
	"github.com/bolasblack/medbuddy/internal/store"
)

var testNow = time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	remote *remote.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, err := store.OpenFileBackend(afero.NewMemMapFs(), "/data")
	require.NoError(t, err)
	st := store.New(backend, nil, nil)
	mem := remote.NewMemory()
	eng := engine.New(st, func(ctx context.Context, cfg model.SyncConfig) (remote.Adapter, error) {
		return mem, nil
	})
	seq := 0
	svc := New(st, eng,
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		}),
	)
	t.Cleanup(svc.WaitForSync)
	return &fixture{svc: svc, remote: mem}
}

func TestSaveUser_Defaults(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)
	assert.Equal(t, "id-1", p.ID)
	assert.Equal(t, testNow.UnixMilli(), p.CreatedAt)

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Profile{p}, users)
}

func TestSaveUser_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.SaveUser(ctx, model.Profile{Name: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.SaveUser(ctx, model.Profile{Name: "X", Type: "Pet"})
	assert.ErrorIs(t, err, ErrInvalid)

	_, err = f.svc.SaveUser(ctx, model.Profile{ID: "u1", Name: "A"})
	require.NoError(t, err)
	_, err = f.svc.SaveUser(ctx, model.Profile{ID: "u1", Name: "B"})
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)

	p.Name = "Asha R"
	require.NoError(t, f.svc.UpdateUser(ctx, p))
	got, err := f.svc.GetUser(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha R", got.Name)

	err = f.svc.UpdateUser(ctx, model.Profile{ID: "missing", Name: "x", Type: model.CategoryAdult})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUser_Cascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	asha, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)
	ravi, err := f.svc.SaveUser(ctx, model.Profile{Name: "Ravi"})
	require.NoError(t, err)

	_, err = f.svc.SaveFeverRecord(ctx, model.FeverRecord{UserID: asha.ID, Temperature: 101})
	require.NoError(t, err)
	_, err = f.svc.SaveFeverRecord(ctx, model.FeverRecord{UserID: ravi.ID, Temperature: 99})
	require.NoError(t, err)
	_, err = f.svc.SavePrescription(ctx, model.Prescription{UserID: asha.ID, MedicineName: "Syrup"})
	require.NoError(t, err)
	_, err = f.svc.SavePrescription(ctx, model.Prescription{UserID: ravi.ID, MedicineName: "Tablet"})
	require.NoError(t, err)

	var published int
	unsubscribe := f.svc.Subscribe(func() { published++ })
	require.NoError(t, f.svc.DeleteUser(ctx, asha.ID))
	unsubscribe()
	assert.Equal(t, 1, published, "cascade is one local write")

	ds, err := f.svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Profile{ravi}, ds.Users)
	for _, r := range ds.FeverLogs {
		assert.NotEqual(t, asha.ID, r.UserID)
	}
	for _, p := range ds.Prescriptions {
		assert.NotEqual(t, asha.ID, p.UserID)
	}
	assert.Len(t, ds.FeverLogs, 1)
	assert.Len(t, ds.Prescriptions, 1)
}

func TestFeverRecords_NewestFirstAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)

	for i, temp := range []float64{99.1, 102.4, 100.9} {
		_, err := f.svc.SaveFeverRecord(ctx, model.FeverRecord{UserID: u.ID, Temperature: temp, Timestamp: int64(1000 * (i + 1))})
		require.NoError(t, err)
	}
	_, err = f.svc.SaveFeverRecord(ctx, model.FeverRecord{UserID: "someone-else", Temperature: 104, Timestamp: 9999})
	require.NoError(t, err)

	records, err := f.svc.FeverRecords(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3000), records[0].Timestamp)
	assert.Equal(t, int64(1000), records[2].Timestamp)

	summary, err := f.svc.FeverSummary(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	require.NotNil(t, summary.Latest)
	assert.Equal(t, 100.9, summary.Latest.Temperature)
	assert.True(t, summary.HasFever)
	require.NotNil(t, summary.Peak)
	assert.Equal(t, 102.4, summary.Peak.Temperature)
	assert.Equal(t, int64(1000), summary.Series[0].Timestamp)

	empty, err := f.svc.FeverSummary(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.Count)
	assert.Nil(t, empty.Latest)
}

func TestSaveFeverRecord_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SaveFeverRecord(ctx, model.FeverRecord{Temperature: 100})
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = f.svc.SaveFeverRecord(ctx, model.FeverRecord{UserID: "u", Temperature: -1})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestPrescriptions_DefaultsToggleSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	kid, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)
	adult, err := f.svc.SaveUser(ctx, model.Profile{Name: "Ravi", Type: model.CategoryAdult})
	require.NoError(t, err)

	p1, err := f.svc.SavePrescription(ctx, model.Prescription{UserID: kid.ID, MedicineName: "Paracetamol syrup", PrescribedBy: "Dr. Rao", Timestamp: 100})
	require.NoError(t, err)
	assert.Equal(t, model.DefaultIllness, p1.Illness)
	assert.True(t, p1.IsActive)

	p2, err := f.svc.SavePrescription(ctx, model.Prescription{UserID: adult.ID, MedicineName: "Cetirizine", Illness: "Allergy", Timestamp: 200})
	require.NoError(t, err)

	_, err = f.svc.SavePrescription(ctx, model.Prescription{UserID: adult.ID})
	assert.ErrorIs(t, err, ErrInvalid)

	all, err := f.svc.Prescriptions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, p2.ID, all[0].ID, "newest first")

	toggled, err := f.svc.TogglePrescription(ctx, p1.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	_, err = f.svc.TogglePrescription(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{p2.ID, p1.ID}},
		{"PARACETAMOL", []string{p1.ID}},
		{"allergy", []string{p2.ID}},
		{"rao", []string{p1.ID}},
		{"ravi", []string{p2.ID}},
		{"kid", []string{p1.ID}},
		{"insulin", nil},
	}
	for _, tt := range tests {
		t.Run("search "+tt.query, func(t *testing.T) {
			got, err := f.svc.SearchPrescriptions(ctx, tt.query)
			require.NoError(t, err)
			var ids []string
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	forKid, err := f.svc.PrescriptionsFor(ctx, kid.ID)
	require.NoError(t, err)
	assert.Len(t, forKid, 1)

	require.NoError(t, f.svc.DeletePrescription(ctx, p1.ID))
	all, err = f.svc.Prescriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestImport_FreshDataset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SaveUser(ctx, model.Profile{Name: "Old", Type: model.CategoryAdult})
	require.NoError(t, err)

	_, err = f.svc.ImportData(ctx, []byte(`{"users":[{"id":"u1","name":"Asha","type":"Adult","createdAt":0}],"feverLogs":[],"prescriptions":[]}`))
	require.NoError(t, err)

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Asha", users[0].Name)
}

func TestImport_MalformedLeavesLocalUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)
	_, err = f.svc.SaveFeverRecord(ctx, model.FeverRecord{UserID: u.ID, Temperature: 101})
	require.NoError(t, err)
	before, err := f.svc.Snapshot(ctx)
	require.NoError(t, err)

	for _, payload := range []string{`{"feverLogs":[]}`, `not json`, `{"users":[{"name":"no id"}]}`} {
		_, err = f.svc.ImportData(ctx, []byte(payload))
		assert.ErrorIs(t, err, ErrImportRejected, payload)
	}

	after, err := f.svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, model.Equal(before, after))
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newFixture(t)
	u, err := src.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)
	_, err = src.svc.SavePrescription(ctx, model.Prescription{UserID: u.ID, MedicineName: "Syrup"})
	require.NoError(t, err)

	data, err := src.svc.ExportData(ctx)
	require.NoError(t, err)

	dst := newFixture(t)
	_, err = dst.svc.ImportData(ctx, data)
	require.NoError(t, err)

	a, _ := src.svc.Snapshot(ctx)
	b, _ := dst.svc.Snapshot(ctx)
	assert.True(t, model.Equal(a, b))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "medbuddy-backup-2026-01-15.json", ExportFilename(testNow))
}

func TestSyncConfig_SaveSyncsAndClearResets(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.SaveUser(ctx, model.Profile{Name: "Asha", Type: model.CategoryKid})
	require.NoError(t, err)
	f.svc.WaitForSync()
	fetches, _ := f.remote.Calls()
	assert.Zero(t, fetches, "no remote calls before configuration")

	err = f.svc.SaveSyncConfig(ctx, model.SyncConfig{Repository: "me/health", Path: "d.json"})
	assert.ErrorIs(t, err, ErrInvalid)

	require.NoError(t, f.svc.SaveSyncConfig(ctx, model.SyncConfig{Token: "ghp_secretsecret", Repository: "me/health", Path: "d.json"}))
	f.svc.WaitForSync()

	content, _ := f.remote.Content()
	require.NotNil(t, content)
	assert.Len(t, content.Users, 1)
	assert.Equal(t, engine.StateIdle, f.svc.SyncStatus().State)

	cfg, err := f.svc.SyncConfig(ctx)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "ghp_****", cfg.Token)

	require.NoError(t, f.svc.ClearSyncConfig(ctx))
	cfg, err = f.svc.SyncConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.Equal(t, engine.StateIdle, f.svc.SyncStatus().State)
}

func TestSyncFromCloud_Force(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.svc.SaveSyncConfig(ctx, model.SyncConfig{Token: "t", Repository: "me/health", Path: "d.json"}))
	f.remote.Seed(model.Dataset{Users: []model.Profile{{ID: "remote-1", Name: "Meera", Type: model.CategoryAdult}}})

	status := f.svc.SyncFromCloud(ctx, true)
	require.Equal(t, engine.StateIdle, status.State, status.LastError)

	users, err := f.svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Meera", users[0].Name)
}
