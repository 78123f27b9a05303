package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantUsers int
		wantFever int
	}{
		{name: "empty object", input: `{}`},
		{name: "null collections", input: `{"users":null,"feverLogs":null}`},
		{name: "users only", input: `{"users":[{"id":"u1","name":"Asha","type":"Kid","createdAt":1}]}`, wantUsers: 1},
		{name: "duplicates keep first", input: `{"users":[{"id":"u1","name":"A"},{"id":"u1","name":"B"}]}`, wantUsers: 1},
		{name: "fever logs", input: `{"feverLogs":[{"id":"f1","userId":"u1","temperature":101.2,"timestamp":5}]}`, wantFever: 1},
		{name: "array top level", input: `[]`, wantErr: true},
		{name: "not json", input: `hello`, wantErr: true},
		{name: "empty input", input: ``, wantErr: true},
		{name: "users not array", input: `{"users":{}}`, wantErr: true},
		{name: "record without id", input: `{"users":[{"name":"x"}]}`, wantErr: true},
		{name: "wrong field type", input: `{"feverLogs":[{"id":"f","temperature":"hot"}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := DecodeSnapshot([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed), "error %v should wrap ErrMalformed", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, ds.Users, tt.wantUsers)
			assert.Len(t, ds.FeverLogs, tt.wantFever)
			assert.NotNil(t, ds.Prescriptions)
		})
	}
}

func TestDecodeSnapshot_DuplicateKeepsFirst(t *testing.T) {
	ds, err := DecodeSnapshot([]byte(`{"users":[{"id":"u1","name":"A"},{"id":"u2","name":"C"},{"id":"u1","name":"B"}]}`))
	require.NoError(t, err)
	require.Len(t, ds.Users, 2)
	assert.Equal(t, "A", ds.Users[0].Name)
	assert.Equal(t, "u2", ds.Users[1].ID)
}

func TestDecodeImport_RequiresUsers(t *testing.T) {
	_, err := DecodeImport([]byte(`{"feverLogs":[]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = DecodeImport([]byte(`{"users":null}`))
	assert.ErrorIs(t, err, ErrMalformed)

	ds, err := DecodeImport([]byte(`{"users":[{"id":"u1","name":"Asha","type":"Kid","createdAt":0}]}`))
	require.NoError(t, err)
	assert.Len(t, ds.Users, 1)
	assert.Empty(t, ds.FeverLogs)
	assert.Empty(t, ds.Prescriptions)
}

func TestEncode_EmptyCollectionsAreArrays(t *testing.T) {
	data, err := Dataset{}.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"users": []`)
	assert.Contains(t, string(data), `"feverLogs": []`)
	assert.Contains(t, string(data), `"prescriptions": []`)
	assert.NotContains(t, string(data), "null")
}

func TestEncode_RoundTripStable(t *testing.T) {
	ds := Dataset{
		Users:     []Profile{{ID: "u1", Name: "Asha", Type: CategoryKid, CreatedAt: 10}},
		FeverLogs: []FeverRecord{{ID: "f1", UserID: "u1", Temperature: 100.4, Timestamp: 20, Notes: "after lunch"}},
		Prescriptions: []Prescription{{
			ID: "p1", UserID: "u1", Illness: "Cold", MedicineName: "Syrup",
			Dosage: "5ml", PrescribedBy: "Dr. Rao", IsActive: true, Timestamp: 30,
		}},
	}
	first, err := ds.Encode()
	require.NoError(t, err)

	decoded, err := DecodeSnapshot(first)
	require.NoError(t, err)
	second, err := decoded.Encode()
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
	assert.True(t, Equal(ds, decoded))
}

func TestSyncConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SyncConfig
		wantErr string
	}{
		{name: "valid github", cfg: SyncConfig{Token: "t", Repository: "me/health", Path: "data.json"}},
		{name: "missing token", cfg: SyncConfig{Repository: "me/health", Path: "data.json"}, wantErr: "token"},
		{name: "missing path", cfg: SyncConfig{Token: "t", Repository: "me/health"}, wantErr: "path"},
		{name: "bad repository", cfg: SyncConfig{Token: "t", Repository: "health", Path: "d.json"}, wantErr: "owner/name"},
		{name: "s3 without token", cfg: SyncConfig{Provider: ProviderS3, Repository: "bucket", Path: "d.json"}},
		{name: "unknown provider", cfg: SyncConfig{Provider: "ftp", Token: "t", Repository: "r", Path: "p"}, wantErr: "unknown provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSyncConfig_NeverPrintsToken(t *testing.T) {
	cfg := SyncConfig{Token: "ghp_supersecretvalue", Repository: "me/health", Path: "data.json"}
	assert.False(t, strings.Contains(cfg.String(), "supersecret"))
	assert.Equal(t, "ghp_****", cfg.Redacted().Token)
	assert.Equal(t, "ghp_supersecretvalue", cfg.Token)
}
