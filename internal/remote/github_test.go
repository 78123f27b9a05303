package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolasblack/medbuddy/internal/model"
)

// contentsPut is the body of a contents API create or update.
type contentsPut struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// fakeContentsAPI is a minimal GitHub contents endpoint for one file.
type fakeContentsAPI struct {
	mu      sync.Mutex
	content []byte
	sha     string
	seq     int
	status  int // forced status for every request when non-zero
	lastPut contentsPut
	lastRef string
	auth    string
}

func (f *fakeContentsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("Authorization")
	if r.Method == http.MethodGet {
		f.lastRef = r.URL.Query().Get("ref")
	}

	if !strings.HasPrefix(r.URL.Path, "/repos/me/health/contents/") {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
		return
	}
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"message":"forced"}`))
		return
	}

	switch r.Method {
	case http.MethodGet:
		if f.content == nil {
			http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
			return
		}
		// GitHub wraps base64 at 60 columns
		enc := base64.StdEncoding.EncodeToString(f.content)
		var wrapped strings.Builder
		for i := 0; i < len(enc); i += 60 {
			end := min(i+60, len(enc))
			wrapped.WriteString(enc[i:end] + "\n")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sha": f.sha, "content": wrapped.String(), "encoding": "base64",
		})
	case http.MethodPut:
		var req contentsPut
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, `{"message":"bad json"}`, http.StatusBadRequest)
			return
		}
		f.lastPut = req
		if req.SHA != f.sha {
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"sha does not match"}`))
			return
		}
		data, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			http.Error(w, `{"message":"bad content"}`, http.StatusBadRequest)
			return
		}
		status := http.StatusOK
		if f.content == nil {
			status = http.StatusCreated
		}
		f.content = data
		f.seq++
		f.sha = "sha" + string(rune('0'+f.seq))
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"sha": f.sha}})
	}
}

func (f *fakeContentsAPI) observed() (contentsPut, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPut, f.auth
}

func newTestGitHub(t *testing.T, api http.Handler) *GitHub {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return NewGitHub(
		model.SyncConfig{Token: "tok123", Repository: "me/health", Path: "data/medbuddy.json"},
		Options{GitHubBaseURL: srv.URL, HTTPClient: srv.Client()},
	)
}

func TestGitHub_FetchAbsent(t *testing.T) {
	gh := newTestGitHub(t, &fakeContentsAPI{})
	snap, err := gh.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap.Content)
	assert.Empty(t, snap.Revision)
}

func TestGitHub_WriteCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	api := &fakeContentsAPI{}
	gh := newTestGitHub(t, api)

	ds := model.Dataset{Users: []model.Profile{{ID: "u1", Name: "Asha", Type: model.CategoryKid}}}
	rev, err := gh.Write(ctx, ds, "")
	require.NoError(t, err)
	assert.Equal(t, "sha1", rev)
	put, auth := api.observed()
	assert.Empty(t, put.SHA)
	assert.Equal(t, "Bearer tok123", auth)

	snap, err := gh.Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap.Content)
	assert.Equal(t, "sha1", snap.Revision)
	assert.True(t, model.Equal(ds, *snap.Content))

	ds.Users = append(ds.Users, model.Profile{ID: "u2", Name: "Ravi"})
	rev, err = gh.Write(ctx, ds, snap.Revision)
	require.NoError(t, err)
	assert.Equal(t, "sha2", rev)
}

func TestGitHub_WriteStaleRevisionConflicts(t *testing.T) {
	ctx := context.Background()
	gh := newTestGitHub(t, &fakeContentsAPI{content: []byte(`{}`), sha: "current"})

	_, err := gh.Write(ctx, model.Dataset{}, "stale")
	assert.ErrorIs(t, err, ErrConflict)

	_, err = gh.Write(ctx, model.Dataset{}, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGitHub_BranchIsUsedForReadAndWrite(t *testing.T) {
	ctx := context.Background()
	api := &fakeContentsAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	gh := NewGitHub(
		model.SyncConfig{Token: "tok123", Repository: "me/health", Path: "/data/medbuddy.json", Branch: "records"},
		Options{GitHubBaseURL: srv.URL + "/", HTTPClient: srv.Client(), CommitMessage: "sync"},
	)

	_, err := gh.Write(ctx, model.Dataset{}, "")
	require.NoError(t, err)
	put, _ := api.observed()
	assert.Equal(t, "records", put.Branch)
	assert.Equal(t, "sync", put.Message)

	snap, err := gh.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sha1", snap.Revision)
	api.mu.Lock()
	assert.Equal(t, "records", api.lastRef)
	api.mu.Unlock()
}

func TestGitHub_InvalidRepository(t *testing.T) {
	gh := NewGitHub(model.SyncConfig{Token: "t", Repository: "health", Path: "d.json"}, Options{})
	_, err := gh.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
	_, err = gh.Write(context.Background(), model.Dataset{}, "")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestGitHub_FetchMalformed(t *testing.T) {
	gh := newTestGitHub(t, &fakeContentsAPI{content: []byte(`["not","an","object"]`), sha: "x"})
	_, err := gh.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestGitHub_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrRejected},
		{http.StatusForbidden, ErrRejected},
		{http.StatusInternalServerError, ErrUnavailable},
		{http.StatusBadGateway, ErrUnavailable},
		{http.StatusTooManyRequests, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			gh := newTestGitHub(t, &fakeContentsAPI{status: tt.status})
			_, err := gh.Fetch(context.Background())
			assert.ErrorIs(t, err, tt.want)
			_, err = gh.Write(context.Background(), model.Dataset{}, "")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGitHub_WriteUnprocessableIsConflict(t *testing.T) {
	gh := newTestGitHub(t, &fakeContentsAPI{status: http.StatusUnprocessableEntity})
	_, err := gh.Write(context.Background(), model.Dataset{}, "")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestGitHub_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	gh := NewGitHub(
		model.SyncConfig{Token: "t", Repository: "me/health", Path: "d.json"},
		Options{GitHubBaseURL: srv.URL, HTTPClient: &http.Client{Timeout: 50 * time.Millisecond}},
	)

	_, err := gh.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestGitHub_ErrorsNeverContainToken(t *testing.T) {
	gh := newTestGitHub(t, &fakeContentsAPI{status: http.StatusUnauthorized})
	_, err := gh.Fetch(context.Background())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "tok123")
}
