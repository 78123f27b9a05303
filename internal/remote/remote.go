// Package remote reads and writes the single JSON snapshot file that mirrors
// the local dataset, guarded by an opaque revision token.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/model"
)

var (
	// ErrUnavailable covers network failures, timeouts and server errors.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrRejected means the remote refused the request (credentials,
	// permissions, missing repository or bucket).
	ErrRejected = errors.New("remote rejected request")
	// ErrConflict means the expected revision no longer matches.
	ErrConflict = errors.New("remote revision conflict")
	// ErrMalformed means the remote content could not be decoded.
	ErrMalformed = errors.New("remote content malformed")
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 15 * time.Second

// Snapshot is the result of a fetch. A nil Content means the file does not
// exist yet; Revision is then empty.
type Snapshot struct {
	Content  *model.Dataset
	Revision string
}

// Adapter is a remote file API with optimistic concurrency.
type Adapter interface {
	// Fetch returns the current remote content and its revision.
	Fetch(ctx context.Context) (Snapshot, error)
	// Write stores content if the remote is still at expectedRevision. An
	// empty expectedRevision means the file must not exist yet. It returns
	// the new revision.
	Write(ctx context.Context, content model.Dataset, expectedRevision string) (string, error)
}

// Factory builds an adapter for a sync configuration.
type Factory func(ctx context.Context, cfg model.SyncConfig) (Adapter, error)

// Options tune the adapters built by New.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	// GitHubBaseURL overrides https://api.github.com.
	GitHubBaseURL string
	// CommitMessage is used for GitHub commits.
	CommitMessage string
	Logger        *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.GitHubBaseURL == "" {
		o.GitHubBaseURL = DefaultGitHubBaseURL
	}
	if o.CommitMessage == "" {
		o.CommitMessage = "medbuddy: sync health records"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// New returns the adapter for cfg's provider.
func New(ctx context.Context, cfg model.SyncConfig, opts Options) (Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	switch cfg.EffectiveProvider() {
	case model.ProviderGitHub:
		return NewGitHub(cfg, opts), nil
	case model.ProviderS3:
		return NewS3(ctx, cfg, opts)
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}

// NewFactory returns a Factory that calls New with opts.
func NewFactory(opts Options) Factory {
	return func(ctx context.Context, cfg model.SyncConfig) (Adapter, error) {
		return New(ctx, cfg, opts)
	}
}

// decodeContent turns fetched bytes into a dataset, mapping decode errors to
// ErrMalformed.
func decodeContent(data []byte) (*model.Dataset, error) {
	ds, err := model.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &ds, nil
}

// classifyStatus maps an HTTP status of a failed call to a sentinel error.
func classifyStatus(status int) error {
	switch {
	case status == http.StatusConflict || status == http.StatusPreconditionFailed:
		return ErrConflict
	case status == http.StatusTooManyRequests || status >= 500:
		return ErrUnavailable
	default:
		return ErrRejected
	}
}
