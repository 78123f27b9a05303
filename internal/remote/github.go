package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v74/github"
	"go.uber.org/zap"

	"github.com/bolasblack/medbuddy/internal/model"
)

// DefaultGitHubBaseURL is the public GitHub REST API.
const DefaultGitHubBaseURL = "https://api.github.com"

// GitHub stores the snapshot as a file in a repository through the contents
// API. The revision is the blob sha.
type GitHub struct {
	client  *github.Client
	owner   string
	repo    string
	path    string
	branch  string
	message string
	logger  *zap.Logger
	initErr error
}

var _ Adapter = (*GitHub)(nil)

// NewGitHub builds a GitHub adapter. opts defaults are applied.
func NewGitHub(cfg model.SyncConfig, opts Options) *GitHub {
	opts = opts.withDefaults()
	g := &GitHub{
		client:  github.NewClient(opts.HTTPClient).WithAuthToken(cfg.Token),
		path:    strings.Trim(cfg.Path, "/"),
		branch:  cfg.Branch,
		message: opts.CommitMessage,
		logger:  opts.Logger,
	}

	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok || owner == "" || repo == "" {
		g.initErr = fmt.Errorf("%w: repository %q is not owner/name", ErrRejected, cfg.Repository)
	}
	g.owner, g.repo = owner, repo

	// The client resolves request paths against BaseURL, which must end in a
	// slash. WithEnterpriseURLs would add an /api/v3/ suffix.
	base, err := url.Parse(strings.TrimRight(opts.GitHubBaseURL, "/") + "/")
	if err != nil {
		g.initErr = fmt.Errorf("%w: invalid GitHub API URL: %v", ErrRejected, err)
	} else {
		g.client.BaseURL = base
	}
	return g
}

func (g *GitHub) Fetch(ctx context.Context) (Snapshot, error) {
	if g.initErr != nil {
		return Snapshot{}, g.initErr
	}
	var opts *github.RepositoryContentGetOptions
	if g.branch != "" {
		opts = &github.RepositoryContentGetOptions{Ref: g.branch}
	}

	file, dir, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.repo, g.path, opts)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			g.logger.Debug("remote file absent", zap.String("repository", g.owner+"/"+g.repo), zap.String("path", g.path))
			return Snapshot{}, nil
		}
		return Snapshot{}, g.mapError("fetch", err)
	}
	if file == nil {
		return Snapshot{}, fmt.Errorf("%w: %s is a directory with %d entries", ErrMalformed, g.path, len(dir))
	}

	raw, err := file.GetContent()
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	content, err := decodeContent([]byte(raw))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Content: content, Revision: file.GetSHA()}, nil
}

func (g *GitHub) Write(ctx context.Context, content model.Dataset, expectedRevision string) (string, error) {
	if g.initErr != nil {
		return "", g.initErr
	}
	data, err := content.Encode()
	if err != nil {
		return "", err
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(g.message),
		Content: data,
	}
	if g.branch != "" {
		opts.Branch = github.Ptr(g.branch)
	}

	var res *github.RepositoryContentResponse
	if expectedRevision == "" {
		res, _, err = g.client.Repositories.CreateFile(ctx, g.owner, g.repo, g.path, opts)
	} else {
		opts.SHA = github.Ptr(expectedRevision)
		res, _, err = g.client.Repositories.UpdateFile(ctx, g.owner, g.repo, g.path, opts)
	}
	if err != nil {
		return "", g.mapError("write", err)
	}
	if res == nil || res.Content == nil || res.Content.GetSHA() == "" {
		return "", fmt.Errorf("%w: write response carries no sha", ErrUnavailable)
	}
	return res.Content.GetSHA(), nil
}

// mapError turns a client error into one of the package sentinels. GitHub
// answers a missing or stale sha with 409 or 422.
func (g *GitHub) mapError(op string, err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return fmt.Errorf("%w: %s rate limited", ErrUnavailable, op)
	case errors.As(err, &respErr) && respErr.Response != nil:
		status := respErr.Response.StatusCode
		if status == http.StatusUnprocessableEntity {
			return fmt.Errorf("%w: %s", ErrConflict, respErr.Message)
		}
		return fmt.Errorf("%w: %s returned %d: %s", classifyStatus(status), op, status, respErr.Message)
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return fmt.Errorf("%w: %s response: %v", ErrMalformed, op, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// statusOf returns the HTTP status behind a client error, or zero.
func statusOf(err error) int {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return respErr.Response.StatusCode
	}
	return 0
}
