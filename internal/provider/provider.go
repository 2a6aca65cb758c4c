// Package provider fetches candidate releases from upstream sources.
// One implementation exists per tracker type (GitHub, GitLab, Helm chart
// repository); the tracker's declared type selects the implementation at
// construction time.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/signalbox/internal/models"
)

// Sentinel errors classifying upstream failures. Unauthorized, NotFound and
// Malformed are terminal for a check cycle; RateLimited and Network are
// retried by the scheduler on its next tick.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotFound     = errors.New("not found")
	ErrNetwork      = errors.New("network error")
	ErrMalformed    = errors.New("malformed response")
)

// Candidate is a release entry fetched from upstream, before classification
// and storage.
type Candidate struct {
	Tag         string
	Name        string
	PublishedAt time.Time
	URL         string
	Prerelease  bool
	Body        string
	CommitSHA   string
}

// Version returns the candidate's version string (the tag without a leading v).
func (c Candidate) Version() string {
	return strings.TrimPrefix(c.Tag, "v")
}

// Provider fetches candidate releases for one tracker. Implementations
// return at most limit candidates, newest-first as ordered by the upstream
// source, and never retry internally.
type Provider interface {
	Fetch(ctx context.Context, limit int) ([]Candidate, error)
}

// CommitResolver is implemented by providers whose list endpoint omits the
// tag's commit SHA (GitHub). The scheduler resolves SHAs lazily, only for
// candidates that are about to be recorded.
type CommitResolver interface {
	ResolveCommit(ctx context.Context, tag string) (string, error)
}

// New builds the provider for a tracker's declared type. The token is the
// resolved credential secret; empty means anonymous access.
func New(tracker models.Tracker, token string) (Provider, error) {
	switch tracker.Type {
	case models.TrackerGitHub:
		return NewGitHub(GitHubOpts{Repo: tracker.Repo, Token: token})
	case models.TrackerGitLab:
		return NewGitLab(GitLabOpts{Project: tracker.Project, Instance: tracker.Instance, Token: token})
	case models.TrackerHelm:
		return NewHelm(HelmOpts{Repo: tracker.Repo, Chart: tracker.Chart, Token: token})
	default:
		return nil, fmt.Errorf("provider: unsupported tracker type %q", tracker.Type)
	}
}

// isPrereleaseVersion reports whether a version string looks like a
// prerelease. Used by providers whose upstream has no explicit prerelease
// flag (Helm charts, GitLab tags).
func isPrereleaseVersion(version string) bool {
	v := strings.ToLower(version)
	for _, kw := range []string{"alpha", "beta", "rc", "pre", "dev", "snapshot"} {
		if strings.Contains(v, kw) {
			return true
		}
	}
	return strings.Contains(v, "-")
}
