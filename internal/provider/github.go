package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

// GitHub fetches releases from a GitHub repository via the Releases API.
type GitHub struct {
	owner  string
	name   string
	client *github.Client
}

// GitHubOpts holds parameters for creating a GitHub provider.
type GitHubOpts struct {
	Repo  string // owner/name
	Token string // optional; anonymous access is rate-limited harder

	// For testing: point the client at a local server.
	BaseURL    string
	HTTPClient *http.Client
}

// NewGitHub creates a GitHub provider.
func NewGitHub(opts GitHubOpts) (*GitHub, error) {
	if opts.Repo == "" {
		return nil, fmt.Errorf("provider: github: repo is required")
	}
	owner, name, ok := strings.Cut(opts.Repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("provider: github: repo %q must be owner/name", opts.Repo)
	}

	hc := opts.HTTPClient
	if opts.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		base := context.Background()
		if hc != nil {
			base = context.WithValue(base, oauth2.HTTPClient, hc)
		}
		hc = oauth2.NewClient(base, ts)
	}

	client := github.NewClient(hc)
	if opts.BaseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("provider: github: base url: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHub{owner: owner, name: name, client: client}, nil
}

// Fetch lists the newest releases for the repository. Drafts are skipped;
// ordering follows the API (newest-first by creation).
func (g *GitHub) Fetch(ctx context.Context, limit int) ([]Candidate, error) {
	releases, _, err := g.client.Repositories.ListReleases(ctx, g.owner, g.name,
		&github.ListOptions{PerPage: limit})
	if err != nil {
		return nil, fmt.Errorf("provider: github: list releases for %s/%s: %w", g.owner, g.name, classifyGitHubError(err))
	}

	candidates := make([]Candidate, 0, len(releases))
	for _, r := range releases {
		if r.GetDraft() {
			continue
		}
		published := r.GetPublishedAt().Time
		if published.IsZero() {
			published = r.GetCreatedAt().Time
		}
		name := r.GetName()
		if name == "" {
			name = r.GetTagName()
		}
		candidates = append(candidates, Candidate{
			Tag:         r.GetTagName(),
			Name:        name,
			PublishedAt: published,
			URL:         r.GetHTMLURL(),
			Prerelease:  r.GetPrerelease(),
			Body:        r.GetBody(),
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

// ResolveCommit looks up the commit SHA a tag points at, dereferencing
// annotated tags to the underlying commit.
func (g *GitHub) ResolveCommit(ctx context.Context, tag string) (string, error) {
	ref, _, err := g.client.Git.GetRef(ctx, g.owner, g.name, "tags/"+tag)
	if err != nil {
		return "", fmt.Errorf("provider: github: resolve tag %s: %w", tag, classifyGitHubError(err))
	}

	obj := ref.GetObject()
	if obj.GetType() != "tag" {
		return obj.GetSHA(), nil
	}

	// Annotated tag: dereference to the tagged commit.
	annotated, _, err := g.client.Git.GetTag(ctx, g.owner, g.name, obj.GetSHA())
	if err != nil {
		return "", fmt.Errorf("provider: github: dereference tag %s: %w", tag, classifyGitHubError(err))
	}
	return annotated.GetObject().GetSHA(), nil
}

// classifyGitHubError maps go-github errors onto the provider taxonomy.
func classifyGitHubError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return classifyStatus(respErr.Response.StatusCode, err)
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// classifyStatus maps an HTTP status code onto the provider taxonomy.
func classifyStatus(status int, err error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case status >= 500:
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
