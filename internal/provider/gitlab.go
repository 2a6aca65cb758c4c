package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// DefaultGitLabInstance is used when a tracker does not name one.
const DefaultGitLabInstance = "https://gitlab.com"

// GitLab fetches releases from a GitLab project via the Releases API.
// Self-hosted instances are supported through the tracker's instance field.
type GitLab struct {
	project  string
	instance string
	client   *gitlab.Client
}

// GitLabOpts holds parameters for creating a GitLab provider.
type GitLabOpts struct {
	Project  string // group/project path
	Instance string // base URL, defaults to gitlab.com
	Token    string // optional private token

	// For testing: inject a transport pointing at a local server.
	HTTPClient *http.Client
}

// NewGitLab creates a GitLab provider.
func NewGitLab(opts GitLabOpts) (*GitLab, error) {
	if opts.Project == "" {
		return nil, fmt.Errorf("provider: gitlab: project is required")
	}
	instance := strings.TrimSuffix(opts.Instance, "/")
	if instance == "" {
		instance = DefaultGitLabInstance
	}

	clientOpts := []gitlab.ClientOptionFunc{gitlab.WithBaseURL(instance)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, gitlab.WithHTTPClient(opts.HTTPClient))
	}
	client, err := gitlab.NewClient(opts.Token, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("provider: gitlab: client for %s: %w", instance, err)
	}

	return &GitLab{project: opts.Project, instance: instance, client: client}, nil
}

// Fetch lists the newest releases for the project. GitLab has no explicit
// prerelease flag; upcoming releases and prerelease-looking tags are marked.
func (g *GitLab) Fetch(ctx context.Context, limit int) ([]Candidate, error) {
	releases, resp, err := g.client.Releases.ListReleases(g.project, &gitlab.ListReleasesOptions{
		ListOptions: gitlab.ListOptions{PerPage: limit, Page: 1},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("provider: gitlab: list releases for %s: %w", g.project, classifyGitLabError(resp, err))
	}

	candidates := make([]Candidate, 0, len(releases))
	for _, r := range releases {
		published := r.CreatedAt
		if r.ReleasedAt != nil {
			published = r.ReleasedAt
		}
		name := r.Name
		if name == "" {
			name = r.TagName
		}
		var sha string
		if r.Commit.ID != "" {
			sha = r.Commit.ID
		}
		candidates = append(candidates, Candidate{
			Tag:         r.TagName,
			Name:        name,
			PublishedAt: derefTime(published),
			URL:         fmt.Sprintf("%s/%s/-/releases/%s", g.instance, g.project, r.TagName),
			Prerelease:  r.UpcomingRelease || isPrereleaseVersion(r.TagName),
			Body:        r.Description,
			CommitSHA:   sha,
		})
		if len(candidates) >= limit {
			break
		}
	}
	return candidates, nil
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// classifyGitLabError maps a client-go failure onto the provider taxonomy
// using the HTTP response when one exists.
func classifyGitLabError(resp *gitlab.Response, err error) error {
	if resp != nil && resp.Response != nil {
		return classifyStatus(resp.StatusCode, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
