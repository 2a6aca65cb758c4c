package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Helm fetches chart versions from a Helm repository's index.yaml.
type Helm struct {
	repo   string
	chart  string
	token  string
	client *http.Client
}

// HelmOpts holds parameters for creating a Helm provider.
type HelmOpts struct {
	Repo  string // repository base URL
	Chart string // chart name inside the index
	Token string // optional bearer token

	HTTPClient *http.Client
}

// NewHelm creates a Helm provider.
func NewHelm(opts HelmOpts) (*Helm, error) {
	if opts.Repo == "" {
		return nil, fmt.Errorf("provider: helm: repo is required")
	}
	if opts.Chart == "" {
		return nil, fmt.Errorf("provider: helm: chart is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	repo := opts.Repo
	for len(repo) > 0 && repo[len(repo)-1] == '/' {
		repo = repo[:len(repo)-1]
	}
	return &Helm{repo: repo, chart: opts.Chart, token: opts.Token, client: client}, nil
}

// helmIndex is the slice of index.yaml we care about.
type helmIndex struct {
	Entries map[string][]helmEntry `yaml:"entries"`
}

type helmEntry struct {
	Version     string `yaml:"version"`
	AppVersion  string `yaml:"appVersion"`
	Created     string `yaml:"created"`
	Description string `yaml:"description"`
	Digest      string `yaml:"digest"`
	Home        string `yaml:"home"`
}

// Fetch downloads index.yaml and returns the chart's versions newest-first
// by creation time. The chart digest rides in CommitSHA: it is the content
// identity charts publish instead of a commit, so a digest change on the
// same version is a republish.
func (h *Helm) Fetch(ctx context.Context, limit int) ([]Candidate, error) {
	indexURL := h.repo + "/index.yaml"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: helm: request %s: %w", indexURL, err)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: helm: fetch %s: %w: %v", indexURL, ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider: helm: fetch %s: %w",
			indexURL, classifyStatus(resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider: helm: read index: %w: %v", ErrNetwork, err)
	}

	var index helmIndex
	if err := yaml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("provider: helm: decode index: %w: %v", ErrMalformed, err)
	}

	entries, ok := index.Entries[h.chart]
	if !ok {
		return nil, fmt.Errorf("provider: helm: chart %q: %w", h.chart, ErrNotFound)
	}

	candidates := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		created, err := time.Parse(time.RFC3339Nano, e.Created)
		if err != nil {
			created = time.Now()
		}
		candidates = append(candidates, Candidate{
			Tag:         e.Version,
			Name:        h.chart,
			PublishedAt: created,
			URL:         h.repo,
			Prerelease:  isPrereleaseVersion(e.Version),
			Body:        e.Description,
			CommitSHA:   e.Digest,
		})
	}

	// "Latest" is not always first in a chart index; sort before capping.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].PublishedAt.After(candidates[j].PublishedAt)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
