package scheduler

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/zulandar/signalbox/internal/config"
	"github.com/zulandar/signalbox/internal/db"
	"github.com/zulandar/signalbox/internal/models"
	"github.com/zulandar/signalbox/internal/notify"
	"github.com/zulandar/signalbox/internal/provider"
	"github.com/zulandar/signalbox/internal/secrets"
	"github.com/zulandar/signalbox/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	gormDB, err := db.Open(config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st, err := store.New(gormDB)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return st
}

func addTracker(t *testing.T, st *store.Store, name string, enabled bool) models.Tracker {
	t.Helper()
	channels, err := models.MarshalChannels([]models.Channel{
		{Name: "stable", Type: "release", Enabled: true},
		{Name: "prerelease", Type: "prerelease", Enabled: true},
	})
	if err != nil {
		t.Fatalf("marshal channels: %v", err)
	}
	tracker := models.Tracker{
		Name:            name,
		Type:            "github",
		Repo:            name + "/" + name,
		Channels:        channels,
		Interval:        60,
		RepublishOnBody: true,
		Enabled:         enabled,
	}
	if err := st.SaveTracker(&tracker); err != nil {
		t.Fatalf("save tracker: %v", err)
	}
	return tracker
}

// fakeProvider returns canned candidates and counts fetches. With gate set,
// Fetch blocks until the gate closes.
type fakeProvider struct {
	mu         sync.Mutex
	candidates []provider.Candidate
	err        error
	fetches    int
	lastLimit  int
	gate       chan struct{}
	shas       map[string]string
}

func (f *fakeProvider) Fetch(ctx context.Context, limit int) ([]provider.Candidate, error) {
	f.mu.Lock()
	f.fetches++
	f.lastLimit = limit
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeProvider) ResolveCommit(ctx context.Context, tag string) (string, error) {
	if f.shas == nil {
		return "", fmt.Errorf("no sha for %s", tag)
	}
	sha, ok := f.shas[tag]
	if !ok {
		return "", fmt.Errorf("no sha for %s", tag)
	}
	return sha, nil
}

func (f *fakeProvider) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches
}

// fakeDispatcher records events.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, event notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeDispatcher) kinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]string, len(f.events))
	for i, e := range f.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func noSecrets(ctx context.Context, name string) (string, error) {
	return "", fmt.Errorf("%w: %s", secrets.ErrNotFound, name)
}

func testScheduler(t *testing.T, st *store.Store, prov *fakeProvider, disp *fakeDispatcher) *Scheduler {
	t.Helper()
	s, err := New(Opts{
		Store:      st,
		Dispatcher: disp,
		Resolve:    noSecrets,
		Providers: func(tracker models.Tracker, token string) (provider.Provider, error) {
			return prov, nil
		},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return s
}

func TestCheckNow_RecordsAndNotifies(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "kubernetes", true)

	prov := &fakeProvider{candidates: []provider.Candidate{
		{Tag: "v1.30.0", Name: "v1.30.0", PublishedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), CommitSHA: "aaa"},
		{Tag: "v1.29.9-rc1", Name: "v1.29.9-rc1", PublishedAt: time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC), Prerelease: true, CommitSHA: "bbb"},
	}}
	disp := &fakeDispatcher{}
	s := testScheduler(t, st, prov, disp)

	status, err := s.CheckNow(context.Background(), "kubernetes")
	if err != nil {
		t.Fatalf("check now: %v", err)
	}
	if status.Error != "" {
		t.Fatalf("status error = %q, want clean check", status.Error)
	}
	if status.LastVersion != "v1.30.0" {
		t.Errorf("LastVersion = %q, want newest recorded tag", status.LastVersion)
	}
	if prov.lastLimit != ManualFetchLimit {
		t.Errorf("fetch limit = %d, want manual limit %d", prov.lastLimit, ManualFetchLimit)
	}

	// One release per channel, stamped with its channel.
	releases, _, err := st.ListReleases(store.ReleaseFilter{})
	if err != nil {
		t.Fatalf("list releases: %v", err)
	}
	if len(releases) != 2 {
		t.Fatalf("recorded %d releases, want 2", len(releases))
	}
	byTag := map[string]models.Release{}
	for _, r := range releases {
		byTag[r.TagName] = r
	}
	if byTag["v1.30.0"].ChannelName != "stable" {
		t.Errorf("v1.30.0 channel = %q, want stable", byTag["v1.30.0"].ChannelName)
	}
	if byTag["v1.29.9-rc1"].ChannelName != "prerelease" {
		t.Errorf("v1.29.9-rc1 channel = %q, want prerelease", byTag["v1.29.9-rc1"].ChannelName)
	}

	kinds := disp.kinds()
	if len(kinds) != 2 || kinds[0] != notify.EventNewRelease || kinds[1] != notify.EventNewRelease {
		t.Errorf("dispatched kinds = %v, want two new_release events", kinds)
	}

	// Persisted status row matches.
	persisted, err := st.GetStatus("kubernetes")
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if persisted.LastVersion != "v1.30.0" || persisted.Error != "" {
		t.Errorf("persisted status = %+v, want clean with v1.30.0", persisted)
	}
}

func TestCheckNow_UnchangedProducesNoEvents(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "kubernetes", true)

	prov := &fakeProvider{candidates: []provider.Candidate{
		{Tag: "v1.30.0", PublishedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), CommitSHA: "aaa"},
	}}
	disp := &fakeDispatcher{}
	s := testScheduler(t, st, prov, disp)

	for i := 0; i < 3; i++ {
		if _, err := s.CheckNow(context.Background(), "kubernetes"); err != nil {
			t.Fatalf("check #%d: %v", i, err)
		}
	}

	kinds := disp.kinds()
	if len(kinds) != 1 {
		t.Errorf("dispatched %d events over 3 checks, want 1 (first only)", len(kinds))
	}
}

func TestCheckNow_RepublishDispatchesRepublish(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "kubernetes", true)

	prov := &fakeProvider{candidates: []provider.Candidate{
		{Tag: "v1.30.0", PublishedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), CommitSHA: "aaa"},
	}}
	disp := &fakeDispatcher{}
	s := testScheduler(t, st, prov, disp)

	if _, err := s.CheckNow(context.Background(), "kubernetes"); err != nil {
		t.Fatalf("first check: %v", err)
	}

	// Upstream moved the tag.
	prov.candidates[0].CommitSHA = "ccc"
	if _, err := s.CheckNow(context.Background(), "kubernetes"); err != nil {
		t.Fatalf("second check: %v", err)
	}

	kinds := disp.kinds()
	if len(kinds) != 2 || kinds[1] != notify.EventRepublish {
		t.Errorf("dispatched kinds = %v, want [new_release, republish]", kinds)
	}
}

func TestCheckNow_UnknownTracker(t *testing.T) {
	st := testStore(t)
	s := testScheduler(t, st, &fakeProvider{}, &fakeDispatcher{})

	if _, err := s.CheckNow(context.Background(), "ghost"); err == nil {
		t.Error("expected error for unknown tracker")
	}
}

func TestCheck_FailureLandsInStatus(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "kubernetes", true)

	// Seed a previous good status so the last version survives the failure.
	now := time.Now()
	if err := st.UpsertStatus(models.TrackerStatus{Name: "kubernetes", LastCheck: &now, LastVersion: "v1.29.0"}); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	prov := &fakeProvider{err: fmt.Errorf("%w: listing failed", provider.ErrRateLimited)}
	s := testScheduler(t, st, prov, &fakeDispatcher{})

	status, err := s.CheckNow(context.Background(), "kubernetes")
	if err != nil {
		t.Fatalf("check now: %v", err)
	}
	if status.Error == "" {
		t.Fatal("status error empty, want the provider failure")
	}
	if status.LastVersion != "v1.29.0" {
		t.Errorf("LastVersion = %q, want last-known-good v1.29.0", status.LastVersion)
	}

	persisted, _ := st.GetStatus("kubernetes")
	if persisted.Error == "" {
		t.Error("persisted status error empty, want the provider failure")
	}
}

func TestCheck_MissingCredentialFallsBackToAnonymous(t *testing.T) {
	st := testStore(t)
	tracker := addTracker(t, st, "kubernetes", true)
	tracker.CredentialName = "gone"
	if err := st.SaveTracker(&tracker); err != nil {
		t.Fatalf("save: %v", err)
	}

	var gotToken string
	prov := &fakeProvider{candidates: []provider.Candidate{
		{Tag: "v1.30.0", PublishedAt: time.Now(), CommitSHA: "aaa"},
	}}
	s, err := New(Opts{
		Store:      st,
		Dispatcher: &fakeDispatcher{},
		Resolve:    noSecrets,
		Providers: func(tr models.Tracker, token string) (provider.Provider, error) {
			gotToken = token
			return prov, nil
		},
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	status, err := s.CheckNow(context.Background(), "kubernetes")
	if err != nil {
		t.Fatalf("check now: %v", err)
	}
	if status.Error != "" {
		t.Errorf("status error = %q, want anonymous fallback to succeed", status.Error)
	}
	if gotToken != "" {
		t.Errorf("token = %q, want empty for anonymous access", gotToken)
	}
}

func TestCheck_ResolvesMissingSHALazily(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "kubernetes", true)

	prov := &fakeProvider{
		candidates: []provider.Candidate{
			{Tag: "v1.30.0", PublishedAt: time.Now()},
		},
		shas: map[string]string{"v1.30.0": "resolved-sha"},
	}
	s := testScheduler(t, st, prov, &fakeDispatcher{})

	if _, err := s.CheckNow(context.Background(), "kubernetes"); err != nil {
		t.Fatalf("check now: %v", err)
	}

	releases, _, _ := st.ListReleases(store.ReleaseFilter{})
	if len(releases) != 1 {
		t.Fatalf("recorded %d releases, want 1", len(releases))
	}
	if releases[0].CommitSHA != "resolved-sha" {
		t.Errorf("CommitSHA = %q, want lazily resolved", releases[0].CommitSHA)
	}
}

func TestCheckNow_CoalescesConcurrentChecks(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "kubernetes", true)

	gate := make(chan struct{})
	prov := &fakeProvider{
		candidates: []provider.Candidate{{Tag: "v1.30.0", PublishedAt: time.Now(), CommitSHA: "aaa"}},
		gate:       gate,
	}
	s := testScheduler(t, st, prov, &fakeDispatcher{})

	var wg sync.WaitGroup
	statuses := make([]models.TrackerStatus, 2)
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		statuses[0], errs[0] = s.CheckNow(context.Background(), "kubernetes")
	}()

	// Wait until the first check is in flight, then race a second trigger
	// against it. The gate holds the first check open so the second must
	// coalesce rather than fetch.
	deadline := time.Now().Add(2 * time.Second)
	for !s.Checking("kubernetes") {
		if time.Now().After(deadline) {
			t.Fatal("check never started")
		}
		time.Sleep(time.Millisecond)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		statuses[1], errs[1] = s.CheckNow(context.Background(), "kubernetes")
	}()
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("check %d: %v", i, errs[i])
		}
		if statuses[i].LastVersion != "v1.30.0" {
			t.Errorf("check %d LastVersion = %q, want v1.30.0", i, statuses[i].LastVersion)
		}
	}
	if got := prov.fetchCount(); got != 1 {
		t.Errorf("fetches = %d, want 1 (concurrent checks coalesce)", got)
	}
}

func TestStartStop_ArmsEnabledTrackersOnly(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "enabled-one", true)
	addTracker(t, st, "disabled-one", false)

	prov := &fakeProvider{candidates: []provider.Candidate{
		{Tag: "v1.0.0", PublishedAt: time.Now(), CommitSHA: "aaa"},
	}}
	s := testScheduler(t, st, prov, &fakeDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// The armed tracker checks immediately.
	deadline := time.Now().Add(2 * time.Second)
	for prov.fetchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("enabled tracker never checked")
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()

	if _, err := st.GetStatus("enabled-one"); err != nil {
		t.Errorf("enabled tracker has no status row: %v", err)
	}
	if _, err := st.GetStatus("disabled-one"); err == nil {
		t.Error("disabled tracker has a status row, want it never scheduled")
	}
}

func TestStart_Twice(t *testing.T) {
	st := testStore(t)
	s := testScheduler(t, st, &fakeProvider{}, &fakeDispatcher{})

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if err := s.Start(ctx); err == nil {
		t.Error("second Start succeeded, want error")
	}
}

func TestStartStop_Restart(t *testing.T) {
	st := testStore(t)
	addTracker(t, st, "etcd", true)

	prov := &fakeProvider{candidates: []provider.Candidate{
		{Tag: "v3.6.0", PublishedAt: time.Now(), CommitSHA: "aaa"},
	}}
	s := testScheduler(t, st, prov, &fakeDispatcher{})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for prov.fetchCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("tracker never checked after first start")
		}
		time.Sleep(time.Millisecond)
	}
	s.Stop()
	first := prov.fetchCount()

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer s.Stop()
	deadline = time.Now().Add(2 * time.Second)
	for prov.fetchCount() == first {
		if time.Now().After(deadline) {
			t.Fatal("tracker never checked after restart")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		name    string
		tracker models.Tracker
		check   func(time.Duration) bool
	}{
		{
			name:    "interval minutes",
			tracker: models.Tracker{Interval: 30},
			check:   func(d time.Duration) bool { return d == 30*time.Minute },
		},
		{
			name:    "zero interval falls back to default",
			tracker: models.Tracker{},
			check:   func(d time.Duration) bool { return d == 360*time.Minute },
		},
		{
			name:    "cron schedule wins over interval",
			tracker: models.Tracker{Schedule: "*/5 * * * *", Interval: 360},
			check:   func(d time.Duration) bool { return d > 0 && d <= 5*time.Minute },
		},
		{
			name:    "invalid cron falls back to interval",
			tracker: models.Tracker{Schedule: "not a cron", Interval: 15},
			check:   func(d time.Duration) bool { return d == 15*time.Minute },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := nextDelay(tt.tracker); !tt.check(d) {
				t.Errorf("nextDelay() = %v", d)
			}
		})
	}
}

func TestNew_Validation(t *testing.T) {
	st := testStore(t)
	if _, err := New(Opts{Dispatcher: &fakeDispatcher{}, Resolve: noSecrets}); err == nil {
		t.Error("expected error for missing store")
	}
	if _, err := New(Opts{Store: st, Resolve: noSecrets}); err == nil {
		t.Error("expected error for missing dispatcher")
	}
	if _, err := New(Opts{Store: st, Dispatcher: &fakeDispatcher{}}); err == nil {
		t.Error("expected error for missing resolver")
	}
}
