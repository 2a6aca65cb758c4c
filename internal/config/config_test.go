package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
listen: ":9090"

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: signalbox
  user: sbx
  password: hunter2

check:
  interval: 120
  timeout: 30

trackers:
  - name: kubernetes
    type: github
    repo: kubernetes/kubernetes
    credential_name: gh-main
    interval: 60
    channels:
      - name: stable
        type: release
        include_pattern: '^v\d+\.\d+\.\d+$'
        enabled: true
      - name: prerelease
        type: prerelease
        enabled: true

  - name: gitlab-runner
    type: gitlab
    instance: https://gitlab.com
    project: gitlab-org/gitlab-runner
    channels:
      - name: stable
        type: release
        enabled: true

  - name: ingress-nginx
    type: helm
    repo: https://kubernetes.github.io/ingress-nginx
    chart: ingress-nginx
    schedule: "0 6 * * *"
    channels:
      - name: stable
        type: release
        enabled: true

notifiers:
  - name: team-hook
    type: webhook
    url: https://hooks.example.com/releases
    events: [new_release, republish]
`

const minimalYAML = `
trackers:
  - name: etcd
    type: github
    repo: etcd-io/etcd
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9090")
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "mysql")
	}
	if cfg.Database.Host != "10.0.0.5" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "10.0.0.5")
	}
	if cfg.Database.Port != 3307 {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, 3307)
	}
	if cfg.Check.Interval != 120 {
		t.Errorf("Check.Interval = %d, want 120", cfg.Check.Interval)
	}
	if cfg.Check.Timeout != 30 {
		t.Errorf("Check.Timeout = %d, want 30", cfg.Check.Timeout)
	}
	if len(cfg.Trackers) != 3 {
		t.Fatalf("len(Trackers) = %d, want 3", len(cfg.Trackers))
	}

	k8s := cfg.Trackers[0]
	if k8s.Name != "kubernetes" {
		t.Errorf("Trackers[0].Name = %q, want %q", k8s.Name, "kubernetes")
	}
	if k8s.Type != "github" {
		t.Errorf("Trackers[0].Type = %q, want %q", k8s.Type, "github")
	}
	if k8s.Interval != 60 {
		t.Errorf("Trackers[0].Interval = %d, want 60", k8s.Interval)
	}
	if len(k8s.Channels) != 2 {
		t.Fatalf("len(Trackers[0].Channels) = %d, want 2", len(k8s.Channels))
	}
	if k8s.Channels[0].IncludePattern != `^v\d+\.\d+\.\d+$` {
		t.Errorf("include pattern = %q, want %q", k8s.Channels[0].IncludePattern, `^v\d+\.\d+\.\d+$`)
	}

	runner := cfg.Trackers[1]
	if runner.Instance != "https://gitlab.com" {
		t.Errorf("Trackers[1].Instance = %q, want %q", runner.Instance, "https://gitlab.com")
	}
	if runner.Project != "gitlab-org/gitlab-runner" {
		t.Errorf("Trackers[1].Project = %q, want %q", runner.Project, "gitlab-org/gitlab-runner")
	}

	nginx := cfg.Trackers[2]
	if nginx.Chart != "ingress-nginx" {
		t.Errorf("Trackers[2].Chart = %q, want %q", nginx.Chart, "ingress-nginx")
	}
	if nginx.Schedule != "0 6 * * *" {
		t.Errorf("Trackers[2].Schedule = %q, want %q", nginx.Schedule, "0 6 * * *")
	}

	if len(cfg.Notifiers) != 1 {
		t.Fatalf("len(Notifiers) = %d, want 1", len(cfg.Notifiers))
	}
	if cfg.Notifiers[0].Type != "webhook" {
		t.Errorf("Notifiers[0].Type = %q, want %q", cfg.Notifiers[0].Type, "webhook")
	}
	if len(cfg.Notifiers[0].Events) != 2 {
		t.Errorf("len(Notifiers[0].Events) = %d, want 2", len(cfg.Notifiers[0].Events))
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want %q (default)", cfg.Listen, ":8080")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want %q (default)", cfg.Database.Driver, "sqlite")
	}
	if cfg.Database.Path != "signalbox.db" {
		t.Errorf("Database.Path = %q, want %q (default)", cfg.Database.Path, "signalbox.db")
	}
	if cfg.Check.Interval != DefaultInterval {
		t.Errorf("Check.Interval = %d, want %d (default)", cfg.Check.Interval, DefaultInterval)
	}
	if cfg.Check.Timeout != 60 {
		t.Errorf("Check.Timeout = %d, want 60 (default)", cfg.Check.Timeout)
	}
	if cfg.Trackers[0].Interval != DefaultInterval {
		t.Errorf("Trackers[0].Interval = %d, want %d (inherited default)", cfg.Trackers[0].Interval, DefaultInterval)
	}
}

func TestParse_TrackerInterval_InheritsCheckInterval(t *testing.T) {
	yaml := `
check:
  interval: 45
trackers:
  - name: etcd
    type: github
    repo: etcd-io/etcd
  - name: vault
    type: github
    repo: hashicorp/vault
    interval: 15
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Trackers[0].Interval != 45 {
		t.Errorf("Trackers[0].Interval = %d, want 45 (inherited)", cfg.Trackers[0].Interval)
	}
	if cfg.Trackers[1].Interval != 15 {
		t.Errorf("Trackers[1].Interval = %d, want 15 (explicit)", cfg.Trackers[1].Interval)
	}
}

func TestParse_MySQLDefaults(t *testing.T) {
	yaml := `
database:
  driver: mysql
  name: signalbox
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Host != "127.0.0.1" {
		t.Errorf("Database.Host = %q, want %q (default)", cfg.Database.Host, "127.0.0.1")
	}
	if cfg.Database.Port != 3306 {
		t.Errorf("Database.Port = %d, want %d (default)", cfg.Database.Port, 3306)
	}
	if cfg.Database.User != "root" {
		t.Errorf("Database.User = %q, want %q (default)", cfg.Database.User, "root")
	}
}

func TestParse_MySQLMissingName(t *testing.T) {
	yaml := `
database:
  driver: mysql
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for mysql without database name")
	}
	if !strings.Contains(err.Error(), "database.name is required for mysql") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "database.name is required for mysql")
	}
}

func TestParse_UnsupportedDriver(t *testing.T) {
	yaml := `
database:
  driver: postgres
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), `database.driver "postgres" is not supported`) {
		t.Errorf("error = %q, want to mention unsupported driver", err.Error())
	}
}

func TestParse_TrackerMissingName(t *testing.T) {
	yaml := `
trackers:
  - type: github
    repo: etcd-io/etcd
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for tracker missing name")
	}
	if !strings.Contains(err.Error(), "trackers[0].name is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "trackers[0].name is required")
	}
}

func TestParse_GitHubTrackerMissingRepo(t *testing.T) {
	yaml := `
trackers:
  - name: etcd
    type: github
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for github tracker without repo")
	}
	if !strings.Contains(err.Error(), "trackers[0].repo is required for github") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "trackers[0].repo is required for github")
	}
}

func TestParse_GitLabTrackerMissingProject(t *testing.T) {
	yaml := `
trackers:
  - name: runner
    type: gitlab
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for gitlab tracker without project")
	}
	if !strings.Contains(err.Error(), "trackers[0].project is required for gitlab") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "trackers[0].project is required for gitlab")
	}
}

func TestParse_HelmTrackerMissingChart(t *testing.T) {
	yaml := `
trackers:
  - name: nginx
    type: helm
    repo: https://kubernetes.github.io/ingress-nginx
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for helm tracker without chart")
	}
	if !strings.Contains(err.Error(), "trackers[0].chart is required for helm") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "trackers[0].chart is required for helm")
	}
}

func TestParse_UnsupportedTrackerType(t *testing.T) {
	yaml := `
trackers:
  - name: weird
    type: svn
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for unsupported tracker type")
	}
	if !strings.Contains(err.Error(), `trackers[0].type "svn" is not supported`) {
		t.Errorf("error = %q, want to mention unsupported type", err.Error())
	}
}

func TestParse_UnsupportedChannelType(t *testing.T) {
	yaml := `
trackers:
  - name: etcd
    type: github
    repo: etcd-io/etcd
    channels:
      - name: stable
        type: nightly
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error for unsupported channel type")
	}
	if !strings.Contains(err.Error(), `trackers[0].channels[0].type "nightly" is not supported`) {
		t.Errorf("error = %q, want to mention unsupported channel type", err.Error())
	}
}

func TestParse_NotifierValidation(t *testing.T) {
	yaml := `
notifiers:
  - type: pigeon
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "notifiers[0].name is required") {
		t.Errorf("error missing 'notifiers[0].name is required': %s", msg)
	}
	if !strings.Contains(msg, `notifiers[0].type "pigeon" is not supported`) {
		t.Errorf("error missing unsupported notifier type: %s", msg)
	}
	if !strings.Contains(msg, "notifiers[0].url is required") {
		t.Errorf("error missing 'notifiers[0].url is required': %s", msg)
	}
}

func TestParse_MultipleValidationErrors(t *testing.T) {
	yaml := `
database:
  driver: oracle
trackers:
  - name: etcd
    type: github
`
	_, err := Parse([]byte(yaml))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, `database.driver "oracle" is not supported`) {
		t.Errorf("error missing driver complaint: %s", msg)
	}
	if !strings.Contains(msg, "trackers[0].repo is required for github") {
		t.Errorf("error missing repo complaint: %s", msg)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte(":::invalid"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestParse_EmptyConfigIsValid(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite default", cfg.Database.Driver)
	}
	if len(cfg.Trackers) != 0 {
		t.Errorf("len(Trackers) = %d, want 0", len(cfg.Trackers))
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "signalbox.yaml")
	if err := os.WriteFile(path, []byte(minimalYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Trackers[0].Name != "etcd" {
		t.Errorf("Trackers[0].Name = %q, want %q", cfg.Trackers[0].Name, "etcd")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/signalbox.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: read")
	}
}

// --- Fixture-based tests using testdata/ files ---

func TestLoad_FullFixture(t *testing.T) {
	cfg, err := Load("testdata/valid_full.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9090")
	}
	if len(cfg.Trackers) != 3 {
		t.Fatalf("len(Trackers) = %d, want 3", len(cfg.Trackers))
	}
	if len(cfg.Notifiers) != 2 {
		t.Fatalf("len(Notifiers) = %d, want 2", len(cfg.Notifiers))
	}
}

func TestLoad_MinimalFixture(t *testing.T) {
	cfg, err := Load("testdata/valid_minimal.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want default %q", cfg.Listen, ":8080")
	}
}

func TestLoad_BadTrackerFixture(t *testing.T) {
	_, err := Load("testdata/bad_tracker.yaml")
	if err == nil {
		t.Fatal("expected error for bad tracker fixture")
	}
	if !strings.Contains(err.Error(), "config: validation failed") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: validation failed")
	}
}

func TestLoad_InvalidYAMLFixture(t *testing.T) {
	_, err := Load("testdata/invalid.yaml")
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse:") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "config: parse:")
	}
}

func TestBoolOr(t *testing.T) {
	yes := true
	no := false
	if !BoolOr(nil, true) {
		t.Error("BoolOr(nil, true) = false, want true")
	}
	if BoolOr(nil, false) {
		t.Error("BoolOr(nil, false) = true, want false")
	}
	if !BoolOr(&yes, false) {
		t.Error("BoolOr(&true, false) = false, want true")
	}
	if BoolOr(&no, true) {
		t.Error("BoolOr(&false, true) = true, want false")
	}
}
