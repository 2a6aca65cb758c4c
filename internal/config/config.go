// Package config provides YAML-based configuration loading for Signalbox.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultInterval is the fallback check interval in minutes.
const DefaultInterval = 360

// Config is the top-level Signalbox configuration, loaded from signalbox.yaml.
type Config struct {
	Listen    string           `yaml:"listen"`
	Database  DatabaseConfig   `yaml:"database"`
	Check     CheckConfig      `yaml:"check"`
	Trackers  []TrackerConfig  `yaml:"trackers"`
	Notifiers []NotifierConfig `yaml:"notifiers"`
}

// DatabaseConfig holds connection settings for the release store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// CheckConfig holds defaults applied to tracker checks.
type CheckConfig struct {
	Interval int `yaml:"interval"` // minutes between scheduled checks
	Timeout  int `yaml:"timeout"`  // seconds per check cycle
}

// TrackerConfig declares one watched upstream source. Trackers from the
// config file are upserted into the store at migrate time; API edits win
// afterwards.
type TrackerConfig struct {
	Name            string          `yaml:"name"`
	Type            string          `yaml:"type"`
	Repo            string          `yaml:"repo"`
	Instance        string          `yaml:"instance"`
	Project         string          `yaml:"project"`
	Chart           string          `yaml:"chart"`
	CredentialName  string          `yaml:"credential_name"`
	Interval        int             `yaml:"interval"`
	Schedule        string          `yaml:"schedule"`
	RepublishOnBody *bool           `yaml:"republish_on_body"`
	Enabled         *bool           `yaml:"enabled"`
	Description     string          `yaml:"description"`
	Channels        []ChannelConfig `yaml:"channels"`
}

// ChannelConfig declares one classification rule for a tracker.
type ChannelConfig struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	IncludePattern string `yaml:"include_pattern"`
	ExcludePattern string `yaml:"exclude_pattern"`
	Enabled        *bool  `yaml:"enabled"`
}

// NotifierConfig declares one notification endpoint.
type NotifierConfig struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	URL     string   `yaml:"url"`
	Events  []string `yaml:"events"`
	Enabled *bool    `yaml:"enabled"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "signalbox.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Check.Interval == 0 {
		c.Check.Interval = DefaultInterval
	}
	if c.Check.Timeout == 0 {
		c.Check.Timeout = 60
	}
	for i := range c.Trackers {
		if c.Trackers[i].Interval == 0 {
			c.Trackers[i].Interval = c.Check.Interval
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	for i, t := range c.Trackers {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("trackers[%d].name is required", i))
		}
		switch t.Type {
		case "github":
			if t.Repo == "" {
				errs = append(errs, fmt.Sprintf("trackers[%d].repo is required for github", i))
			}
		case "gitlab":
			if t.Project == "" {
				errs = append(errs, fmt.Sprintf("trackers[%d].project is required for gitlab", i))
			}
		case "helm":
			if t.Repo == "" {
				errs = append(errs, fmt.Sprintf("trackers[%d].repo is required for helm", i))
			}
			if t.Chart == "" {
				errs = append(errs, fmt.Sprintf("trackers[%d].chart is required for helm", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("trackers[%d].type %q is not supported (github, gitlab, helm)", i, t.Type))
		}
		if t.Interval < 0 {
			errs = append(errs, fmt.Sprintf("trackers[%d].interval must be positive", i))
		}
		for j, ch := range t.Channels {
			if ch.Name == "" {
				errs = append(errs, fmt.Sprintf("trackers[%d].channels[%d].name is required", i, j))
			}
			switch ch.Type {
			case "", "release", "prerelease":
			default:
				errs = append(errs, fmt.Sprintf("trackers[%d].channels[%d].type %q is not supported (release, prerelease)", i, j, ch.Type))
			}
		}
	}
	for i, n := range c.Notifiers {
		if n.Name == "" {
			errs = append(errs, fmt.Sprintf("notifiers[%d].name is required", i))
		}
		switch n.Type {
		case "webhook", "slack", "discord":
		default:
			errs = append(errs, fmt.Sprintf("notifiers[%d].type %q is not supported (webhook, slack, discord)", i, n.Type))
		}
		if n.URL == "" {
			errs = append(errs, fmt.Sprintf("notifiers[%d].url is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// BoolOr returns the value of an optional YAML bool, or fallback when unset.
func BoolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}
