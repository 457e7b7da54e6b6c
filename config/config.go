// Copyright 2025 Cloudbase Solutions SRL
//
//	Licensed under the Apache License, Version 2.0 (the "License"); you may
//	not use this file except in compliance with the License. You may obtain
//	a copy of the License at
//
//	     http://www.apache.org/licenses/LICENSE-2.0
//
//	Unless required by applicable law or agreed to in writing, software
//	distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//	WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//	License for the specific language governing permissions and limitations
//	under the License.

// Package config loads and validates the runner-manager configuration
// (spec.md §6). The YAML file path comes from the -config flag of
// cmd/runner-manager or, when that flag is left at its default, from the
// RUNNER_MANAGER_CONFIG environment variable. NewConfig merges two
// sources in order, the YAML file and then the environment, each
// contributing a partial value that does not override an earlier
// source's. ArgsSource exists for program arguments but NewConfig does
// not use it, and there is no secret-file source. Every value is parsed
// into its typed Go
// representation once at startup; a malformed config is fatal.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/params"
)

// DefaultConfigFilePath is used when RUNNER_MANAGER_CONFIG is unset.
const DefaultConfigFilePath = "/etc/runner-manager/config.yaml"

// EnvironmentVariablePrefix namespaces the environment-override source.
const EnvironmentVariablePrefix = "RUNNER_MANAGER"

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelWarning LogLevel = "WARNING"
	LevelDebug   LogLevel = "DEBUG"
	LevelError   LogLevel = "ERROR"
)

// Config is the fully parsed, validated configuration for a
// runner-manager process.
type Config struct {
	Name        string       `yaml:"name"`
	RedisOMURL  string       `yaml:"redis_om_url"`
	APIKey      string       `yaml:"api_key"`
	LogLevel    LogLevel     `yaml:"log_level"`
	RunnerGroups []GroupConfig `yaml:"runner_groups"`

	TimeoutRunner        Duration `yaml:"timeout_runner"`
	TimeToLive           Duration `yaml:"time_to_live"`
	HealthcheckInterval  Duration `yaml:"healthcheck_interval"`
	IndexingInterval     Duration `yaml:"indexing_interval"`

	GithubBaseURL      string `yaml:"github_base_url"`
	GithubWebhookSecret string `yaml:"github_webhook_secret"`
	GithubToken        string `yaml:"github_token"`
	GithubAppID         int64  `yaml:"github_app_id"`
	GithubInstallationID int64 `yaml:"github_installation_id"`
	GithubPrivateKey    string `yaml:"github_private_key"`
	GithubClientID      string `yaml:"github_client_id"`
	GithubClientSecret  string `yaml:"github_client_secret"`

	// HTTP surface: webhook intake and the read-only management API
	// share one bind address and router (SPEC_FULL.md §6).
	BindAddress        string   `yaml:"bind_address"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	MetricsEnabled     bool     `yaml:"metrics_enabled"`
	WebhookQueueSize   int      `yaml:"webhook_queue_size"`
	EventLogSize       int      `yaml:"event_log_size"`

	// LogFile, if set, routes logs through a rotating file writer
	// instead of stdout (see util.GetLoggingWriter).
	LogFile string `yaml:"log_file"`
}

// GroupConfig is a runner_groups entry: the data-model RunnerGroup
// plus the backend discriminator's provider-specific config.
type GroupConfig struct {
	params.RunnerGroup `yaml:",inline"`
	Backend             BackendConfig `yaml:"backend"`
}

// BackendConfig carries exactly one of the three provider-specific
// config blocks, selected by RunnerGroup.Provider (SPEC_FULL.md §9).
type BackendConfig struct {
	Local  *LocalConfig  `yaml:"local,omitempty"`
	Docker *DockerConfig `yaml:"docker,omitempty"`
	GCP    *GCPConfig    `yaml:"gcp,omitempty"`
}

type LocalConfig struct {
	WorkDir    string `yaml:"work_dir"`
	RunnerPath string `yaml:"runner_path"`
}

type DockerConfig struct {
	Host        string `yaml:"host"`
	Image       string `yaml:"image"`
	NetworkMode string `yaml:"network_mode"`
}

type GCPConfig struct {
	ProjectID    string `yaml:"project_id"`
	Zone         string `yaml:"zone"`
	MachineType  string `yaml:"machine_type"`
	ImageProject string `yaml:"image_project"`
	ImageFamily  string `yaml:"image_family"`
	Network      string `yaml:"network"`
	Subnetwork   string `yaml:"subnetwork"`
	DiskSizeGB   int64  `yaml:"disk_size_gb"`
	DiskType     string `yaml:"disk_type"`
}

// defaults applies the defaults named in spec.md §6 before validation.
func (c *Config) defaults() {
	if c.TimeoutRunner.Duration == 0 {
		c.TimeoutRunner.Duration = 15 * time.Minute
	}
	if c.TimeToLive.Duration == 0 {
		c.TimeToLive.Duration = 12 * time.Hour
	}
	if c.HealthcheckInterval.Duration == 0 {
		c.HealthcheckInterval.Duration = 15 * time.Minute
	}
	if c.IndexingInterval.Duration == 0 {
		c.IndexingInterval.Duration = time.Hour
	}
	if c.LogLevel == "" {
		c.LogLevel = LevelInfo
	}
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0:8080"
	}
	if c.WebhookQueueSize == 0 {
		c.WebhookQueueSize = 256
	}
	if c.EventLogSize == 0 {
		c.EventLogSize = 1000
	}
	for i := range c.RunnerGroups {
		c.RunnerGroups[i].Manager = c.Name
	}
}

// Validate checks the fatal-at-startup invariants from spec.md §7.
func (c *Config) Validate() error {
	if c.Name == "" {
		return runnerErrors.NewConfigError("name is required")
	}
	if c.RedisOMURL == "" {
		return runnerErrors.NewConfigError("redis_om_url is required")
	}
	if c.APIKey == "" {
		return runnerErrors.NewConfigError("api_key is required")
	}

	switch c.LogLevel {
	case LevelInfo, LevelWarning, LevelDebug, LevelError:
	default:
		return runnerErrors.NewConfigError("invalid log_level %q", c.LogLevel)
	}

	if err := c.validateGithubAuth(); err != nil {
		return err
	}

	names := map[string]int{}
	for _, g := range c.RunnerGroups {
		if err := g.RunnerGroup.Validate(); err != nil {
			return fmt.Errorf("invalid runner group: %w", err)
		}
		if err := g.Backend.validate(g.Provider); err != nil {
			return fmt.Errorf("invalid backend config for group %s: %w", g.Name, err)
		}
		names[g.Name]++
	}
	for name, count := range names {
		if count > 1 {
			return runnerErrors.NewConfigError("duplicate runner group name %q", name)
		}
	}

	return nil
}

// validateGithubAuth implements the auth precedence from spec.md §4.3
// and §8 (S6): app-installation auth is used when app id, installation
// id and private key are all non-empty; otherwise the bearer token is
// used; with neither, startup fails.
func (c *Config) validateGithubAuth() error {
	hasApp := c.GithubAppID != 0 && c.GithubInstallationID != 0 && c.GithubPrivateKey != ""
	hasToken := c.GithubToken != ""
	if !hasApp && !hasToken {
		return runnerErrors.ErrConfigMissingAuth
	}
	return nil
}

// UseAppAuth reports whether the app-installation strategy takes
// precedence over the bearer token, per spec.md §4.3.
func (c *Config) UseAppAuth() bool {
	return c.GithubAppID != 0 && c.GithubInstallationID != 0 && c.GithubPrivateKey != ""
}

func (b BackendConfig) validate(provider params.Provider) error {
	switch provider {
	case params.ProviderLocal:
		if b.Local == nil {
			return runnerErrors.NewConfigError("missing local backend config")
		}
	case params.ProviderDocker:
		if b.Docker == nil {
			return runnerErrors.NewConfigError("missing docker backend config")
		}
	case params.ProviderGCP:
		if b.GCP == nil {
			return runnerErrors.NewConfigError("missing gcp backend config")
		}
	}
	return nil
}

// NewConfig loads the YAML file at path, merges environment overrides
// under it (the file wins where both set a field) and validates the
// result. Program arguments and secret files are not among its sources.
func NewConfig(path string) (*Config, error) {
	sources := []Source{
		FileSource(path),
		EnvironmentSource(EnvironmentVariablePrefix),
	}
	cfg, err := Load(sources...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return data, nil
}

func decodeYAML(data []byte, out *Config) error {
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding yaml: %w", err)
	}
	return nil
}
