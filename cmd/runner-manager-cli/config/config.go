// Copyright 2022 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAppFolder      = "runner-manager-cli"
	DefaultConfigFileName = "config.toml"
)

var ErrNoActiveProfile = fmt.Errorf("no active profile; run 'login' first")

func getConfigFilePath() (string, error) {
	configDir, err := getHomeDir()
	if err != nil {
		return "", fmt.Errorf("error fetching home folder: %w", err)
	}

	if err := ensureHomeDir(configDir); err != nil {
		return "", fmt.Errorf("error ensuring config dir: %w", err)
	}

	return filepath.Join(configDir, DefaultConfigFileName), nil
}

// LoadConfig reads the profile store, returning an empty Config if it
// does not exist yet.
func LoadConfig() (*Config, error) {
	cfgFile, err := getConfigFilePath()
	if err != nil {
		return nil, fmt.Errorf("error fetching config: %w", err)
	}

	if _, err := os.Stat(cfgFile); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("error accessing config file: %w", err)
	}

	var cfg Config
	if _, err := toml.DecodeFile(cfgFile, &cfg); err != nil {
		return nil, fmt.Errorf("error decoding toml: %w", err)
	}

	return &cfg, nil
}

// Config is the CLI's on-disk profile store: every runner-manager
// installation the operator has logged into, and which one is active.
type Config struct {
	mux           sync.Mutex
	Profiles      []Profile `toml:"profile"`
	ActiveProfile string    `toml:"active_profile"`
}

// Profile is a single named runner-manager installation: its
// management API base URL and the api_key to present (spec.md §6).
type Profile struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

func (c *Config) HasProfile(name string) bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	for _, p := range c.Profiles {
		if p.Name == name {
			return true
		}
	}
	return false
}

// SetProfile adds profile, or replaces the one with the same name.
func (c *Config) SetProfile(profile Profile) {
	c.mux.Lock()
	defer c.mux.Unlock()
	for i, p := range c.Profiles {
		if p.Name == profile.Name {
			c.Profiles[i] = profile
			return
		}
	}
	c.Profiles = append(c.Profiles, profile)
}

func (c *Config) DeleteProfile(name string) {
	c.mux.Lock()
	defer c.mux.Unlock()
	newProfiles := make([]Profile, 0, len(c.Profiles))
	for _, p := range c.Profiles {
		if p.Name == name {
			continue
		}
		newProfiles = append(newProfiles, p)
	}
	c.Profiles = newProfiles
	if c.ActiveProfile == name {
		c.ActiveProfile = ""
		if len(c.Profiles) > 0 {
			c.ActiveProfile = c.Profiles[0].Name
		}
	}
}

func (c *Config) GetActiveProfile() (Profile, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.ActiveProfile == "" {
		return Profile{}, ErrNoActiveProfile
	}
	for _, p := range c.Profiles {
		if p.Name == c.ActiveProfile {
			return p, nil
		}
	}
	return Profile{}, ErrNoActiveProfile
}

func (c *Config) SaveConfig() error {
	c.mux.Lock()
	defer c.mux.Unlock()
	cfgFile, err := getConfigFilePath()
	if err != nil {
		return fmt.Errorf("error getting config path: %w", err)
	}

	f, err := os.Create(cfgFile)
	if err != nil {
		return fmt.Errorf("error getting file handle: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	return nil
}
