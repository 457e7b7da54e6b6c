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

package hostingservice

import (
	"context"
	"fmt"

	"github.com/google/go-github/v55/github"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
)

// JITRunner is the registration produced by GenerateJITConfig: the
// runner's GitHub-assigned ID and the base64-encoded JIT config blob
// the backend passes to the runner agent at boot (spec.md §3).
type JITRunner struct {
	ExternalID       int64
	EncodedJITConfig string
}

// GenerateJITConfig registers a just-in-time runner named name, scoped
// to runnerGroup and labels, and returns the opaque config the agent
// needs to self-configure (spec.md §4.3). The runner is visible to
// GitHub immediately in the "offline" state until the agent starts.
func (c *Client) GenerateJITConfig(ctx context.Context, name string, runnerGroupID int64, labels []string) (JITRunner, error) {
	req := &github.GenerateJITConfigRequest{
		Name:          name,
		RunnerGroupID: runnerGroupID,
		Labels:        labels,
		WorkFolder:    github.String("_work"),
	}

	var cfg *github.JITRunnerConfig
	err := withRetry(ctx, func() error {
		var resp *github.Response
		var innerErr error
		cfg, resp, innerErr = c.gh.Actions.GenerateOrgJITConfig(ctx, c.org, req)
		return parseError(resp, innerErr)
	})
	if err != nil {
		return JITRunner{}, fmt.Errorf("generating jit config for %s: %w", name, err)
	}

	return JITRunner{
		ExternalID:       cfg.Runner.GetID(),
		EncodedJITConfig: cfg.GetEncodedJITConfig(),
	}, nil
}

// Deregister removes the runner identified by externalID from the
// organization. It is idempotent: removing an already-removed runner
// is not an error (spec.md §4.4 delete transition).
func (c *Client) Deregister(ctx context.Context, externalID int64) error {
	err := withRetry(ctx, func() error {
		resp, innerErr := c.gh.Actions.RemoveOrganizationRunner(ctx, c.org, externalID)
		if err := parseError(resp, innerErr); err != nil && !runnerErrors.IsNotFound(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("deregistering runner %d: %w", externalID, err)
	}
	return nil
}

// RunnerGroupIDByName resolves a runner group's name to its GitHub ID,
// defaulting to the implicit "Default" group (id 1) when name is empty
// (spec.md §4.3, mirroring the teacher's entity-scoped lookup).
func (c *Client) RunnerGroupIDByName(ctx context.Context, name string) (int64, error) {
	if name == "" || name == "Default" || name == "default" {
		return 1, nil
	}

	opts := &github.ListOrgRunnerGroupOptions{ListOptions: github.ListOptions{PerPage: 100}}
	for {
		var groups *github.RunnerGroups
		err := withRetry(ctx, func() error {
			var resp *github.Response
			var innerErr error
			groups, resp, innerErr = c.gh.Actions.ListOrganizationRunnerGroups(ctx, c.org, opts)
			return parseError(resp, innerErr)
		})
		if err != nil {
			return 0, fmt.Errorf("listing runner groups: %w", err)
		}
		for _, g := range groups.RunnerGroups {
			if g.GetName() == name {
				return g.GetID(), nil
			}
		}
		if groups.TotalCount == 0 || len(groups.RunnerGroups) == 0 {
			break
		}
		opts.Page++
		if opts.Page*opts.PerPage >= groups.TotalCount {
			break
		}
	}
	return 0, fmt.Errorf("runner group %q not found", name)
}

// ListRunners returns every self-hosted runner currently registered to
// the organization, used by the indexing reconciler to detect
// registrations the store has lost track of (spec.md §4.5).
func (c *Client) ListRunners(ctx context.Context) ([]*github.Runner, error) {
	opts := &github.ListRunnersOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var all []*github.Runner
	for {
		var page *github.Runners
		err := withRetry(ctx, func() error {
			var resp *github.Response
			var innerErr error
			page, resp, innerErr = c.gh.Actions.ListOrganizationRunners(ctx, c.org, opts)
			return parseError(resp, innerErr)
		})
		if err != nil {
			return nil, fmt.Errorf("listing runners: %w", err)
		}
		all = append(all, page.Runners...)
		if len(page.Runners) < opts.PerPage {
			break
		}
		opts.Page++
	}
	return all, nil
}
