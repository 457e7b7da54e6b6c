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

package lifecycle

import (
	"context"

	"github.com/google/go-github/v55/github"

	"github.com/harryfinbow/runner-manager/hostingservice"
)

// HostingClient is the subset of hostingservice.Client the lifecycle
// manager and the indexing reconciler depend on, narrowed to an
// interface so tests can substitute a stub instead of a live GitHub
// connection (grounded on the teacher's runner/common.GithubClient
// interface, used for the same purpose).
type HostingClient interface {
	GenerateJITConfig(ctx context.Context, name string, runnerGroupID int64, labels []string) (hostingservice.JITRunner, error)
	Deregister(ctx context.Context, externalID int64) error
	RunnerGroupIDByName(ctx context.Context, name string) (int64, error)
	ListRunners(ctx context.Context) ([]*github.Runner, error)
}

var _ HostingClient = (*hostingservice.Client)(nil)
