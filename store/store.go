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

// Package store implements the persisted runner index from spec.md
// §4.2: a mapping from runner identity to its Runner record, with
// secondary lookups by status, group, instance id, external id and
// label. The store does not enforce the lifecycle invariants (spec.md
// §3); the lifecycle manager does.
package store

import (
	"context"

	"github.com/harryfinbow/runner-manager/params"
)

// Filter selects runners by one or more secondary-index fields. Zero
// fields are ignored; a zero-value Filter matches every runner.
// Non-zero fields are ANDed together.
type Filter struct {
	Status     params.RunnerStatus
	Group      string
	InstanceID string
	ExternalID string
	Label      string
}

// Store is the runner store contract consumed by the lifecycle
// manager, the reconcilers and the webhook dispatcher.
type Store interface {
	// Save upserts a runner record, keyed by its Name, and maintains
	// every secondary index. Returns ErrDuplicateEntity if InstanceID
	// or ExternalID collides with a different runner's.
	Save(ctx context.Context, runner params.Runner) (params.Runner, error)

	// Find returns the runners matching filter.
	Find(ctx context.Context, filter Filter) ([]params.Runner, error)

	// FindFirst returns the first runner matching filter, in no
	// particular order beyond what the backing index provides.
	// Returns ErrNotFound if none match.
	FindFirst(ctx context.Context, filter Filter) (params.Runner, error)

	// Get returns a single runner by identity. Returns ErrNotFound if
	// absent.
	Get(ctx context.Context, name string) (params.Runner, error)

	// Delete removes a runner record and all of its secondary index
	// entries. Deleting an absent runner is not an error.
	Delete(ctx context.Context, name string) error

	// All returns every persisted runner.
	All(ctx context.Context) ([]params.Runner, error)

	// Close releases any underlying connection.
	Close() error
}
