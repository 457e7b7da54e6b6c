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

package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harryfinbow/runner-manager/backend"
	"github.com/harryfinbow/runner-manager/lifecycle"
	"github.com/harryfinbow/runner-manager/params"
	"github.com/harryfinbow/runner-manager/store"
)

// indexEntry tracks which of the three sources a runner name was seen
// in, for the union-by-name reconciliation of spec.md §4.5.
type indexEntry struct {
	inStore     bool
	inBackend   bool
	inHosting   bool
	storeRunner params.Runner
	externalID  int64
}

// tickIndexing executes the indexing reconciler (spec.md §4.5): for
// every group, union the hosting service's runner list, the backend's
// instance list (filtered to instances carrying this manager's
// label), and the store, by runner name. Present everywhere is a
// no-op; four other combinations each resolve to one action. A name
// found in the store and the hosting service but not the backend, or
// in the backend and the hosting service but not the store, is left
// alone.
func (r *Runner) tickIndexing(ctx context.Context) error {
	groups := r.manager.Groups()
	return forEachBounded(ctx, groups, func(ctx context.Context, group string) error {
		return r.indexGroup(ctx, group)
	})
}

func (r *Runner) indexGroup(ctx context.Context, group string) error {
	rt, err := r.manager.RuntimeFor(group)
	if err != nil {
		return fmt.Errorf("resolving runtime for group %s: %w", group, err)
	}

	callCtx, cancel := r.callCtx(ctx)
	defer cancel()

	storeRunners, err := r.store.Find(callCtx, store.Filter{Group: group})
	if err != nil {
		return fmt.Errorf("listing store runners for group %s: %w", group, err)
	}

	instances, err := rt.Backend.List(callCtx)
	if err != nil {
		return fmt.Errorf("listing backend instances for group %s: %w", group, err)
	}

	hostingRunners, err := rt.Hosting.ListRunners(callCtx)
	if err != nil {
		return fmt.Errorf("listing hosting-service runners for group %s: %w", group, err)
	}

	entries := map[string]*indexEntry{}
	for _, runner := range storeRunners {
		entries[runner.Name] = &indexEntry{inStore: true, storeRunner: runner}
	}
	for _, inst := range instances {
		if inst.Labels[backend.GroupLabel] != backend.SanitizeLabelValue(group) {
			continue
		}
		e, ok := entries[inst.Name]
		if !ok {
			e = &indexEntry{}
			entries[inst.Name] = e
		}
		e.inBackend = true
	}
	for _, hr := range hostingRunners {
		e, ok := entries[hr.GetName()]
		if !ok {
			e = &indexEntry{}
			entries[hr.GetName()] = e
		}
		e.inHosting = true
		e.externalID = hr.GetID()
	}

	for name, e := range entries {
		r.reconcileEntry(callCtx, rt, name, e)
	}
	return nil
}

func (r *Runner) reconcileEntry(ctx context.Context, rt lifecycle.GroupRuntime, name string, e *indexEntry) {
	switch {
	case e.inStore && e.inBackend && e.inHosting:
		// Present everywhere: no-op.
		return

	case e.inStore && e.inBackend && !e.inHosting:
		// Absent from the hosting service: only act once the
		// provisioning grace period has elapsed, since a freshly
		// created runner is briefly unregistered by design.
		if !e.storeRunner.CreatedAt.IsZero() {
			expired, err := r.manager.Timeout(ctx, e.storeRunner)
			if err != nil {
				r.logger.Error("indexing timeout check failed", slog.String("runner", name), slog.Any("error", err))
				return
			}
			if expired {
				r.logger.Info("indexing deleted runner absent from hosting service", slog.String("runner", name))
			}
		}

	case !e.inStore && !e.inBackend && e.inHosting:
		// In hosting service only: deregister the stray registration.
		if err := rt.Hosting.Deregister(ctx, e.externalID); err != nil {
			r.logger.Error("indexing deregister failed", slog.String("runner", name), slog.Any("error", err))
			return
		}
		r.logger.Info("indexing deregistered stray hosting-service runner", slog.String("runner", name))

	case !e.inStore && e.inBackend && !e.inHosting:
		// In backend only, carrying our manager label: an orphaned
		// instance the store never recorded (or already forgot).
		// Deleted directly through the backend; there is no store
		// record to drive through the lifecycle manager's Delete.
		if err := r.deleteOrphanInstance(ctx, rt, name); err != nil {
			r.logger.Error("indexing orphan instance delete failed", slog.String("runner", name), slog.Any("error", err))
			return
		}
		r.logger.Info("indexing deleted orphaned backend instance", slog.String("runner", name))

	case e.inStore && !e.inBackend && !e.inHosting:
		// In the store only: both externally observable copies are
		// gone. Drop the dangling record.
		if err := r.store.Delete(ctx, name); err != nil {
			r.logger.Error("indexing drop-from-store failed", slog.String("runner", name), slog.Any("error", err))
			return
		}
		r.logger.Info("indexing dropped dangling store record", slog.String("runner", name))
	}
}

// deleteOrphanInstance resolves name to a backend instance ID via
// List (the store has no record to carry the ID) and deletes it.
func (r *Runner) deleteOrphanInstance(ctx context.Context, rt lifecycle.GroupRuntime, name string) error {
	instances, err := rt.Backend.List(ctx)
	if err != nil {
		return err
	}
	for _, inst := range instances {
		if inst.Name == name {
			return rt.Backend.Delete(ctx, inst.ID)
		}
	}
	return nil
}
