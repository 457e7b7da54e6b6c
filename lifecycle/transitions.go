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
	"fmt"
	"log/slog"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/locking"
	"github.com/harryfinbow/runner-manager/metrics"
	"github.com/harryfinbow/runner-manager/params"
)

// ErrNotReady is returned by Pickup when the runner's registration has
// not yet been observed (still offline). The webhook dispatcher
// re-queues on this error up to its bounded retry budget (spec.md §5,
// resolving the "concurrent in_progress before registration" open
// question).
var ErrNotReady = runnerErrors.NewBackendUnavailableError("runner not yet registered")

// RegisterCompletion executes transition 2: when a runner name returned
// by the hosting service's runner list matches a provisioning record,
// the record is promoted to idle (persisted as StatusOnline, per the
// data model's literal invariant text) and its external id recorded.
func (m *Manager) RegisterCompletion(ctx context.Context, name string, externalID int64) error {
	if err := locking.LockWithContext(ctx, runnerLockKey(name), m.managerName); err != nil {
		return fmt.Errorf("acquiring runner lock for %s: %w", name, err)
	}
	defer locking.Unlock(runnerLockKey(name), false)

	runner, err := m.store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("loading runner %s: %w", name, err)
	}

	if runner.Status != params.StatusOffline {
		// Already registered (or past registration); idempotent no-op.
		return nil
	}

	runner.Status = params.StatusOnline
	runner.ExternalID = fmt.Sprintf("%d", externalID)

	saved, err := m.store.Save(ctx, runner)
	if err != nil {
		return fmt.Errorf("saving registered runner %s: %w", name, err)
	}
	setRunnerStatusMetric(saved, m.providerFor(runner.Group))
	m.recordEvent("runner_registered", runner.Group, name, fmt.Sprintf("external id %d", externalID))
	m.logger.Info("runner registered", slog.String("runner", name), slog.Int64("external_id", externalID))
	return nil
}

// providerFor returns the backend provider name for group, or "" if
// the group is unknown. Used only to label metrics; never returns an
// error since a missing group there is diagnostic, not fatal.
func (m *Manager) providerFor(group string) string {
	rt, ok := m.groups[group]
	if !ok {
		return ""
	}
	return string(rt.Group.Provider)
}

// Pickup executes transition 3: workflow_job.in_progress moves a
// runner from idle (StatusOnline) to busy. Receiving the same event
// twice is a no-op that never overwrites PickedUpAt (spec.md §8 S5).
// A completed runner never moves back to busy (§8 invariant 6).
func (m *Manager) Pickup(ctx context.Context, name, workflowName, repositoryName string, jobID int64) error {
	if err := locking.LockWithContext(ctx, runnerLockKey(name), m.managerName); err != nil {
		return fmt.Errorf("acquiring runner lock for %s: %w", name, err)
	}
	defer locking.Unlock(runnerLockKey(name), false)

	runner, err := m.store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("loading runner %s: %w", name, err)
	}

	switch runner.Status {
	case params.StatusBusy, params.StatusCompleted:
		// Forward-only: a duplicate in_progress or one arriving after
		// completion is a no-op.
		return nil
	case params.StatusOffline:
		return ErrNotReady
	case params.StatusOnline:
		// proceeds below
	default:
		return runnerErrors.NewBackendUnavailableError("runner %s in unexpected status %s", name, runner.Status)
	}

	runner.Status = params.StatusBusy
	runner.Busy = true
	runner.PickedUpAt = now()
	runner.WorkflowJobID = jobID
	runner.WorkflowName = workflowName
	runner.RepositoryName = repositoryName

	saved, err := m.store.Save(ctx, runner)
	if err != nil {
		return fmt.Errorf("saving picked-up runner %s: %w", name, err)
	}
	setRunnerStatusMetric(saved, m.providerFor(runner.Group))
	m.recordEvent("runner_picked_up", runner.Group, name, fmt.Sprintf("workflow %s", workflowName))
	m.logger.Info("runner picked up job", slog.String("runner", name), slog.String("workflow", workflowName))
	return nil
}

// Finish executes transition 4: workflow_job.completed moves a runner
// to completed from any earlier status (offline, online or busy). It
// is a forward-only, idempotent no-op once the runner is already
// completed.
func (m *Manager) Finish(ctx context.Context, name string) error {
	if err := locking.LockWithContext(ctx, runnerLockKey(name), m.managerName); err != nil {
		return fmt.Errorf("acquiring runner lock for %s: %w", name, err)
	}
	defer locking.Unlock(runnerLockKey(name), false)

	runner, err := m.store.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("loading runner %s: %w", name, err)
	}

	if runner.Status == params.StatusCompleted {
		return nil
	}

	runner.Status = params.StatusCompleted
	runner.Busy = false
	runner.CompletedAt = now()

	saved, err := m.store.Save(ctx, runner)
	if err != nil {
		return fmt.Errorf("saving completed runner %s: %w", name, err)
	}
	setRunnerStatusMetric(saved, m.providerFor(runner.Group))
	m.recordEvent("runner_completed", runner.Group, name, "job completed")
	m.logger.Info("runner job completed", slog.String("runner", name))
	return nil
}

// Delete executes transition 5: deregister (ignoring NotFound), then
// backend delete (ignoring NotFound), then remove from the store. It
// is idempotent across every error path (spec.md §8 invariant 5): a
// runner already absent from the store returns nil without any
// backend or hosting-service call.
func (m *Manager) Delete(ctx context.Context, name string) error {
	if err := locking.LockWithContext(ctx, runnerLockKey(name), m.managerName); err != nil {
		return fmt.Errorf("acquiring runner lock for %s: %w", name, err)
	}
	defer locking.Unlock(runnerLockKey(name), false)

	runner, err := m.store.Get(ctx, name)
	if runnerErrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading runner %s: %w", name, err)
	}

	rt, err := m.runtimeFor(runner.Group)
	if err != nil {
		return err
	}

	if runner.ExternalID != "" {
		externalID, convErr := parseExternalID(runner.ExternalID)
		if convErr == nil {
			derr := rt.Hosting.Deregister(ctx, externalID)
			metrics.HostingOperationCount.WithLabelValues("Deregister", runner.Organization).Inc()
			if derr != nil {
				metrics.HostingOperationFailedCount.WithLabelValues("Deregister", runner.Organization).Inc()
				return fmt.Errorf("deregistering runner %s: %w", name, derr)
			}
		}
	}

	if runner.InstanceID != "" {
		derr := rt.Backend.Delete(ctx, runner.InstanceID)
		metrics.BackendOperationCount.WithLabelValues("Delete", runner.Group, string(rt.Group.Provider)).Inc()
		if derr != nil {
			metrics.BackendOperationFailedCount.WithLabelValues("Delete", runner.Group, string(rt.Group.Provider)).Inc()
			return fmt.Errorf("deleting instance for runner %s: %w", name, derr)
		}
	}

	if err := m.store.Delete(ctx, name); err != nil {
		return fmt.Errorf("removing runner %s from store: %w", name, err)
	}
	for _, s := range []params.RunnerStatus{params.StatusOffline, params.StatusOnline, params.StatusBusy, params.StatusCompleted} {
		metrics.RunnerStatus.DeleteLabelValues(runner.Name, string(s), runner.Group, runner.Organization, string(rt.Group.Provider))
	}
	m.recordEvent("runner_deleted", runner.Group, name, "removed from store")
	m.logger.Info("runner deleted", slog.String("runner", name))
	return nil
}

// Timeout executes transition 6: a runner stuck in provisioning
// (offline) beyond timeoutRunner, or idle/busy older than timeToLive,
// is handed to Delete. Called by the healthcheck reconciler.
func (m *Manager) Timeout(ctx context.Context, runner params.Runner) (bool, error) {
	age := now().Sub(runner.CreatedAt)

	expired := false
	switch runner.Status {
	case params.StatusOffline:
		expired = age >= m.timeoutRunner
	case params.StatusOnline, params.StatusBusy:
		expired = age >= m.timeToLive
	case params.StatusCompleted:
		expired = true
	}

	if !expired {
		return false, nil
	}
	return true, m.Delete(ctx, runner.Name)
}

func parseExternalID(s string) (int64, error) {
	var id int64
	_, err := fmt.Sscanf(s, "%d", &id)
	return id, err
}
