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

// Package lifecycle implements the runner state machine from spec.md
// §4.4: the transitions that carry a single runner from creation
// through registration, pickup, completion and deletion. The Manager is
// the only writer of params.Runner.Status; every other component
// (reconcilers, webhook dispatcher) calls into it rather than mutating
// the store directly.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/harryfinbow/runner-manager/apiserver/events"
	"github.com/harryfinbow/runner-manager/backend"
	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/locking"
	"github.com/harryfinbow/runner-manager/metrics"
	"github.com/harryfinbow/runner-manager/params"
	"github.com/harryfinbow/runner-manager/store"
)

// GroupRuntime bundles the pieces the manager needs to drive a single
// runner group: its declared policy, the backend that provisions its
// instances, and the hosting-service client scoped to its organization.
type GroupRuntime struct {
	Group   params.RunnerGroup
	Backend backend.Backend
	Hosting HostingClient
}

// Manager is the lifecycle state machine for every runner across every
// configured group. One Manager exists per runner-manager process.
type Manager struct {
	store  store.Store
	groups map[string]GroupRuntime

	managerName   string
	timeoutRunner time.Duration
	timeToLive    time.Duration

	logger *slog.Logger
	events *events.Recorder
}

// Config carries the inputs NewManager needs.
type Config struct {
	Store         store.Store
	Groups        map[string]GroupRuntime
	ManagerName   string
	TimeoutRunner time.Duration
	TimeToLive    time.Duration
	Logger        *slog.Logger

	// Events, if set, receives a record of every transition this
	// Manager performs, backing GET /events (SPEC_FULL.md §6). Nil
	// disables recording; tests that do not exercise the management
	// API need not construct one.
	Events *events.Recorder
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("lifecycle manager requires a store")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	for name, rt := range cfg.Groups {
		metrics.BackendInfo.WithLabelValues(name, string(rt.Group.Provider)).Set(1)
		metrics.GroupMinRunners.WithLabelValues(name).Set(float64(rt.Group.Min))
		metrics.GroupMaxRunners.WithLabelValues(name).Set(float64(rt.Group.Max))
	}
	return &Manager{
		store:         cfg.Store,
		groups:        cfg.Groups,
		managerName:   cfg.ManagerName,
		timeoutRunner: cfg.TimeoutRunner,
		timeToLive:    cfg.TimeToLive,
		logger:        cfg.Logger,
		events:        cfg.Events,
	}, nil
}

// recordEvent appends to the event log if one was configured; a no-op
// otherwise, so every transition can call it unconditionally.
func (m *Manager) recordEvent(kind, group, runner, message string) {
	if m.events == nil {
		return
	}
	m.events.Record(kind, group, runner, message)
}

func (m *Manager) runtimeFor(group string) (GroupRuntime, error) {
	rt, ok := m.groups[group]
	if !ok {
		return GroupRuntime{}, runnerErrors.NewNotFoundError("unknown runner group %q", group)
	}
	return rt, nil
}

// Groups returns every configured group name, for reconcilers that
// iterate all groups.
func (m *Manager) Groups() []string {
	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	return names
}

// Create executes transition 1 (spec.md §4.4): it allocates an
// identity and JIT config via the hosting-service client, provisions
// the backend instance, and only then persists a single provisioning
// record carrying both. On either call's failure nothing is persisted.
func (m *Manager) Create(ctx context.Context, group string) (params.Runner, error) {
	rt, err := m.runtimeFor(group)
	if err != nil {
		return params.Runner{}, err
	}

	if lerr := locking.LockWithContext(ctx, groupLockKey(group), m.managerName); lerr != nil {
		return params.Runner{}, fmt.Errorf("acquiring group lock for %s: %w", group, lerr)
	}
	defer locking.Unlock(groupLockKey(group), false)

	name := fmt.Sprintf("%s-%s", group, uuid.NewString())

	rgID, err := rt.Hosting.RunnerGroupIDByName(ctx, "")
	metrics.HostingOperationCount.WithLabelValues("RunnerGroupIDByName", rt.Group.Organization).Inc()
	if err != nil {
		metrics.HostingOperationFailedCount.WithLabelValues("RunnerGroupIDByName", rt.Group.Organization).Inc()
		return params.Runner{}, fmt.Errorf("resolving hosting-service runner group: %w", err)
	}

	jit, err := rt.Hosting.GenerateJITConfig(ctx, name, rgID, rt.Group.Labels)
	metrics.HostingOperationCount.WithLabelValues("GenerateJITConfig", rt.Group.Organization).Inc()
	if err != nil {
		metrics.HostingOperationFailedCount.WithLabelValues("GenerateJITConfig", rt.Group.Organization).Inc()
		return params.Runner{}, fmt.Errorf("registering runner %s: %w", name, err)
	}

	labels := map[string]string{}
	for _, l := range rt.Group.Labels {
		labels[l] = "true"
	}

	inst, err := rt.Backend.Create(ctx, name, jit.EncodedJITConfig, labels)
	metrics.BackendOperationCount.WithLabelValues("Create", group, string(rt.Group.Provider)).Inc()
	if err != nil {
		metrics.BackendOperationFailedCount.WithLabelValues("Create", group, string(rt.Group.Provider)).Inc()
		return params.Runner{}, fmt.Errorf("provisioning instance for %s: %w", name, err)
	}

	runner := params.Runner{
		Name:             name,
		Group:            rt.Group.Name,
		Organization:     rt.Group.Organization,
		Labels:           rt.Group.Labels,
		Status:           params.StatusOffline,
		InstanceID:       inst.ID,
		EncodedJITConfig: jit.EncodedJITConfig,
		CreatedAt:        now(),
	}

	saved, err := m.store.Save(ctx, runner)
	if err != nil {
		return params.Runner{}, fmt.Errorf("persisting runner %s: %w", name, err)
	}

	setRunnerStatusMetric(saved, string(rt.Group.Provider))
	m.recordEvent("runner_created", group, name, fmt.Sprintf("provisioned instance %s", inst.ID))
	m.logger.Info("runner created", slog.String("runner", name), slog.String("group", group), slog.String("instance_id", inst.ID))
	return saved, nil
}

// setRunnerStatusMetric raises the gauge for runner's current status to
// 1 and lowers every other status value to 0, so a transition shows up
// as one series rising and another falling at the same timestamp.
func setRunnerStatusMetric(runner params.Runner, provider string) {
	for _, s := range []params.RunnerStatus{params.StatusOffline, params.StatusOnline, params.StatusBusy, params.StatusCompleted} {
		v := 0.0
		if s == runner.Status {
			v = 1
		}
		metrics.RunnerStatus.WithLabelValues(runner.Name, string(s), runner.Group, runner.Organization, provider).Set(v)
	}
}

// NeedForGroup returns how many runners must be created to bring
// group up to its configured minimum, given its current persisted
// count (spec.md §4.5's startup reconciler). Unknown groups need
// nothing: the startup reconciler only iterates Groups().
func (m *Manager) NeedForGroup(group string, current int) int {
	rt, ok := m.groups[group]
	if !ok {
		return 0
	}
	return rt.Group.Need(current)
}

// GroupForLabels returns the name of the configured group whose label
// set exactly matches jobLabels, used by the webhook dispatcher to
// resolve which group a queued job's scale-up belongs to (spec.md
// §4.6). Returns false if no group matches.
func (m *Manager) GroupForLabels(jobLabels []string) (string, bool) {
	for name, rt := range m.groups {
		if sameLabelSet(rt.Group.Labels, jobLabels) {
			return name, true
		}
	}
	return "", false
}

func sameLabelSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(a))
	for _, l := range a {
		seen[l] = true
	}
	for _, l := range b {
		if !seen[l] {
			return false
		}
	}
	return true
}

// BackendFor looks up runner's backend instance through its group's
// Backend adapter. Used by the healthcheck reconciler to detect
// orphaned runner records (backend Get returns NotFound for a runner
// that isn't still provisioning).
func (m *Manager) BackendFor(ctx context.Context, runner params.Runner) (backend.Instance, error) {
	rt, err := m.runtimeFor(runner.Group)
	if err != nil {
		return backend.Instance{}, err
	}
	return rt.Backend.Get(ctx, runner.InstanceID)
}

// RuntimeFor exposes a group's runtime (backend adapter, hosting
// client, declared policy) to the indexing reconciler, which needs
// direct access to List on both the backend and the hosting client.
func (m *Manager) RuntimeFor(group string) (GroupRuntime, error) {
	return m.runtimeFor(group)
}

func groupLockKey(group string) string {
	return "group:" + group
}

func runnerLockKey(name string) string {
	return "runner:" + name
}

// now is a seam so tests can stub the clock if needed; production code
// always uses the wall clock.
var now = time.Now
