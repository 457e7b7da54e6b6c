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

package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	executil "github.com/harryfinbow/runner-manager/util/exec"
)

// LocalConfig configures the local-process backend: runners execute as
// bare OS processes on the machine running the manager, intended for
// development and for self-hosted pools with no virtualization layer.
type LocalConfig struct {
	WorkDir    string
	RunnerPath string
	Manager    string
	Group      string
}

type localInstance struct {
	pid    int
	name   string
	labels map[string]string
}

// LocalBackend runs each runner as a child process under WorkDir,
// tracked by PID. Delete sends SIGKILL; there is no soft-stop, since
// runners are strictly ephemeral (spec.md §4.1).
type LocalBackend struct {
	cfg    LocalConfig
	logger *slog.Logger

	mux       sync.Mutex
	instances map[string]*localInstance // id (pid as string) -> instance
}

var _ Backend = (*LocalBackend)(nil)

// NewLocalBackend constructs a LocalBackend rooted at cfg.WorkDir.
func NewLocalBackend(cfg LocalConfig, logger *slog.Logger) (*LocalBackend, error) {
	if cfg.WorkDir == "" {
		return nil, runnerErrors.NewInvalidConfigError("local backend requires a work_dir")
	}
	if cfg.RunnerPath == "" {
		return nil, runnerErrors.NewInvalidConfigError("local backend requires a runner_path")
	}
	if !executil.IsExecutable(cfg.RunnerPath) {
		return nil, runnerErrors.NewInvalidConfigError("runner_path %s is not executable", cfg.RunnerPath)
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating work dir %s: %w", cfg.WorkDir, err)
	}
	return &LocalBackend{
		cfg:       cfg,
		logger:    logger,
		instances: make(map[string]*localInstance),
	}, nil
}

// Create launches the runner binary as a detached child process, with
// the JIT config passed via environment variable, matching the
// convention the runner agent itself expects (spec.md §3).
func (b *LocalBackend) Create(_ context.Context, name string, jitConfig string, extra map[string]string) (Instance, error) {
	runnerDir := filepath.Join(b.cfg.WorkDir, name)
	if err := os.MkdirAll(runnerDir, 0o750); err != nil {
		return Instance{}, fmt.Errorf("creating runner dir %s: %w", runnerDir, err)
	}

	cmd := exec.Command(b.cfg.RunnerPath)
	cmd.Dir = runnerDir
	cmd.Env = append(os.Environ(), "ACTIONS_RUNNER_INPUT_JITCONFIG="+jitConfig)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return Instance{}, runnerErrors.NewBackendUnavailableError("starting local runner %s: %v", name, err)
	}

	labels := baseLabels(b.cfg.Manager, b.cfg.Group, extra)
	id := strconv.Itoa(cmd.Process.Pid)

	b.mux.Lock()
	b.instances[id] = &localInstance{pid: cmd.Process.Pid, name: name, labels: labels}
	b.mux.Unlock()

	// Reap the process asynchronously so it doesn't become a zombie;
	// the lifecycle manager, not this goroutine, decides when to delete.
	go func() { _ = cmd.Wait() }()

	b.logger.Info("local runner started", slog.String("name", name), slog.String("pid", id))
	return Instance{ID: id, Name: name, Labels: labels}, nil
}

func (b *LocalBackend) Delete(_ context.Context, id string) error {
	b.mux.Lock()
	inst, ok := b.instances[id]
	b.mux.Unlock()
	if !ok {
		return nil
	}
	if !ownedByManager(inst.labels, b.cfg.Manager) {
		return runnerErrors.NewBadRequestError("refusing to delete instance %s not owned by manager %s", id, b.cfg.Manager)
	}

	if err := syscall.Kill(-inst.pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("killing local runner pid %d: %w", inst.pid, err)
	}

	b.mux.Lock()
	delete(b.instances, id)
	b.mux.Unlock()
	return nil
}

func (b *LocalBackend) Get(_ context.Context, id string) (Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	inst, ok := b.instances[id]
	if !ok {
		return Instance{}, runnerErrors.ErrNotFound
	}
	return Instance{ID: id, Name: inst.name, Labels: inst.labels}, nil
}

func (b *LocalBackend) List(_ context.Context) ([]Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	out := make([]Instance, 0, len(b.instances))
	for id, inst := range b.instances {
		out = append(out, Instance{ID: id, Name: inst.name, Labels: inst.labels})
	}
	return out, nil
}
