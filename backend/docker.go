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
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	dockerclient "github.com/docker/docker/client"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
)

// DockerConfig configures the Docker backend.
type DockerConfig struct {
	Host        string
	Image       string
	NetworkMode string
	Manager     string
	Group       string
}

// DockerBackend runs each runner as a Docker container. Unlike the
// local backend, container labels are queried back from the daemon
// rather than cached, so List reflects reality even after a manager
// restart (spec.md §4.5 reconciliation).
type DockerBackend struct {
	client  *dockerclient.Client
	cfg     DockerConfig
	logger  *slog.Logger
}

var _ Backend = (*DockerBackend)(nil)

// NewDockerBackend connects to the Docker daemon named by cfg.Host (or
// the environment default when empty).
func NewDockerBackend(cfg DockerConfig, logger *slog.Logger) (*DockerBackend, error) {
	opts := []dockerclient.Opt{dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, dockerclient.WithHost(cfg.Host))
	}
	client, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if cfg.Image == "" {
		return nil, runnerErrors.NewInvalidConfigError("docker backend requires an image")
	}
	return &DockerBackend{client: client, cfg: cfg, logger: logger}, nil
}

func (b *DockerBackend) Create(ctx context.Context, name string, jitConfig string, extra map[string]string) (Instance, error) {
	labels := baseLabels(b.cfg.Manager, b.cfg.Group, extra)

	var hostCfg *container.HostConfig
	if b.cfg.NetworkMode != "" {
		hostCfg = &container.HostConfig{NetworkMode: container.NetworkMode(b.cfg.NetworkMode)}
	}

	resp, err := b.client.ContainerCreate(ctx,
		&container.Config{
			Image:  b.cfg.Image,
			Env:    []string{"ACTIONS_RUNNER_INPUT_JITCONFIG=" + jitConfig},
			Labels: labels,
		},
		hostCfg,
		nil, nil,
		name,
	)
	if err != nil {
		return Instance{}, runnerErrors.NewBackendUnavailableError("creating container %s: %v", name, err)
	}

	if err := b.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = b.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return Instance{}, runnerErrors.NewBackendUnavailableError("starting container %s: %v", name, err)
	}

	b.logger.Info("docker runner started", slog.String("name", name), slog.String("container_id", resp.ID))
	return Instance{ID: resp.ID, Name: name, Labels: labels}, nil
}

func (b *DockerBackend) Delete(ctx context.Context, id string) error {
	inst, err := b.Get(ctx, id)
	if runnerErrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !ownedByManager(inst.Labels, b.cfg.Manager) {
		return runnerErrors.NewBadRequestError("refusing to delete container %s not owned by manager %s", id, b.cfg.Manager)
	}
	if err := b.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		if dockerclient.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("removing container %s: %w", id, err)
	}
	return nil
}

func (b *DockerBackend) Get(ctx context.Context, id string) (Instance, error) {
	inspect, err := b.client.ContainerInspect(ctx, id)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return Instance{}, runnerErrors.ErrNotFound
		}
		return Instance{}, fmt.Errorf("inspecting container %s: %w", id, err)
	}
	return Instance{ID: inspect.ID, Name: strings.TrimPrefix(inspect.Name, "/"), Labels: inspect.Config.Labels}, nil
}

func (b *DockerBackend) List(ctx context.Context) ([]Instance, error) {
	args := filters.NewArgs()
	args.Add("label", ManagerLabel+"="+SanitizeLabelValue(b.cfg.Manager))

	containers, err := b.client.ContainerList(ctx, container.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}

	out := make([]Instance, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		out = append(out, Instance{ID: c.ID, Name: name, Labels: c.Labels})
	}
	return out, nil
}
