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

	compute "cloud.google.com/go/compute/apiv1"
	computepb "cloud.google.com/go/compute/apiv1/computepb"
	"google.golang.org/api/iterator"
	"google.golang.org/protobuf/proto"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
)

// GCPConfig configures the GCP Compute Engine backend. Authentication
// relies on Application Default Credentials; no credential fields are
// carried in config (spec.md §9 design note).
type GCPConfig struct {
	ProjectID    string
	Zone         string
	MachineType  string
	ImageProject string
	ImageFamily  string
	Network      string
	Subnetwork   string
	DiskSizeGB   int64
	DiskType     string
	Manager      string
	Group        string
}

// GCPBackend runs each runner as a Compute Engine VM, booted from the
// configured image family, with the JIT config passed as metadata.
type GCPBackend struct {
	client   *compute.InstancesClient
	imgClient *compute.ImagesClient
	cfg      GCPConfig
	logger   *slog.Logger
}

var _ Backend = (*GCPBackend)(nil)

// NewGCPBackend dials the Compute Engine API using ADC.
func NewGCPBackend(ctx context.Context, cfg GCPConfig, logger *slog.Logger) (*GCPBackend, error) {
	if cfg.ProjectID == "" || cfg.Zone == "" {
		return nil, runnerErrors.NewInvalidConfigError("gcp backend requires project_id and zone")
	}
	if cfg.DiskSizeGB == 0 {
		cfg.DiskSizeGB = 50
	}
	if cfg.DiskType == "" {
		cfg.DiskType = "pd-ssd"
	}
	if cfg.Network == "" {
		cfg.Network = "default"
	}

	client, err := compute.NewInstancesRESTClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcp instances client: %w", err)
	}
	imgClient, err := compute.NewImagesRESTClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcp images client: %w", err)
	}

	return &GCPBackend{client: client, imgClient: imgClient, cfg: cfg, logger: logger}, nil
}

func (b *GCPBackend) resolveImage(ctx context.Context) (string, error) {
	img, err := b.imgClient.GetFromFamily(ctx, &computepb.GetFromFamilyImageRequest{
		Project: b.cfg.ImageProject,
		Family:  b.cfg.ImageFamily,
	})
	if err != nil {
		return "", fmt.Errorf("resolving image family %s/%s: %w", b.cfg.ImageProject, b.cfg.ImageFamily, err)
	}
	return img.GetSelfLink(), nil
}

func (b *GCPBackend) Create(ctx context.Context, name string, jitConfig string, extra map[string]string) (Instance, error) {
	labels := baseLabels(b.cfg.Manager, b.cfg.Group, extra)

	image, err := b.resolveImage(ctx)
	if err != nil {
		return Instance{}, runnerErrors.NewBackendUnavailableError("%v", err)
	}

	machineType := fmt.Sprintf("zones/%s/machineTypes/%s", b.cfg.Zone, b.cfg.MachineType)
	networkURL := fmt.Sprintf("global/networks/%s", b.cfg.Network)

	instance := &computepb.Instance{
		Name:        proto.String(name),
		MachineType: proto.String(machineType),
		Labels:      labels,
		Disks: []*computepb.AttachedDisk{{
			AutoDelete: proto.Bool(true),
			Boot:       proto.Bool(true),
			InitializeParams: &computepb.AttachedDiskInitializeParams{
				SourceImage: proto.String(image),
				DiskSizeGb:  proto.Int64(b.cfg.DiskSizeGB),
				DiskType:    proto.String(fmt.Sprintf("zones/%s/diskTypes/%s", b.cfg.Zone, b.cfg.DiskType)),
			},
		}},
		NetworkInterfaces: []*computepb.NetworkInterface{{
			Network:    proto.String(networkURL),
			Subnetwork: proto.String(b.cfg.Subnetwork),
		}},
		Metadata: &computepb.Metadata{
			Items: []*computepb.Items{{
				Key:   proto.String("ACTIONS_RUNNER_INPUT_JITCONFIG"),
				Value: proto.String(jitConfig),
			}},
		},
	}

	op, err := b.client.Insert(ctx, &computepb.InsertInstanceRequest{
		Project:          b.cfg.ProjectID,
		Zone:             b.cfg.Zone,
		InstanceResource: instance,
	})
	if err != nil {
		return Instance{}, runnerErrors.NewBackendUnavailableError("inserting instance %s: %v", name, err)
	}
	if err := op.Wait(ctx); err != nil {
		return Instance{}, runnerErrors.NewBackendUnavailableError("waiting for instance %s: %v", name, err)
	}

	b.logger.Info("gcp runner started", slog.String("name", name), slog.String("zone", b.cfg.Zone))
	return Instance{ID: name, Name: name, Labels: labels}, nil
}

func (b *GCPBackend) Delete(ctx context.Context, id string) error {
	inst, err := b.Get(ctx, id)
	if runnerErrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !ownedByManager(inst.Labels, b.cfg.Manager) {
		return runnerErrors.NewBadRequestError("refusing to delete instance %s not owned by manager %s", id, b.cfg.Manager)
	}

	op, err := b.client.Delete(ctx, &computepb.DeleteInstanceRequest{
		Project:  b.cfg.ProjectID,
		Zone:     b.cfg.Zone,
		Instance: id,
	})
	if err != nil {
		if isNotFoundErr(err) {
			return nil
		}
		return fmt.Errorf("deleting instance %s: %w", id, err)
	}
	return op.Wait(ctx)
}

func (b *GCPBackend) Get(ctx context.Context, id string) (Instance, error) {
	inst, err := b.client.Get(ctx, &computepb.GetInstanceRequest{
		Project:  b.cfg.ProjectID,
		Zone:     b.cfg.Zone,
		Instance: id,
	})
	if err != nil {
		if isNotFoundErr(err) {
			return Instance{}, runnerErrors.ErrNotFound
		}
		return Instance{}, fmt.Errorf("getting instance %s: %w", id, err)
	}
	return Instance{ID: inst.GetName(), Name: inst.GetName(), Labels: inst.GetLabels()}, nil
}

func (b *GCPBackend) List(ctx context.Context) ([]Instance, error) {
	req := &computepb.ListInstancesRequest{
		Project: b.cfg.ProjectID,
		Zone:    b.cfg.Zone,
		Filter:  proto.String(fmt.Sprintf("labels.%s=%s", ManagerLabel, SanitizeLabelValue(b.cfg.Manager))),
	}

	var out []Instance
	it := b.client.List(ctx, req)
	for {
		inst, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing instances: %w", err)
		}
		out = append(out, Instance{ID: inst.GetName(), Name: inst.GetName(), Labels: inst.GetLabels()})
	}
	return out, nil
}

func isNotFoundErr(err error) bool {
	return strings.Contains(err.Error(), "notFound") || strings.Contains(err.Error(), "404")
}
