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
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/require"

	"github.com/harryfinbow/runner-manager/backend"
	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/hostingservice"
	"github.com/harryfinbow/runner-manager/locking"
	"github.com/harryfinbow/runner-manager/params"
	"github.com/harryfinbow/runner-manager/store"
)

func init() {
	_ = locking.RegisterLocker(locking.NewLocalLocker())
}

type stubBackend struct {
	mux       sync.Mutex
	created   map[string]backend.Instance
	deleted   []string
	createErr error
	deleteErr error
	nextID    int
}

func newStubBackend() *stubBackend {
	return &stubBackend{created: map[string]backend.Instance{}}
}

func (b *stubBackend) Create(_ context.Context, name, _ string, labels map[string]string) (backend.Instance, error) {
	if b.createErr != nil {
		return backend.Instance{}, b.createErr
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	b.nextID++
	inst := backend.Instance{ID: name + "-inst", Labels: labels}
	b.created[name] = inst
	return inst, nil
}

func (b *stubBackend) Delete(_ context.Context, id string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *stubBackend) Get(_ context.Context, id string) (backend.Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	for _, inst := range b.created {
		if inst.ID == id {
			return inst, nil
		}
	}
	return backend.Instance{}, runnerErrors.ErrNotFound
}

func (b *stubBackend) List(_ context.Context) ([]backend.Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	out := make([]backend.Instance, 0, len(b.created))
	for _, inst := range b.created {
		out = append(out, inst)
	}
	return out, nil
}

type stubHosting struct {
	nextExternalID int64
	deregistered   []int64
}

func (h *stubHosting) GenerateJITConfig(_ context.Context, name string, _ int64, _ []string) (hostingservice.JITRunner, error) {
	h.nextExternalID++
	return hostingservice.JITRunner{ExternalID: h.nextExternalID, EncodedJITConfig: "jit-" + name}, nil
}

func (h *stubHosting) Deregister(_ context.Context, externalID int64) error {
	h.deregistered = append(h.deregistered, externalID)
	return nil
}

func (h *stubHosting) RunnerGroupIDByName(_ context.Context, _ string) (int64, error) {
	return 1, nil
}

func (h *stubHosting) ListRunners(_ context.Context) ([]*github.Runner, error) {
	return nil, nil
}

func newTestManager(t *testing.T) (*Manager, *stubBackend, *stubHosting) {
	t.Helper()
	be := newStubBackend()
	hosting := &stubHosting{}
	mgr, err := NewManager(Config{
		Store: store.NewMemoryStore(),
		Groups: map[string]GroupRuntime{
			"linux-pool": {
				Group:   params.RunnerGroup{Name: "linux-pool", Organization: "octo-org", Labels: []string{"self-hosted"}, Min: 1, Max: 3},
				Backend: be,
				Hosting: hosting,
			},
		},
		ManagerName:   "test-manager",
		TimeoutRunner: 15 * time.Minute,
		TimeToLive:    12 * time.Hour,
	})
	require.NoError(t, err)
	return mgr, be, hosting
}

func TestCreatePersistsOfflineRunnerWithInstanceID(t *testing.T) {
	mgr, be, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)
	require.Equal(t, params.StatusOffline, runner.Status)
	require.NotEmpty(t, runner.InstanceID)
	require.Empty(t, runner.ExternalID)
	require.Len(t, be.created, 1)
}

func TestRegisterCompletionPromotesToOnline(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)

	require.NoError(t, mgr.RegisterCompletion(ctx, runner.Name, 7))

	got, err := mgr.store.Get(ctx, runner.Name)
	require.NoError(t, err)
	require.Equal(t, params.StatusOnline, got.Status)
	require.Equal(t, "7", got.ExternalID)
}

func TestPickupBeforeRegistrationReturnsNotReady(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)

	err = mgr.Pickup(ctx, runner.Name, "build", "octo-org/repo", 1)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestPickupThenFinishThenDelete(t *testing.T) {
	mgr, be, hosting := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)
	require.NoError(t, mgr.RegisterCompletion(ctx, runner.Name, 7))

	require.NoError(t, mgr.Pickup(ctx, runner.Name, "build", "octo-org/repo", 1))
	got, err := mgr.store.Get(ctx, runner.Name)
	require.NoError(t, err)
	require.Equal(t, params.StatusBusy, got.Status)
	require.True(t, got.Busy)
	firstPickup := got.PickedUpAt

	// Duplicate in_progress is a no-op: pickup timestamp is not overwritten.
	require.NoError(t, mgr.Pickup(ctx, runner.Name, "build", "octo-org/repo", 1))
	got, err = mgr.store.Get(ctx, runner.Name)
	require.NoError(t, err)
	require.Equal(t, firstPickup, got.PickedUpAt)

	require.NoError(t, mgr.Finish(ctx, runner.Name))
	got, err = mgr.store.Get(ctx, runner.Name)
	require.NoError(t, err)
	require.Equal(t, params.StatusCompleted, got.Status)

	require.NoError(t, mgr.Delete(ctx, runner.Name))
	_, err = mgr.store.Get(ctx, runner.Name)
	require.ErrorIs(t, err, runnerErrors.ErrNotFound)
	require.Contains(t, hosting.deregistered, int64(7))
	require.Len(t, be.deleted, 1)
}

func TestFinishAfterCompletedNeverReturnsToBusy(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)
	require.NoError(t, mgr.RegisterCompletion(ctx, runner.Name, 7))
	require.NoError(t, mgr.Pickup(ctx, runner.Name, "build", "octo-org/repo", 1))
	require.NoError(t, mgr.Finish(ctx, runner.Name))

	// A stale in_progress arriving after completion must stay a no-op.
	require.NoError(t, mgr.Pickup(ctx, runner.Name, "build", "octo-org/repo", 1))

	got, err := mgr.store.Get(ctx, runner.Name)
	require.NoError(t, err)
	require.Equal(t, params.StatusCompleted, got.Status)
}

func TestDeleteIsIdempotent(t *testing.T) {
	mgr, be, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, runner.Name))
	require.NoError(t, mgr.Delete(ctx, runner.Name))
	require.Len(t, be.deleted, 1)
}

func TestTimeoutDeletesStaleProvisioningRunner(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	ctx := context.Background()

	runner, err := mgr.Create(ctx, "linux-pool")
	require.NoError(t, err)
	runner.CreatedAt = time.Now().Add(-20 * time.Minute)
	_, err = mgr.store.Save(ctx, runner)
	require.NoError(t, err)

	expired, err := mgr.Timeout(ctx, runner)
	require.NoError(t, err)
	require.True(t, expired)

	_, err = mgr.store.Get(ctx, runner.Name)
	require.ErrorIs(t, err, runnerErrors.ErrNotFound)
}
