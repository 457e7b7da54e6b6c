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
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/require"

	"github.com/harryfinbow/runner-manager/backend"
	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/hostingservice"
	"github.com/harryfinbow/runner-manager/lifecycle"
	"github.com/harryfinbow/runner-manager/locking"
	"github.com/harryfinbow/runner-manager/params"
	"github.com/harryfinbow/runner-manager/store"
)

func init() {
	_ = locking.RegisterLocker(locking.NewLocalLocker())
}

type fakeBackend struct {
	mux       sync.Mutex
	instances map[string]backend.Instance
	deleted   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{instances: map[string]backend.Instance{}}
}

func (b *fakeBackend) Create(_ context.Context, name, _ string, labels map[string]string) (backend.Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	inst := backend.Instance{ID: name + "-inst", Name: name, Labels: labels}
	b.instances[inst.ID] = inst
	return inst, nil
}

func (b *fakeBackend) Delete(_ context.Context, id string) error {
	b.mux.Lock()
	defer b.mux.Unlock()
	delete(b.instances, id)
	b.deleted = append(b.deleted, id)
	return nil
}

func (b *fakeBackend) Get(_ context.Context, id string) (backend.Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	inst, ok := b.instances[id]
	if !ok {
		return backend.Instance{}, errNotFound
	}
	return inst, nil
}

func (b *fakeBackend) List(_ context.Context) ([]backend.Instance, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	out := make([]backend.Instance, 0, len(b.instances))
	for _, inst := range b.instances {
		out = append(out, inst)
	}
	return out, nil
}

type fakeHosting struct {
	runners      []*github.Runner
	deregistered []int64
}

func (h *fakeHosting) GenerateJITConfig(_ context.Context, name string, _ int64, _ []string) (hostingservice.JITRunner, error) {
	return hostingservice.JITRunner{ExternalID: 1, EncodedJITConfig: "jit-" + name}, nil
}

func (h *fakeHosting) Deregister(_ context.Context, externalID int64) error {
	h.deregistered = append(h.deregistered, externalID)
	return nil
}

func (h *fakeHosting) RunnerGroupIDByName(_ context.Context, _ string) (int64, error) {
	return 1, nil
}

func (h *fakeHosting) ListRunners(_ context.Context) ([]*github.Runner, error) {
	return h.runners, nil
}

func newRunnerRecord(name, group string, status params.RunnerStatus) params.Runner {
	return params.Runner{
		Name:       name,
		Group:      group,
		InstanceID: name + "-inst",
		Status:     status,
		CreatedAt:  time.Now(),
	}
}

func TestStartupReconcilerProvisionsToMinimum(t *testing.T) {
	st := store.NewMemoryStore()
	be := newFakeBackend()
	hosting := &fakeHosting{}

	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Store: st,
		Groups: map[string]lifecycle.GroupRuntime{
			"linux-pool": {
				Group:   params.RunnerGroup{Name: "linux-pool", Organization: "octo-org", Labels: []string{"self-hosted"}, Min: 3, Max: 5},
				Backend: be,
				Hosting: hosting,
			},
		},
		ManagerName: "test-manager",
	})
	require.NoError(t, err)

	runner := New(Config{Manager: mgr, Store: st})
	require.NoError(t, runner.RunStartup(context.Background()))

	all, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestIndexingDeregistersStrayHostingRunner(t *testing.T) {
	st := store.NewMemoryStore()
	be := newFakeBackend()
	hosting := &fakeHosting{runners: []*github.Runner{
		{ID: github.Int64(42), Name: github.String("linux-pool-stray")},
	}}

	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Store: st,
		Groups: map[string]lifecycle.GroupRuntime{
			"linux-pool": {
				Group:   params.RunnerGroup{Name: "linux-pool", Organization: "octo-org", Labels: []string{"self-hosted"}, Min: 0, Max: 5},
				Backend: be,
				Hosting: hosting,
			},
		},
		ManagerName: "test-manager",
	})
	require.NoError(t, err)

	runner := New(Config{Manager: mgr, Store: st})
	require.NoError(t, runner.tickIndexing(context.Background()))

	require.Contains(t, hosting.deregistered, int64(42))
}

func TestIndexingDeletesOrphanedBackendInstance(t *testing.T) {
	st := store.NewMemoryStore()
	be := newFakeBackend()
	_, err := be.Create(context.Background(), "linux-pool-orphan", "", map[string]string{backend.GroupLabel: "linux-pool"})
	require.NoError(t, err)
	hosting := &fakeHosting{}

	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Store: st,
		Groups: map[string]lifecycle.GroupRuntime{
			"linux-pool": {
				Group:   params.RunnerGroup{Name: "linux-pool", Organization: "octo-org", Labels: []string{"self-hosted"}, Min: 0, Max: 5},
				Backend: be,
				Hosting: hosting,
			},
		},
		ManagerName: "test-manager",
	})
	require.NoError(t, err)

	runner := New(Config{Manager: mgr, Store: st})
	require.NoError(t, runner.tickIndexing(context.Background()))

	require.Contains(t, be.deleted, "linux-pool-orphan-inst")
}

func TestIndexingDropsStoreOnlyRecord(t *testing.T) {
	st := store.NewMemoryStore()
	_, err := st.Save(context.Background(), newRunnerRecord("linux-pool-ghost", "linux-pool", params.StatusOnline))
	require.NoError(t, err)

	be := newFakeBackend()
	hosting := &fakeHosting{}

	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Store: st,
		Groups: map[string]lifecycle.GroupRuntime{
			"linux-pool": {
				Group:   params.RunnerGroup{Name: "linux-pool", Organization: "octo-org", Labels: []string{"self-hosted"}, Min: 0, Max: 5},
				Backend: be,
				Hosting: hosting,
			},
		},
		ManagerName: "test-manager",
	})
	require.NoError(t, err)

	runner := New(Config{Manager: mgr, Store: st})
	require.NoError(t, runner.tickIndexing(context.Background()))

	_, err = st.Get(context.Background(), "linux-pool-ghost")
	require.Error(t, err)
}

var errNotFound = runnerErrors.ErrNotFound
