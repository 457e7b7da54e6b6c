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

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidateSignatureRejectsMissingHeaderWhenSecretSet(t *testing.T) {
	err := ValidateSignature("", "s3cr3t", []byte(`{}`))
	require.Error(t, err)
	require.True(t, runnerErrors.IsUnauthorized(err))
}

func TestValidateSignatureAcceptsCorrectMAC(t *testing.T) {
	body := []byte(`{"action":"queued"}`)
	sig := sign("s3cr3t", body)
	require.NoError(t, ValidateSignature(sig, "s3cr3t", body))
}

func TestValidateSignatureRejectsTamperedBody(t *testing.T) {
	sig := sign("s3cr3t", []byte(`{"action":"queued"}`))
	err := ValidateSignature(sig, "s3cr3t", []byte(`{"action":"completed"}`))
	require.Error(t, err)
	require.True(t, runnerErrors.IsUnauthorized(err))
}

func TestValidateSignatureSkippedWhenNoSecretConfigured(t *testing.T) {
	require.NoError(t, ValidateSignature("", "", []byte(`anything`)))
}

type noopBackend struct{}

func (noopBackend) Create(context.Context, string, string, map[string]string) (backend.Instance, error) {
	return backend.Instance{ID: "inst"}, nil
}
func (noopBackend) Delete(context.Context, string) error                { return nil }
func (noopBackend) Get(context.Context, string) (backend.Instance, error) { return backend.Instance{}, runnerErrors.ErrNotFound }
func (noopBackend) List(context.Context) ([]backend.Instance, error)     { return nil, nil }

type noopHosting struct{}

func (noopHosting) GenerateJITConfig(context.Context, string, int64, []string) (hostingservice.JITRunner, error) {
	return hostingservice.JITRunner{ExternalID: 1, EncodedJITConfig: "jit"}, nil
}
func (noopHosting) Deregister(context.Context, int64) error { return nil }
func (noopHosting) RunnerGroupIDByName(context.Context, string) (int64, error) { return 1, nil }
func (noopHosting) ListRunners(context.Context) ([]*github.Runner, error) { return nil, nil }

func newTestDispatcher(t *testing.T) (*Dispatcher, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	mgr, err := lifecycle.NewManager(lifecycle.Config{
		Store: st,
		Groups: map[string]lifecycle.GroupRuntime{
			"linux-pool": {
				Group:   params.RunnerGroup{Name: "linux-pool", Organization: "octo-org", Labels: []string{"self-hosted"}, Min: 0, Max: 5},
				Backend: noopBackend{},
				Hosting: noopHosting{},
			},
		},
		ManagerName: "test-manager",
	})
	require.NoError(t, err)
	return NewDispatcher(mgr, 4, nil), st
}

func TestDispatcherPickupBeforeRegistrationRetriesThenDrops(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx := context.Background()

	runner, err := d.manager.Create(ctx, "linux-pool")
	require.NoError(t, err)

	event := params.WorkflowJob{Action: string(params.ActionInProgress)}
	event.WorkflowJob.RunnerName = runner.Name
	event.WorkflowJob.Name = "build"

	// The runner is still offline (never registered), so Pickup
	// returns ErrNotReady every time; past the retry budget the
	// dispatcher must drop the event rather than requeue forever.
	d.process(ctx, job{event: event, attempt: maxPickupAttempts})
}

func TestDispatcherQueuedTriggersScaleUpForMatchingGroup(t *testing.T) {
	d, st := newTestDispatcher(t)

	event := params.WorkflowJob{Action: string(params.ActionQueued)}
	event.WorkflowJob.Labels = []string{"self-hosted"}

	d.process(context.Background(), job{event: event})

	all, err := st.All(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestDispatcherQueueOverflowReturnsFalse(t *testing.T) {
	d := NewDispatcher(nil, 1, nil)
	event := params.WorkflowJob{Action: string(params.ActionQueued)}
	require.True(t, d.Enqueue(event))
	require.False(t, d.Enqueue(event))
}

func TestDispatcherRunDrainsQueueOnCancel(t *testing.T) {
	d, _ := newTestDispatcher(t)
	ctx, cancel := context.WithCancel(context.Background())

	event := params.WorkflowJob{Action: string(params.ActionQueued)}
	event.WorkflowJob.Labels = []string{"self-hosted"}
	require.True(t, d.Enqueue(event))

	cancel()
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
