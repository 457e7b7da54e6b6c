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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/params"
)

func newTestRunner(name string) params.Runner {
	return params.Runner{
		Name:       name,
		ExternalID: "ext-" + name,
		InstanceID: "inst-" + name,
		Group:      "linux-pool",
		Status:     params.StatusOnline,
		Labels:     []string{"self-hosted", "linux"},
		CreatedAt:  time.Now(),
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r := newTestRunner("runner-1")
	saved, err := s.Save(ctx, r)
	require.NoError(t, err)
	require.Equal(t, r.Name, saved.Name)

	got, err := s.Get(ctx, "runner-1")
	require.NoError(t, err)
	require.Equal(t, r.InstanceID, got.InstanceID)
	require.ElementsMatch(t, r.Labels, got.Labels)
}

func TestMemoryStoreGetMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "nope")
	require.ErrorIs(t, err, runnerErrors.ErrNotFound)
	require.True(t, runnerErrors.IsNotFound(err))
}

func TestMemoryStoreDuplicateInstanceIDRejected(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Save(ctx, newTestRunner("runner-1"))
	require.NoError(t, err)

	dup := newTestRunner("runner-2")
	dup.InstanceID = "inst-runner-1"
	_, err = s.Save(ctx, dup)
	require.ErrorIs(t, err, runnerErrors.ErrDuplicateEntity)
}

func TestMemoryStoreSavingSameRunnerAgainIsNotADuplicate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r := newTestRunner("runner-1")
	_, err := s.Save(ctx, r)
	require.NoError(t, err)

	r.Status = params.StatusBusy
	r.Busy = true
	_, err = s.Save(ctx, r)
	require.NoError(t, err)

	got, err := s.Get(ctx, "runner-1")
	require.NoError(t, err)
	require.True(t, got.Busy)
}

func TestMemoryStoreFindByGroupAndLabel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	a := newTestRunner("runner-a")
	a.Group = "group-a"
	b := newTestRunner("runner-b")
	b.Group = "group-b"

	_, err := s.Save(ctx, a)
	require.NoError(t, err)
	_, err = s.Save(ctx, b)
	require.NoError(t, err)

	found, err := s.Find(ctx, Filter{Group: "group-a"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "runner-a", found[0].Name)

	found, err = s.Find(ctx, Filter{Label: "linux"})
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestMemoryStoreFindFirstNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.FindFirst(ctx, Filter{Group: "nonexistent"})
	require.ErrorIs(t, err, runnerErrors.ErrNotFound)
}

func TestMemoryStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	r := newTestRunner("runner-1")
	_, err := s.Save(ctx, r)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "runner-1"))
	require.NoError(t, s.Delete(ctx, "runner-1"))

	_, err = s.Get(ctx, "runner-1")
	require.ErrorIs(t, err, runnerErrors.ErrNotFound)
}

func TestMemoryStoreAll(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Save(ctx, newTestRunner("runner-1"))
	require.NoError(t, err)
	_, err = s.Save(ctx, newTestRunner("runner-2"))
	require.NoError(t, err)

	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
