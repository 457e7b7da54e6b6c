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
	"sync"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/params"
)

// memoryStore is an in-process Store used by tests and by callers that
// don't want a live Redis dependency; it enforces the same uniqueness
// and filtering semantics as redisStore, grounded on the stub backing
// stores the teacher's pool tests use in place of the real database.
type memoryStore struct {
	mux     sync.Mutex
	runners map[string]params.Runner
}

// NewMemoryStore returns a Store backed by an in-process map.
func NewMemoryStore() Store {
	return &memoryStore{runners: map[string]params.Runner{}}
}

func (s *memoryStore) Save(_ context.Context, runner params.Runner) (params.Runner, error) {
	if runner.Name == "" {
		return params.Runner{}, runnerErrors.NewBadRequestError("runner name is required")
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	for name, existing := range s.runners {
		if name == runner.Name {
			continue
		}
		if runner.InstanceID != "" && existing.InstanceID == runner.InstanceID {
			return params.Runner{}, runnerErrors.ErrDuplicateEntity
		}
		if runner.ExternalID != "" && existing.ExternalID == runner.ExternalID {
			return params.Runner{}, runnerErrors.ErrDuplicateEntity
		}
	}

	s.runners[runner.Name] = runner
	return runner, nil
}

func (s *memoryStore) Get(_ context.Context, name string) (params.Runner, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	runner, ok := s.runners[name]
	if !ok {
		return params.Runner{}, runnerErrors.ErrNotFound
	}
	return runner, nil
}

func (s *memoryStore) Delete(_ context.Context, name string) error {
	s.mux.Lock()
	defer s.mux.Unlock()

	delete(s.runners, name)
	return nil
}

func (s *memoryStore) All(_ context.Context) ([]params.Runner, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	out := make([]params.Runner, 0, len(s.runners))
	for _, r := range s.runners {
		out = append(out, r)
	}
	return out, nil
}

func (s *memoryStore) Find(_ context.Context, filter Filter) ([]params.Runner, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	out := []params.Runner{}
	for _, r := range s.runners {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) FindFirst(ctx context.Context, filter Filter) (params.Runner, error) {
	runners, err := s.Find(ctx, filter)
	if err != nil {
		return params.Runner{}, err
	}
	if len(runners) == 0 {
		return params.Runner{}, runnerErrors.ErrNotFound
	}
	return runners[0], nil
}

func (s *memoryStore) Close() error {
	return nil
}

func matches(r params.Runner, filter Filter) bool {
	if filter.Status != "" && r.Status != filter.Status {
		return false
	}
	if filter.Group != "" && r.Group != filter.Group {
		return false
	}
	if filter.InstanceID != "" && r.InstanceID != filter.InstanceID {
		return false
	}
	if filter.ExternalID != "" && r.ExternalID != filter.ExternalID {
		return false
	}
	if filter.Label != "" {
		found := false
		for _, l := range r.Labels {
			if l == filter.Label {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
