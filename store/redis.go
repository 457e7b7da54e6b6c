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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/params"
)

// Key layout, mirroring the Redis-OM-style secondary indexing this
// spec was distilled from (see SPEC_FULL.md §4.2):
//
//	runner:<name>                 hash of scalar fields
//	runner:<name>:labels          set of labels
//	idx:status:<status>           set of runner names
//	idx:group:<group>             set of runner names
//	idx:instance:<instance_id>    set of runner names (at most one member)
//	idx:external:<external_id>    set of runner names (at most one member)
//	idx:label:<label>             set of runner names
//	runners                       set of every runner name
const (
	keyRunner       = "runner:%s"
	keyRunnerLabels = "runner:%s:labels"
	keyIdxStatus    = "idx:status:%s"
	keyIdxGroup     = "idx:group:%s"
	keyIdxInstance  = "idx:instance:%s"
	keyIdxExternal  = "idx:external:%s"
	keyIdxLabel     = "idx:label:%s"
	keyAllRunners   = "runners"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore dials the Redis endpoint named by the redis_om_url
// config key (spec.md §6).
func NewRedisStore(ctx context.Context, url string) (Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis_om_url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &redisStore{client: client}, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

func (s *redisStore) Save(ctx context.Context, runner params.Runner) (params.Runner, error) {
	if runner.Name == "" {
		return params.Runner{}, runnerErrors.NewBadRequestError("runner name is required")
	}

	existing, err := s.Get(ctx, runner.Name)
	switch {
	case err == nil:
		if err := s.checkUniqueness(ctx, runner, existing); err != nil {
			return params.Runner{}, err
		}
	case runnerErrors.IsNotFound(err):
		if err := s.checkUniqueness(ctx, runner, params.Runner{}); err != nil {
			return params.Runner{}, err
		}
	default:
		return params.Runner{}, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existing.Name != "" {
			s.unindex(ctx, pipe, existing)
		}
		pipe.HSet(ctx, fmt.Sprintf(keyRunner, runner.Name), toHash(runner))
		pipe.SAdd(ctx, keyAllRunners, runner.Name)

		labelsKey := fmt.Sprintf(keyRunnerLabels, runner.Name)
		pipe.Del(ctx, labelsKey)
		if len(runner.Labels) > 0 {
			members := make([]interface{}, len(runner.Labels))
			for i, l := range runner.Labels {
				members[i] = l
			}
			pipe.SAdd(ctx, labelsKey, members...)
		}

		pipe.SAdd(ctx, fmt.Sprintf(keyIdxStatus, runner.Status), runner.Name)
		pipe.SAdd(ctx, fmt.Sprintf(keyIdxGroup, runner.Group), runner.Name)
		if runner.InstanceID != "" {
			pipe.SAdd(ctx, fmt.Sprintf(keyIdxInstance, runner.InstanceID), runner.Name)
		}
		if runner.ExternalID != "" {
			pipe.SAdd(ctx, fmt.Sprintf(keyIdxExternal, runner.ExternalID), runner.Name)
		}
		for _, l := range runner.Labels {
			pipe.SAdd(ctx, fmt.Sprintf(keyIdxLabel, l), runner.Name)
		}
		return nil
	})
	if err != nil {
		return params.Runner{}, fmt.Errorf("saving runner %s: %w", runner.Name, err)
	}
	return runner, nil
}

// checkUniqueness enforces that InstanceID and ExternalID, when set,
// belong to at most one runner (spec.md §4.2).
func (s *redisStore) checkUniqueness(ctx context.Context, runner, existing params.Runner) error {
	if runner.InstanceID != "" && runner.InstanceID != existing.InstanceID {
		holders, err := s.client.SMembers(ctx, fmt.Sprintf(keyIdxInstance, runner.InstanceID)).Result()
		if err != nil {
			return err
		}
		for _, h := range holders {
			if h != runner.Name {
				return runnerErrors.ErrDuplicateEntity
			}
		}
	}
	if runner.ExternalID != "" && runner.ExternalID != existing.ExternalID {
		holders, err := s.client.SMembers(ctx, fmt.Sprintf(keyIdxExternal, runner.ExternalID)).Result()
		if err != nil {
			return err
		}
		for _, h := range holders {
			if h != runner.Name {
				return runnerErrors.ErrDuplicateEntity
			}
		}
	}
	return nil
}

// unindex removes every secondary index entry for the previous
// version of a runner record before the new version is written.
func (s *redisStore) unindex(ctx context.Context, pipe redis.Pipeliner, runner params.Runner) {
	pipe.SRem(ctx, fmt.Sprintf(keyIdxStatus, runner.Status), runner.Name)
	pipe.SRem(ctx, fmt.Sprintf(keyIdxGroup, runner.Group), runner.Name)
	if runner.InstanceID != "" {
		pipe.SRem(ctx, fmt.Sprintf(keyIdxInstance, runner.InstanceID), runner.Name)
	}
	if runner.ExternalID != "" {
		pipe.SRem(ctx, fmt.Sprintf(keyIdxExternal, runner.ExternalID), runner.Name)
	}
	for _, l := range runner.Labels {
		pipe.SRem(ctx, fmt.Sprintf(keyIdxLabel, l), runner.Name)
	}
}

func (s *redisStore) Get(ctx context.Context, name string) (params.Runner, error) {
	vals, err := s.client.HGetAll(ctx, fmt.Sprintf(keyRunner, name)).Result()
	if err != nil {
		return params.Runner{}, err
	}
	if len(vals) == 0 {
		return params.Runner{}, runnerErrors.ErrNotFound
	}
	labels, err := s.client.SMembers(ctx, fmt.Sprintf(keyRunnerLabels, name)).Result()
	if err != nil {
		return params.Runner{}, err
	}
	runner := fromHash(vals)
	runner.Labels = labels
	return runner, nil
}

func (s *redisStore) Delete(ctx context.Context, name string) error {
	runner, err := s.Get(ctx, name)
	if runnerErrors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.unindex(ctx, pipe, runner)
		pipe.Del(ctx, fmt.Sprintf(keyRunner, name))
		pipe.Del(ctx, fmt.Sprintf(keyRunnerLabels, name))
		pipe.SRem(ctx, keyAllRunners, name)
		return nil
	})
	return err
}

func (s *redisStore) All(ctx context.Context) ([]params.Runner, error) {
	names, err := s.client.SMembers(ctx, keyAllRunners).Result()
	if err != nil {
		return nil, err
	}
	return s.getAll(ctx, names)
}

func (s *redisStore) Find(ctx context.Context, filter Filter) ([]params.Runner, error) {
	sets := []string{}
	if filter.Status != "" {
		sets = append(sets, fmt.Sprintf(keyIdxStatus, filter.Status))
	}
	if filter.Group != "" {
		sets = append(sets, fmt.Sprintf(keyIdxGroup, filter.Group))
	}
	if filter.InstanceID != "" {
		sets = append(sets, fmt.Sprintf(keyIdxInstance, filter.InstanceID))
	}
	if filter.ExternalID != "" {
		sets = append(sets, fmt.Sprintf(keyIdxExternal, filter.ExternalID))
	}
	if filter.Label != "" {
		sets = append(sets, fmt.Sprintf(keyIdxLabel, filter.Label))
	}

	var names []string
	var err error
	switch len(sets) {
	case 0:
		names, err = s.client.SMembers(ctx, keyAllRunners).Result()
	case 1:
		names, err = s.client.SMembers(ctx, sets[0]).Result()
	default:
		names, err = s.client.SInter(ctx, sets...).Result()
	}
	if err != nil {
		return nil, err
	}
	return s.getAll(ctx, names)
}

func (s *redisStore) FindFirst(ctx context.Context, filter Filter) (params.Runner, error) {
	runners, err := s.Find(ctx, filter)
	if err != nil {
		return params.Runner{}, err
	}
	if len(runners) == 0 {
		return params.Runner{}, runnerErrors.ErrNotFound
	}
	return runners[0], nil
}

func (s *redisStore) getAll(ctx context.Context, names []string) ([]params.Runner, error) {
	runners := make([]params.Runner, 0, len(names))
	for _, name := range names {
		runner, err := s.Get(ctx, name)
		if runnerErrors.IsNotFound(err) {
			// Index and record can transiently disagree between the SMEMBERS
			// call above and this read; skip rather than fail the whole query.
			continue
		}
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}
	return runners, nil
}

func toHash(r params.Runner) map[string]interface{} {
	return map[string]interface{}{
		"name":            r.Name,
		"external_id":     r.ExternalID,
		"instance_id":     r.InstanceID,
		"group":           r.Group,
		"organization":    r.Organization,
		"status":          string(r.Status),
		"busy":            strconv.FormatBool(r.Busy),
		"created_at":      formatTime(r.CreatedAt),
		"picked_up_at":    formatTime(r.PickedUpAt),
		"completed_at":    formatTime(r.CompletedAt),
		"jit_config":      r.EncodedJITConfig,
		"workflow_name":   r.WorkflowName,
		"repository_name": r.RepositoryName,
		"provider_fault":  r.ProviderFault,
	}
}

func fromHash(vals map[string]string) params.Runner {
	busy, _ := strconv.ParseBool(vals["busy"])
	return params.Runner{
		Name:             vals["name"],
		ExternalID:       vals["external_id"],
		InstanceID:       vals["instance_id"],
		Group:            vals["group"],
		Organization:     vals["organization"],
		Status:           params.RunnerStatus(vals["status"]),
		Busy:             busy,
		CreatedAt:        parseTime(vals["created_at"]),
		PickedUpAt:       parseTime(vals["picked_up_at"]),
		CompletedAt:      parseTime(vals["completed_at"]),
		EncodedJITConfig: vals["jit_config"],
		WorkflowName:     vals["workflow_name"],
		RepositoryName:   vals["repository_name"],
		ProviderFault:    vals["provider_fault"],
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
