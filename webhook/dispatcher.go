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
	"errors"
	"log/slog"
	"time"

	"github.com/harryfinbow/runner-manager/lifecycle"
	"github.com/harryfinbow/runner-manager/params"
)

// Default queue sizing and retry bound from spec.md §4.6/§5.
const (
	DefaultQueueSize   = 256
	maxPickupAttempts  = 5
	pickupRetryBackoff = 2 * time.Second
)

// Dispatcher owns the bounded in-process queue and the goroutine that
// drains it, translating workflow_job events into lifecycle manager
// calls. Handlers never call the lifecycle manager directly: they
// enqueue and return immediately, so a slow backend or hosting-service
// call never holds an HTTP response open (spec.md §4.6).
type Dispatcher struct {
	manager *lifecycle.Manager
	logger  *slog.Logger
	queue   chan job
}

// NewDispatcher constructs a Dispatcher with a queue of the given
// capacity (DefaultQueueSize if zero or negative).
func NewDispatcher(manager *lifecycle.Manager, queueSize int, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		manager: manager,
		logger:  logger,
		queue:   make(chan job, queueSize),
	}
}

// Enqueue places event on the queue without blocking. It returns
// false if the queue is full, which the HTTP handler surfaces as a
// 503 so the hosting service retries delivery later.
func (d *Dispatcher) Enqueue(event params.WorkflowJob) bool {
	select {
	case d.queue <- job{event: event}:
		return true
	default:
		return false
	}
}

// Run drains the queue until ctx is cancelled, at which point it
// finishes processing whatever remains already queued and returns
// (spec.md §5: "webhook handling drains the queue, processes queued
// events, then exits").
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case j := <-d.queue:
			d.process(ctx, j)
		case <-ctx.Done():
			d.drain(ctx)
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case j := <-d.queue:
			d.process(ctx, j)
		default:
			return
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) {
	event := j.event
	name := event.RunnerName()

	switch params.WorkflowJobAction(event.Action) {
	case params.ActionQueued:
		d.handleQueued(ctx, event)

	case params.ActionInProgress:
		if name == "" {
			d.logger.Warn("in_progress event with no runner name", slog.Int64("job_id", event.WorkflowJob.ID))
			return
		}
		err := d.manager.Pickup(ctx, name, event.WorkflowJob.Name, event.Repository.Name, event.WorkflowJob.ID)
		switch {
		case err == nil:
			return
		case errors.Is(err, lifecycle.ErrNotReady):
			d.retryPickup(j)
		default:
			d.logger.Error("pickup failed", slog.String("runner", name), slog.Any("error", err))
		}

	case params.ActionCompleted:
		if name == "" {
			d.logger.Warn("completed event with no runner name", slog.Int64("job_id", event.WorkflowJob.ID))
			return
		}
		if err := d.manager.Finish(ctx, name); err != nil {
			d.logger.Error("finish failed", slog.String("runner", name), slog.Any("error", err))
			return
		}
		if err := d.manager.Delete(ctx, name); err != nil {
			d.logger.Error("post-completion delete failed", slog.String("runner", name), slog.Any("error", err))
		}

	default:
		// Acknowledge without side effects.
	}
}

// handleQueued optionally triggers scale-up for the group matching
// the job's labels (spec.md §4.6). Create holds the group lock for the
// duration of its own work, so concurrent queued events for the same
// group provision one at a time. Neither this call nor Create compares
// the group's runner count against its max, so every matching queued
// event provisions one runner.
func (d *Dispatcher) handleQueued(ctx context.Context, event params.WorkflowJob) {
	group, ok := d.manager.GroupForLabels(event.Labels())
	if !ok {
		return
	}
	if _, err := d.manager.Create(ctx, group); err != nil {
		d.logger.Error("scale-up create failed", slog.String("group", group), slog.Any("error", err))
	}
}

// retryPickup re-queues an in_progress event that arrived before the
// runner's registration was observed, honoring the bounded retry
// budget from spec.md §5; after the budget is exhausted the event is
// discarded and logged.
func (d *Dispatcher) retryPickup(j job) {
	j.attempt++
	if j.attempt > maxPickupAttempts {
		d.logger.Warn("discarding in_progress event past retry budget",
			slog.String("runner", j.event.RunnerName()), slog.Int("attempts", j.attempt-1))
		return
	}
	go func() {
		time.Sleep(pickupRetryBackoff)
		select {
		case d.queue <- j:
		default:
			d.logger.Warn("dropping retried in_progress event: queue full",
				slog.String("runner", j.event.RunnerName()))
		}
	}()
}
