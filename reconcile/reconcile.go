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

// Package reconcile implements the three control loops from spec.md
// §4.5: a startup reconciler that enforces each group's minimum, a
// healthcheck reconciler that evaluates age-based timeouts and prunes
// backend orphans, and an indexing reconciler that three-way
// reconciles the hosting service, the backend and the store. The
// startup reconciler runs once when Run starts; the other two are
// context-cancellable loops built around time.Ticker, coordinated
// for shutdown with golang.org/x/sync/errgroup, following the
// teacher's startLoopForFunction pattern.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harryfinbow/runner-manager/lifecycle"
	"github.com/harryfinbow/runner-manager/store"
)

// Default intervals and deadlines from spec.md §4.5/§5.
const (
	DefaultHealthcheckInterval = 15 * time.Minute
	DefaultIndexingInterval    = time.Hour
	DefaultCallDeadline        = 60 * time.Second
	tickerSafetyMargin         = 5 * time.Second
	maxConcurrentPerTick       = 8
)

// Runner drives the three reconciliation loops against a shared
// lifecycle.Manager and store.Store. One Runner exists per
// runner-manager process.
type Runner struct {
	manager *lifecycle.Manager
	store   store.Store

	healthcheckInterval time.Duration
	indexingInterval    time.Duration
	callDeadline        time.Duration

	logger *slog.Logger
}

// Config carries the inputs New needs.
type Config struct {
	Manager             *lifecycle.Manager
	Store               store.Store
	HealthcheckInterval time.Duration
	IndexingInterval    time.Duration
	CallDeadline        time.Duration
	Logger              *slog.Logger
}

func New(cfg Config) *Runner {
	if cfg.HealthcheckInterval <= 0 {
		cfg.HealthcheckInterval = DefaultHealthcheckInterval
	}
	if cfg.IndexingInterval <= 0 {
		cfg.IndexingInterval = DefaultIndexingInterval
	}
	if cfg.CallDeadline <= 0 {
		cfg.CallDeadline = DefaultCallDeadline
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		manager:              cfg.Manager,
		store:                cfg.Store,
		healthcheckInterval:  cfg.HealthcheckInterval,
		indexingInterval:     cfg.IndexingInterval,
		callDeadline:         cfg.CallDeadline,
		logger:               cfg.Logger,
	}
}

// Run starts the startup reconciler once, then the healthcheck and
// indexing loops, blocking until ctx is cancelled or one of the loops
// returns a non-nil error. Both periodic loops skip a tick (rather
// than queue up) if the previous run of the same loop is still in
// flight, per spec.md §5's per-tick budget.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.RunStartup(ctx); err != nil {
		r.logger.Error("startup reconciler failed", slog.Any("error", err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.loop(ctx, "healthcheck", r.healthcheckInterval, r.tickHealthcheck)
	})
	g.Go(func() error {
		return r.loop(ctx, "indexing", r.indexingInterval, r.tickIndexing)
	})
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, name string, interval time.Duration, tick func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	budget := interval - tickerSafetyMargin
	if budget <= 0 {
		budget = interval
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			tickCtx, cancel := context.WithTimeout(ctx, budget)
			if err := tick(tickCtx); err != nil {
				r.logger.Error("reconciler tick failed", slog.String("loop", name), slog.Any("error", err))
			}
			cancel()
		}
	}
}

func (r *Runner) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.callDeadline)
}

func forEachBounded[T any](ctx context.Context, items []T, fn func(context.Context, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPerTick)
	for _, item := range items {
		item := item
		g.Go(func() error {
			return fn(gctx, item)
		})
	}
	return g.Wait()
}
