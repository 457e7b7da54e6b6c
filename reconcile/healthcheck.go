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
	"fmt"
	"log/slog"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/params"
)

// tickHealthcheck executes the healthcheck reconciler (spec.md
// §4.5): every persisted runner is evaluated for age-based timeout,
// and any runner whose backend Get returns NotFound despite being
// past provisioning is reconciled as an orphan via the same delete
// transition.
func (r *Runner) tickHealthcheck(ctx context.Context) error {
	runners, err := r.store.All(ctx)
	if err != nil {
		return fmt.Errorf("listing runners: %w", err)
	}

	if err := r.collectMetrics(ctx); err != nil {
		r.logger.Error("metrics collection failed", slog.Any("error", err))
	}

	return forEachBounded(ctx, runners, func(ctx context.Context, runner params.Runner) error {
		callCtx, cancel := r.callCtx(ctx)
		defer cancel()

		expired, err := r.manager.Timeout(callCtx, runner)
		if err != nil {
			r.logger.Error("healthcheck timeout evaluation failed", slog.String("runner", runner.Name), slog.Any("error", err))
			return nil
		}
		if expired {
			r.logger.Info("healthcheck expired runner", slog.String("runner", runner.Name), slog.String("status", string(runner.Status)))
			return nil
		}

		if runner.Status == params.StatusOffline || runner.InstanceID == "" {
			return nil
		}

		if _, err := r.manager.BackendFor(callCtx, runner); runnerErrors.IsNotFound(err) {
			r.logger.Info("healthcheck found orphaned runner record, deleting", slog.String("runner", runner.Name))
			if derr := r.manager.Delete(callCtx, runner.Name); derr != nil {
				r.logger.Error("healthcheck orphan delete failed", slog.String("runner", runner.Name), slog.Any("error", derr))
			}
		}
		return nil
	})
}
