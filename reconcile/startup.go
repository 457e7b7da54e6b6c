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

	"github.com/harryfinbow/runner-manager/store"
)

// RunStartup executes the startup reconciler (spec.md §4.5): for
// every configured group, compute need = max(0, min_runners -
// current_count) and issue that many create transitions. Runs once
// at boot and may be called again whenever group configuration
// changes.
func (r *Runner) RunStartup(ctx context.Context) error {
	for _, group := range r.manager.Groups() {
		current, err := r.store.Find(ctx, store.Filter{Group: group})
		if err != nil {
			return fmt.Errorf("counting runners for group %s: %w", group, err)
		}

		need := r.manager.NeedForGroup(group, len(current))
		if need <= 0 {
			continue
		}

		r.logger.Info("startup reconciler provisioning runners", slog.String("group", group), slog.Int("need", need))
		for i := 0; i < need; i++ {
			callCtx, cancel := r.callCtx(ctx)
			_, err := r.manager.Create(callCtx, group)
			cancel()
			if err != nil {
				r.logger.Error("startup reconciler create failed", slog.String("group", group), slog.Any("error", err))
			}
		}
	}
	return nil
}
