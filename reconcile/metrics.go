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
	"strconv"
	"strings"

	"github.com/harryfinbow/runner-manager/metrics"
	"github.com/harryfinbow/runner-manager/store"
)

// collectMetrics refreshes the gauges that reflect current fleet
// state rather than a single operation's outcome: group size and the
// per-job status series. It resets each gauge before repopulating it,
// so a runner or job that no longer matches stops reporting instead
// of leaving a stale series behind.
func (r *Runner) collectMetrics(ctx context.Context) error {
	metrics.JobStatus.Reset()
	metrics.GroupSize.Reset()

	for _, group := range r.manager.Groups() {
		runners, err := r.store.Find(ctx, store.Filter{Group: group})
		if err != nil {
			return fmt.Errorf("listing runners for group %s: %w", group, err)
		}

		metrics.GroupSize.WithLabelValues(group).Set(float64(len(runners)))

		for _, runner := range runners {
			if runner.WorkflowJobID == 0 {
				continue
			}
			metrics.JobStatus.WithLabelValues(
				strconv.FormatInt(runner.WorkflowJobID, 10), // label: job_id
				runner.WorkflowName,                         // label: name
				string(runner.Status),                        // label: status
				"",                                           // label: conclusion (not carried on Runner)
				runner.Name,                                  // label: runner_name
				runner.RepositoryName,                         // label: repository
				strings.Join(runner.Labels, " "),              // label: requested_labels
			).Set(1)
		}
	}
	return nil
}
