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

package hostingservice

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
)

// RetryBudget caps the total wall-clock time withRetry spends on one call.
const RetryBudget = 2 * time.Minute

// withRetry retries fn against transient upstream failures (rate limits,
// 5xx) with capped exponential backoff, per spec.md §4.3, for at most
// RetryBudget. A permanent rejection (UpstreamRejectedError, ErrNotFound,
// ErrUnauthorized) is never retried.
func withRetry(ctx context.Context, fn func() error) error {
	return retry.Call(retry.CallArgs{
		Func: fn,
		IsFatalError: func(err error) bool {
			return !runnerErrors.IsBackendUnavailable(err)
		},
		Attempts:    5,
		Delay:       time.Second,
		MaxDelay:    30 * time.Second,
		MaxDuration: RetryBudget,
		BackoffFunc: retry.DoubleDelay,
		Clock:       clock.WallClock,
		Stop:        ctx.Done(),
	})
}
