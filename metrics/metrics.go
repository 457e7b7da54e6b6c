// Copyright 2025 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace        = "runnermanager"
	metricsRunnerSubsystem  = "runner"
	metricsGroupSubsystem   = "group"
	metricsBackendSubsystem = "backend"
	metricsHostingSubsystem = "hosting"
	metricsWebhookSubsystem = "webhook"
)

// RegisterMetrics registers all the metrics
func RegisterMetrics() error {
	var collectors []prometheus.Collector
	collectors = append(collectors,
		// runner metrics
		RunnerStatus,
		JobStatus,

		// group metrics
		GroupSize,
		GroupMinRunners,
		GroupMaxRunners,

		// backend metrics
		BackendInfo,
		BackendOperationCount,
		BackendOperationFailedCount,

		// hosting-service metrics
		HostingOperationCount,
		HostingOperationFailedCount,

		// webhook metrics
		WebhooksReceived,

		// health
		Health,
	)

	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return err
		}
	}

	return nil
}
