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

var (
	// RunnerStatus reflects a single runner's lifecycle state
	// (spec.md §4.4). Set to 1 for the runner's current status and 0
	// for every other status value, so a status transition shows up as
	// one series rising and another falling at the same timestamp.
	RunnerStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsRunnerSubsystem,
		Name:      "status",
		Help:      "Status of a runner",
	}, []string{"name", "status", "group", "organization", "provider"})

	// BackendOperationCount and BackendOperationFailedCount count
	// attempted and failed calls into a group's compute backend
	// (Create/Delete/Get/List).
	BackendOperationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsBackendSubsystem,
		Name:      "operations_total",
		Help:      "Total number of backend operation attempts",
	}, []string{"operation", "group", "provider"})

	BackendOperationFailedCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsBackendSubsystem,
		Name:      "errors_total",
		Help:      "Total number of failed backend operation attempts",
	}, []string{"operation", "group", "provider"})

	// BackendInfo carries one constant-value series per configured
	// group, identifying which backend provider serves it.
	BackendInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsBackendSubsystem,
		Name:      "info",
		Help:      "Backend provider in use for a group",
	}, []string{"group", "provider"})
)
