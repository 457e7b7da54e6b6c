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
	// GroupSize is the number of persisted runner records currently
	// belonging to a group, refreshed on every healthcheck tick.
	GroupSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsGroupSubsystem,
		Name:      "size",
		Help:      "Current number of runners in the group",
	}, []string{"group"})

	GroupMinRunners = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsGroupSubsystem,
		Name:      "min_runners",
		Help:      "Configured minimum number of runners for the group",
	}, []string{"group"})

	GroupMaxRunners = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsGroupSubsystem,
		Name:      "max_runners",
		Help:      "Configured maximum number of runners for the group",
	}, []string{"group"})
)
