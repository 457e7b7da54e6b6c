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

package params

import "time"

// WorkflowJobAction is the action field of a workflow_job webhook
// event (spec.md §3).
type WorkflowJobAction string

const (
	ActionQueued     WorkflowJobAction = "queued"
	ActionInProgress WorkflowJobAction = "in_progress"
	ActionCompleted  WorkflowJobAction = "completed"
)

// WorkflowJob is the payload GitHub sends for a workflow_job event,
// trimmed to the fields the lifecycle manager and scale-up decisions
// consume. Grounded on the hosting-service client's own wire shape.
type WorkflowJob struct {
	Action string `json:"action"`

	WorkflowJob struct {
		ID              int64     `json:"id"`
		Name            string    `json:"name"`
		Status          string    `json:"status"`
		Conclusion      string    `json:"conclusion"`
		StartedAt       time.Time `json:"started_at"`
		CompletedAt     time.Time `json:"completed_at"`
		Labels          []string  `json:"labels"`
		RunnerID        int64     `json:"runner_id"`
		RunnerName      string    `json:"runner_name"`
		RunnerGroupName string    `json:"runner_group_name"`
	} `json:"workflow_job"`

	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`

	Organization struct {
		Login string `json:"login"`
	} `json:"organization"`
}

// RunnerName is the target of this event, as reported by the hosting
// service. Empty for "queued" events: no runner has picked the job up
// yet.
func (w WorkflowJob) RunnerName() string {
	return w.WorkflowJob.RunnerName
}

// Labels are the labels requested by the job. Used to match a "queued"
// event to the group whose label set it satisfies.
func (w WorkflowJob) Labels() []string {
	return w.WorkflowJob.Labels
}
