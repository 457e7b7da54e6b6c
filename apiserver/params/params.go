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

// Package params holds the wire types for the read-only management API
// (SPEC_FULL.md §6): group summaries, runner listings and the recent
// event log. Distinct from the top-level params package, which models
// the domain itself rather than its HTTP representation.
package params

import "time"

// APIErrorResponse is the JSON body of every non-2xx management API
// response.
type APIErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

var (
	NotFoundResponse = APIErrorResponse{
		Error:   "Not Found",
		Details: "The resource you are looking for was not found",
	}
	UnauthorizedResponse = APIErrorResponse{
		Error:   "Not Authorized",
		Details: "Missing or invalid api_key",
	}
)

// Group is the GET /groups representation of a single configured
// runner group, enriched with its current size.
type Group struct {
	Name         string   `json:"name"`
	Organization string   `json:"organization"`
	Provider     string   `json:"provider"`
	Labels       []string `json:"labels"`
	Min          int      `json:"min"`
	Max          int      `json:"max"`
	CurrentSize  int      `json:"current_size"`
}

// Runner is the GET /groups/{name}/runners representation of a single
// persisted runner record.
type Runner struct {
	Name           string    `json:"name"`
	Group          string    `json:"group"`
	Organization   string    `json:"organization"`
	Status         string    `json:"status"`
	Busy           bool      `json:"busy"`
	InstanceID     string    `json:"instance_id,omitempty"`
	ExternalID     string    `json:"external_id,omitempty"`
	WorkflowName   string    `json:"workflow_name,omitempty"`
	RepositoryName string    `json:"repository_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	PickedUpAt     time.Time `json:"picked_up_at,omitempty"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
}

// Event is a single entry in the recent-event log served at GET
// /events.
type Event struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"`
	Runner  string    `json:"runner,omitempty"`
	Group   string    `json:"group,omitempty"`
	Message string    `json:"message"`
}
