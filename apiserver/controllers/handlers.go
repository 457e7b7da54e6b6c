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

// Package controllers implements the read-only management API handlers
// from SPEC_FULL.md §6: fleet visibility into configured groups, the
// runners within them, and the recent event log. Unlike the teacher's
// controllers package, nothing here mutates state — group membership
// and runner lifecycle are driven entirely by webhook events and the
// reconcile loops, never by an operator request.
package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	apiparams "github.com/harryfinbow/runner-manager/apiserver/params"
	"github.com/harryfinbow/runner-manager/apiserver/events"
	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/lifecycle"
	"github.com/harryfinbow/runner-manager/params"
	"github.com/harryfinbow/runner-manager/store"
)

// APIController holds the dependencies the management handlers read
// from; it never writes to any of them.
type APIController struct {
	manager  *lifecycle.Manager
	store    store.Store
	recorder *events.Recorder
}

// NewAPIController builds an APIController over manager's configured
// groups, store for runner listings, and recorder for the event log
// (nil disables GET /events, returning an empty list).
func NewAPIController(manager *lifecycle.Manager, st store.Store, recorder *events.Recorder) *APIController {
	return &APIController{manager: manager, store: st, recorder: recorder}
}

// ListGroupsHandler handles GET /groups: every configured group, with
// its current persisted size.
func (c *APIController) ListGroupsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groups := make([]apiparams.Group, 0, len(c.manager.Groups()))
	for _, name := range c.manager.Groups() {
		rt, err := c.manager.RuntimeFor(name)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		runners, err := c.store.Find(ctx, store.Filter{Group: name})
		if err != nil {
			writeAPIError(w, err)
			return
		}
		groups = append(groups, toAPIGroup(rt.Group, len(runners)))
	}
	writeJSON(w, http.StatusOK, groups)
}

// ListGroupRunnersHandler handles GET /groups/{name}/runners: every
// runner currently persisted for the named group.
func (c *APIController) ListGroupRunnersHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, err := c.manager.RuntimeFor(name); err != nil {
		writeAPIError(w, err)
		return
	}

	runners, err := c.store.Find(r.Context(), store.Filter{Group: name})
	if err != nil {
		writeAPIError(w, err)
		return
	}

	out := make([]apiparams.Runner, 0, len(runners))
	for _, runner := range runners {
		out = append(out, toAPIRunner(runner))
	}
	writeJSON(w, http.StatusOK, out)
}

// ListEventsHandler handles GET /events: the recorder's current
// contents, oldest first.
func (c *APIController) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	if c.recorder == nil {
		writeJSON(w, http.StatusOK, []apiparams.Event{})
		return
	}
	writeJSON(w, http.StatusOK, c.recorder.Recent())
}

func toAPIGroup(g params.RunnerGroup, size int) apiparams.Group {
	return apiparams.Group{
		Name:         g.Name,
		Organization: g.Organization,
		Provider:     string(g.Provider),
		Labels:       g.Labels,
		Min:          g.Min,
		Max:          g.Max,
		CurrentSize:  size,
	}
}

func toAPIRunner(r params.Runner) apiparams.Runner {
	return apiparams.Runner{
		Name:           r.Name,
		Group:          r.Group,
		Organization:   r.Organization,
		Status:         string(r.Status),
		Busy:           r.Busy,
		InstanceID:     r.InstanceID,
		ExternalID:     r.ExternalID,
		WorkflowName:   r.WorkflowName,
		RepositoryName: r.RepositoryName,
		CreatedAt:      r.CreatedAt,
		PickedUpAt:     r.PickedUpAt,
		CompletedAt:    r.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := apiparams.APIErrorResponse{Error: "internal error", Details: err.Error()}
	if runnerErrors.IsNotFound(err) {
		status = http.StatusNotFound
		resp = apiparams.NotFoundResponse
	}
	writeJSON(w, status, resp)
}
