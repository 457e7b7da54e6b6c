// Copyright 2022 Cloudbase Solutions SRL
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

// Package client is a thin HTTP client over the read-only management
// API (SPEC_FULL.md §6). Unlike the teacher's garm-cli, which talks to
// a generated OpenAPI client, this API has three GET endpoints and no
// generator is worth the dependency; encoding/json and net/http carry
// it directly.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	apiparams "github.com/harryfinbow/runner-manager/apiserver/params"
)

// Client calls the management API at BaseURL, authenticating every
// request with APIKey.
type Client struct {
	BaseURL string
	APIKey  string

	httpClient *http.Client
}

// New builds a Client. baseURL should not have a trailing slash.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) get(path string, out interface{}) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr apiparams.APIErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", apiErr.Error, apiErr.Details)
		}
		return fmt.Errorf("unexpected status %s from %s", resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

// ListGroups calls GET /api/v1/groups.
func (c *Client) ListGroups() ([]apiparams.Group, error) {
	var groups []apiparams.Group
	if err := c.get("/api/v1/groups", &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ListGroupRunners calls GET /api/v1/groups/{name}/runners.
func (c *Client) ListGroupRunners(group string) ([]apiparams.Runner, error) {
	var runners []apiparams.Runner
	path := fmt.Sprintf("/api/v1/groups/%s/runners", url.PathEscape(group))
	if err := c.get(path, &runners); err != nil {
		return nil, err
	}
	return runners, nil
}

// ListEvents calls GET /api/v1/events.
func (c *Client) ListEvents() ([]apiparams.Event, error) {
	var events []apiparams.Event
	if err := c.get("/api/v1/events", &events); err != nil {
		return nil, err
	}
	return events, nil
}
