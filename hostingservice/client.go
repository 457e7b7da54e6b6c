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

// Package hostingservice wraps the GitHub API surface the control plane
// needs to register, deregister and list runners for an organization
// (spec.md §4.3). It never touches the runner store or a backend; the
// lifecycle manager composes this package with store and backend.
package hostingservice

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
)

// Credentials carries exactly the fields needed to authenticate against
// the GitHub API; the app-installation strategy wins over the bearer
// token when all three app fields are present (spec.md §4.3, mirroring
// config.Config.UseAppAuth).
type Credentials struct {
	BaseURL string

	AppID          int64
	InstallationID int64
	PrivateKey     []byte

	Token string
}

func (c Credentials) useAppAuth() bool {
	return c.AppID != 0 && c.InstallationID != 0 && len(c.PrivateKey) != 0
}

// newHTTPClient builds the *http.Client used to talk to GitHub,
// selecting the app-installation transport or a static-token
// oauth2 transport per Credentials.useAppAuth (spec.md §4.3).
func newHTTPClient(ctx context.Context, creds Credentials) (*http.Client, error) {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if creds.useAppAuth() {
		itr, err := ghinstallation.New(transport, creds.AppID, creds.InstallationID, creds.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("creating github app installation transport: %w", err)
		}
		if creds.BaseURL != "" {
			itr.BaseURL = creds.BaseURL
		}
		return &http.Client{Transport: itr}, nil
	}

	if creds.Token == "" {
		return nil, runnerErrors.ErrConfigMissingAuth
	}

	httpClient := &http.Client{Transport: transport}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token})
	return oauth2.NewClient(ctx, ts), nil
}

// Client is the hosting-service client consumed by the lifecycle
// manager and reconcilers.
type Client struct {
	gh  *github.Client
	org string
}

// NewClient builds a Client authenticated against org, using the
// GitHub REST API rooted at creds.BaseURL (or the public API when
// empty).
func NewClient(ctx context.Context, org string, creds Credentials) (*Client, error) {
	httpClient, err := newHTTPClient(ctx, creds)
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(httpClient)
	if creds.BaseURL != "" {
		gh, err = gh.WithEnterpriseURLs(creds.BaseURL, creds.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring github enterprise urls: %w", err)
		}
	}

	return &Client{gh: gh, org: org}, nil
}

// parseError translates a go-github error/response pair into the
// control plane's typed error taxonomy (spec.md §7), mirroring the
// teacher's status-code mapping.
func parseError(resp *github.Response, err error) error {
	if err == nil {
		return nil
	}
	var statusCode int
	if resp != nil {
		statusCode = resp.StatusCode
	}
	switch statusCode {
	case http.StatusNotFound:
		return runnerErrors.ErrNotFound
	case http.StatusUnauthorized:
		return runnerErrors.ErrUnauthorized
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return runnerErrors.NewUpstreamRejectedError("%v", err)
	case http.StatusTooManyRequests:
		return runnerErrors.NewBackendUnavailableError("rate limited: %v", err)
	default:
		if statusCode >= 500 {
			return runnerErrors.NewBackendUnavailableError("%v", err)
		}
		if statusCode >= 400 {
			return runnerErrors.NewUpstreamRejectedError("%v", err)
		}
		return err
	}
}
