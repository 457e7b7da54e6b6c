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
	"net/http"
	"testing"

	"github.com/google/go-github/v55/github"
	"github.com/stretchr/testify/require"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
)

func TestUseAppAuthRequiresAllThreeFields(t *testing.T) {
	require.False(t, (Credentials{AppID: 1, InstallationID: 2}).useAppAuth())
	require.False(t, (Credentials{AppID: 1, PrivateKey: []byte("x")}).useAppAuth())
	require.True(t, (Credentials{AppID: 1, InstallationID: 2, PrivateKey: []byte("x")}).useAppAuth())
}

func TestNewHTTPClientRequiresSomeAuth(t *testing.T) {
	_, err := newHTTPClient(context.Background(), Credentials{})
	require.ErrorIs(t, err, runnerErrors.ErrConfigMissingAuth)
}

func TestNewHTTPClientTokenAuth(t *testing.T) {
	client, err := newHTTPClient(context.Background(), Credentials{Token: "ghp_test"})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestParseErrorMapsStatusCodes(t *testing.T) {
	cases := []struct {
		status  int
		checkFn func(error) bool
	}{
		{http.StatusNotFound, runnerErrors.IsNotFound},
		{http.StatusTooManyRequests, runnerErrors.IsBackendUnavailable},
		{http.StatusInternalServerError, runnerErrors.IsBackendUnavailable},
	}
	for _, tc := range cases {
		resp := &github.Response{Response: &http.Response{StatusCode: tc.status}}
		err := parseError(resp, errPlaceholder)
		require.True(t, tc.checkFn(err), "status %d", tc.status)
	}
}

var errPlaceholder = &github.ErrorResponse{Message: "boom"}
