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

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"

	apiparams "github.com/harryfinbow/runner-manager/apiserver/params"
)

// APIKeyMiddleware guards the management API with a single shared
// secret (SPEC_FULL.md §6), a deliberate simplification of the
// teacher's per-user JWT/OIDC scheme: this process has no user
// accounts to authenticate, only one operator-held key. The key is
// read from the api_key query parameter or an X-Api-Key header and
// compared in constant time so a timing side-channel can't be used to
// recover it byte by byte.
type APIKeyMiddleware struct {
	keyHash [sha256.Size]byte
}

// NewAPIKeyMiddleware builds a middleware that accepts only requests
// presenting apiKey.
func NewAPIKeyMiddleware(apiKey string) APIKeyMiddleware {
	return APIKeyMiddleware{keyHash: sha256.Sum256([]byte(apiKey))}
}

func (a APIKeyMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-Api-Key")
		if presented == "" {
			presented = r.URL.Query().Get("api_key")
		}
		presentedHash := sha256.Sum256([]byte(presented))
		if subtle.ConstantTimeCompare(a.keyHash[:], presentedHash[:]) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(apiparams.UnauthorizedResponse)
			return
		}
		next.ServeHTTP(w, r)
	})
}
