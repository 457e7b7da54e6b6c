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

// Package webhook implements the event intake from spec.md §4.6: HMAC
// signature verification, a bounded in-process queue decoupling HTTP
// response time from downstream lifecycle calls, and a dispatcher
// that drives workflow_job events through the lifecycle manager.
package webhook

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"strings"

	runnerErrors "github.com/harryfinbow/runner-manager/errors"
	"github.com/harryfinbow/runner-manager/util"
)

// ValidateSignature checks signature (the X-Hub-Signature-256 or
// X-Hub-Signature header value, "algo=hex") against body using the
// shared secret, constant-time. An empty secret disables validation
// entirely (development mode); a configured secret with no signature
// header is always rejected.
func ValidateSignature(signature, secret string, body []byte) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return runnerErrors.NewUnauthorizedError("missing webhook signature")
	}

	parts := strings.SplitN(signature, "=", 2)
	if len(parts) != 2 {
		return runnerErrors.NewBadRequestError("invalid signature format")
	}

	var hashFunc func() hash.Hash
	switch {
	case util.ASCIIEqualFold(parts[0], "sha256"):
		hashFunc = sha256.New
	case util.ASCIIEqualFold(parts[0], "sha1"):
		hashFunc = sha1.New
	default:
		return runnerErrors.NewBadRequestError("unknown signature algorithm %q", parts[0])
	}

	mac := hmac.New(hashFunc, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return runnerErrors.NewUnauthorizedError("signature mismatch")
	}
	return nil
}
