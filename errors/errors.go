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

// Package errors defines the typed error taxonomy used across the
// runner-manager control plane.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a request fails authentication,
	// such as a webhook with a bad or missing signature.
	ErrUnauthorized = NewUnauthorizedError("unauthorized")
	// ErrNotFound is returned when a runner, group or backend instance
	// could not be located.
	ErrNotFound = NewNotFoundError("not found")
	// ErrDuplicateEntity is returned when creating an entity that already
	// exists (runner identity, instance id or external id collision).
	ErrDuplicateEntity = NewConflictError("duplicate entity")
	// ErrBadRequest is returned when a malformed request is received
	// (webhook validation, malformed config).
	ErrBadRequest = NewBadRequestError("invalid request")
	// ErrConfigMissingAuth is returned at startup when neither a bearer
	// token nor a complete app-installation configuration was supplied.
	ErrConfigMissingAuth = NewConfigError("no hosting-service authentication configured")
)

type baseError struct {
	msg string
}

func (b *baseError) Error() string {
	return b.msg
}

// UnauthorizedError is returned when a request is unauthorized.
type UnauthorizedError struct{ baseError }

func NewUnauthorizedError(msg string, a ...interface{}) error {
	return &UnauthorizedError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// NotFoundError is returned when a resource is not found.
type NotFoundError struct{ baseError }

func NewNotFoundError(msg string, a ...interface{}) error {
	return &NotFoundError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// BadRequestError is returned when a malformed request is received.
type BadRequestError struct{ baseError }

func NewBadRequestError(msg string, a ...interface{}) error {
	return &BadRequestError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// ConflictError is returned when a conflicting request is made, including
// attempts to create an entity that already exists.
type ConflictError struct{ baseError }

func NewConflictError(msg string, a ...interface{}) error {
	return &ConflictError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// BackendUnavailableError surfaces a transient failure to reach a compute
// backend. The transition that produced it is retried on the next
// reconciler tick; it is never process-fatal.
type BackendUnavailableError struct{ baseError }

func NewBackendUnavailableError(msg string, a ...interface{}) error {
	return &BackendUnavailableError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// QuotaExceededError is returned by a backend's Create when the provider
// account has run out of capacity.
type QuotaExceededError struct{ baseError }

func NewQuotaExceededError(msg string, a ...interface{}) error {
	return &QuotaExceededError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// InvalidConfigError is returned by a backend constructor when the
// backend's own configuration is invalid.
type InvalidConfigError struct{ baseError }

func NewInvalidConfigError(msg string, a ...interface{}) error {
	return &InvalidConfigError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// AlreadyExistsError is returned by a backend's Create when an instance
// with the same identity is already provisioned.
type AlreadyExistsError struct{ baseError }

func NewAlreadyExistsError(msg string, a ...interface{}) error {
	return &AlreadyExistsError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// UpstreamRejectedError surfaces a permanent (non-retryable) failure from
// the hosting service, e.g. a 4xx other than 429.
type UpstreamRejectedError struct{ baseError }

func NewUpstreamRejectedError(msg string, a ...interface{}) error {
	return &UpstreamRejectedError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// ConfigError is returned for fatal configuration problems detected at
// startup: malformed YAML, missing auth, empty labels, min > max.
type ConfigError struct{ baseError }

func NewConfigError(msg string, a ...interface{}) error {
	return &ConfigError{baseError{msg: fmt.Sprintf(msg, a...)}}
}

// IsNotFound returns true if err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsBackendUnavailable returns true if err is, or wraps, a
// BackendUnavailableError.
func IsBackendUnavailable(err error) bool {
	var target *BackendUnavailableError
	return errors.As(err, &target)
}

// IsUnauthorized returns true if err is, or wraps, an
// UnauthorizedError.
func IsUnauthorized(err error) bool {
	var target *UnauthorizedError
	return errors.As(err, &target)
}

// IsBadRequest returns true if err is, or wraps, a BadRequestError.
func IsBadRequest(err error) bool {
	var target *BadRequestError
	return errors.As(err, &target)
}
