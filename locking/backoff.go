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

package locking

import (
	"sync"
	"time"
)

// maxBackoffSeconds caps the geometric backoff applied to a runner
// whose backend delete keeps failing, so a persistently unreachable
// backend doesn't starve the healthcheck reconciler's tick budget.
const maxBackoffSeconds float64 = 1200 // 20 minutes

// initialBackoffSeconds is the delay applied after the first observed
// failure.
const initialBackoffSeconds float64 = 5

// NewDeleteBackoff returns an in-process DeleteBackoff.
func NewDeleteBackoff() DeleteBackoff {
	return &deleteBackoff{}
}

type backoffEntry struct {
	mux             sync.Mutex
	seconds         float64
	lastFailureTime time.Time
}

type deleteBackoff struct {
	entries sync.Map
}

var _ DeleteBackoff = &deleteBackoff{}

func (d *deleteBackoff) ShouldProcess(key string) (bool, time.Time) {
	val, loaded := d.entries.LoadOrStore(key, &backoffEntry{})
	if !loaded {
		return true, time.Time{}
	}

	entry := val.(*backoffEntry)
	entry.mux.Lock()
	defer entry.mux.Unlock()

	if entry.lastFailureTime.IsZero() || entry.seconds == 0 {
		return true, time.Time{}
	}

	deadline := entry.lastFailureTime.Add(time.Duration(entry.seconds) * time.Second)
	return time.Now().UTC().After(deadline), deadline
}

func (d *deleteBackoff) RecordFailure(key string) {
	val, _ := d.entries.LoadOrStore(key, &backoffEntry{})
	entry := val.(*backoffEntry)
	entry.mux.Lock()
	defer entry.mux.Unlock()

	entry.lastFailureTime = time.Now().UTC()
	if entry.seconds == 0 {
		entry.seconds = initialBackoffSeconds
		return
	}
	entry.seconds = min(entry.seconds*1.5, maxBackoffSeconds)
}

func (d *deleteBackoff) Delete(key string) {
	d.entries.Delete(key)
}
