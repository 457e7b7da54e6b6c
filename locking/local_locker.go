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
	"context"
	"sync"
)

// NewLocalLocker returns an in-process Locker backed by a sync.Map of
// mutexes. Sufficient for a single control-plane process; a
// multi-replica deployment would swap this for a distributed lock
// without changing any caller.
func NewLocalLocker() Locker {
	return &keyMutex{}
}

type lockWithIdent struct {
	mux   sync.Mutex
	ident string
}

type keyMutex struct {
	muxes sync.Map
}

var _ Locker = &keyMutex{}

func (k *keyMutex) TryLock(key, identifier string) bool {
	mux, _ := k.muxes.LoadOrStore(key, &lockWithIdent{})
	keyMux := mux.(*lockWithIdent)
	if locked := keyMux.mux.TryLock(); locked {
		keyMux.ident = identifier
		return true
	}
	return false
}

func (k *keyMutex) Lock(key, identifier string) {
	mux, _ := k.muxes.LoadOrStore(key, &lockWithIdent{})
	keyMux := mux.(*lockWithIdent)
	keyMux.mux.Lock()
	keyMux.ident = identifier
}

// LockWithContext blocks until the lock is acquired or ctx is done,
// whichever comes first. Every backend and hosting-service call made
// while a transition holds its lock carries its own deadline (spec.md
// §5); this lets the transition itself respect the caller's deadline
// while waiting to acquire the lock in the first place.
func (k *keyMutex) LockWithContext(ctx context.Context, key, identifier string) error {
	done := make(chan struct{})
	go func() {
		k.Lock(key, identifier)
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// The goroutine above will still acquire the lock eventually
		// and must release it; hand it straight back.
		go func() {
			<-done
			k.Unlock(key, false)
		}()
		return ctx.Err()
	}
}

func (k *keyMutex) Unlock(key string, remove bool) {
	mux, ok := k.muxes.Load(key)
	if !ok {
		return
	}
	keyMux := mux.(*lockWithIdent)
	if remove {
		k.muxes.Delete(key)
	}
	keyMux.ident = ""
	keyMux.mux.Unlock()
}

func (k *keyMutex) LockedBy(key string) (string, bool) {
	mux, ok := k.muxes.Load(key)
	if !ok {
		return "", false
	}
	keyMux := mux.(*lockWithIdent)
	if keyMux.ident == "" {
		return "", false
	}
	return keyMux.ident, true
}

func (k *keyMutex) Delete(key string) {
	k.muxes.Delete(key)
}
