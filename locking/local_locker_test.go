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
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type LockerTestSuite struct {
	suite.Suite

	mux *keyMutex
}

func (l *LockerTestSuite) SetupTest() {
	l.mux = &keyMutex{}
}

func (l *LockerTestSuite) TestLockUnlock() {
	l.mux.Lock("test", "transition-1")
	id, ok := l.mux.LockedBy("test")
	l.Require().True(ok)
	l.Require().Equal("transition-1", id)

	l.mux.Unlock("test", true)
	_, ok = l.mux.LockedBy("test")
	l.Require().False(ok)

	// unlocking an already-removed key is a no-op, not a panic.
	l.mux.Unlock("test", false)
}

func (l *LockerTestSuite) TestTryLock() {
	locked := l.mux.TryLock("test", "transition-1")
	l.Require().True(locked)

	locked = l.mux.TryLock("test", "transition-2")
	l.Require().False(locked)

	id, ok := l.mux.LockedBy("test")
	l.Require().True(ok)
	l.Require().Equal("transition-1", id)
}

func (l *LockerTestSuite) TestLockWithContextCancelled() {
	l.mux.Lock("runner-1", "holder")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.mux.LockWithContext(ctx, "runner-1", "waiter")
	l.Require().Error(err)

	l.mux.Unlock("runner-1", true)
}

func (l *LockerTestSuite) TestLockWithContextSucceeds() {
	err := l.mux.LockWithContext(context.Background(), "runner-2", "holder")
	l.Require().NoError(err)

	id, ok := l.mux.LockedBy("runner-2")
	l.Require().True(ok)
	l.Require().Equal("holder", id)

	l.mux.Unlock("runner-2", true)
}

func TestLockerSuite(t *testing.T) {
	suite.Run(t, new(LockerTestSuite))
}
