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

package backend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeLabelValue(t *testing.T) {
	require.Equal(t, "test", SanitizeLabelValue("test"))
	require.Equal(t, "42", SanitizeLabelValue(42))
	require.Equal(t, "42", SanitizeLabelValue(42.0))
	require.Equal(t, "", SanitizeLabelValue(nil))
	require.Equal(t, "test", SanitizeLabelValue("-test-"))
	require.Equal(t, "", SanitizeLabelValue(math.NaN()))
}

func TestSanitizeLabelValueIsIdempotent(t *testing.T) {
	inputs := []interface{}{"test", 42, 42.0, nil, "-test-", "_under_", math.NaN(), "--both__"}
	for _, in := range inputs {
		once := SanitizeLabelValue(in)
		twice := SanitizeLabelValue(once)
		require.Equal(t, once, twice, "sanitizing %v twice should be stable", in)
	}
}

func TestOwnedByManager(t *testing.T) {
	labels := baseLabels("fleet-a", "linux-pool", nil)
	require.True(t, ownedByManager(labels, "fleet-a"))
	require.False(t, ownedByManager(labels, "fleet-b"))
}
