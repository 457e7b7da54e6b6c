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

package webhook

import "github.com/harryfinbow/runner-manager/params"

// job is the internal unit of work placed on the dispatch queue: the
// raw decoded workflow_job payload plus enough metadata to retry a
// premature in_progress without re-parsing the payload.
type job struct {
	event   params.WorkflowJob
	attempt int
}
