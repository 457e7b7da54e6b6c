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
package common

import (
	"encoding/json"
	"fmt"
	"os"
)

// PrintAsJSON marshals value and prints it, for OutputFormatJSON.
func PrintAsJSON(value interface{}) {
	asJs, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Printf("failed to marshal value to json: %s\n", err)
		os.Exit(1)
	}
	fmt.Println(string(asJs))
}
