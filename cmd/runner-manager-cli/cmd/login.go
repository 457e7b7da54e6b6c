// Copyright 2022 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harryfinbow/runner-manager/cmd/runner-manager-cli/config"
)

var (
	loginProfileName string
	loginURL         string
	loginAPIKey      string
)

// loginCmd registers a runner-manager installation's management API
// under a local profile name, the way the teacher's login command
// registers a bearer token — except the only credential this API
// scheme has is the one shared api_key (spec.md §6).
var loginCmd = &cobra.Command{
	Use:          "login",
	SilenceUsage: true,
	Short:        "Register a runner-manager installation",
	Long: `Registers a runner-manager installation's management API under a
named profile:

runner-manager-cli login --name=prod --url=https://runner.example.com --api-key=...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginProfileName == "" {
			return fmt.Errorf("--name is required")
		}
		if loginURL == "" {
			return fmt.Errorf("--url is required")
		}
		if loginAPIKey == "" {
			return fmt.Errorf("--api-key is required")
		}

		baseURL := strings.TrimSuffix(loginURL, "/")
		cfg.SetProfile(config.Profile{
			Name:    loginProfileName,
			BaseURL: baseURL,
			APIKey:  loginAPIKey,
		})
		cfg.ActiveProfile = loginProfileName

		if err := cfg.SaveConfig(); err != nil {
			return err
		}
		fmt.Printf("profile %s added and set as active\n", loginProfileName)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginProfileName, "name", "", "A name for this profile")
	loginCmd.Flags().StringVar(&loginURL, "url", "", "The base URL of the runner-manager management API")
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "The api_key configured on the runner-manager installation")
	rootCmd.AddCommand(loginCmd)
}
