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
	"os"

	"github.com/spf13/cobra"

	"github.com/harryfinbow/runner-manager/cmd/runner-manager-cli/client"
	"github.com/harryfinbow/runner-manager/cmd/runner-manager-cli/common"
	"github.com/harryfinbow/runner-manager/cmd/runner-manager-cli/config"
)

var (
	cfg          *config.Config
	profile      config.Profile
	apiCli       *client.Client
	needsLogin   bool
	outputFormat common.OutputFormat = common.OutputFormatTable

	errNeedsLoginError = fmt.Errorf("please log into a runner-manager installation first (see 'login --help')")
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "runner-manager-cli",
	Short: "Fleet visibility CLI for runner-manager",
	Long:  `CLI for inspecting a runner-manager fleet's groups, runners and recent events.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().Var(&outputFormat, "format", "Output format (table, json)")

	cobra.OnInitialize(initConfig)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		fmt.Printf("failed to load config: %s\n", err)
		os.Exit(1)
	}

	if len(cfg.Profiles) == 0 {
		needsLogin = true
		return
	}

	profile, err = cfg.GetActiveProfile()
	if err != nil {
		profile = cfg.Profiles[0]
	}
	apiCli = client.New(profile.BaseURL, profile.APIKey)
}

func requireLogin(cmd *cobra.Command, args []string) error {
	if needsLogin {
		return errNeedsLoginError
	}
	return nil
}
