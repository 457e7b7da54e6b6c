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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	apiparams "github.com/harryfinbow/runner-manager/apiserver/params"
	"github.com/harryfinbow/runner-manager/cmd/runner-manager-cli/common"
)

var runnerGroupName string

var runnerCmd = &cobra.Command{
	Use:          "runner",
	Aliases:      []string{"runners"},
	SilenceUsage: true,
	Short:        "Query runners within a group",
}

var runnerListCmd = &cobra.Command{
	Use:          "list",
	Aliases:      []string{"ls"},
	SilenceUsage: true,
	Short:        "List every runner persisted for a group",
	PreRunE:      requireLogin,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runnerGroupName == "" {
			return fmt.Errorf("--group is required")
		}
		runners, err := apiCli.ListGroupRunners(runnerGroupName)
		if err != nil {
			return err
		}
		formatRunners(runners)
		return nil
	},
}

func formatRunners(runners []apiparams.Runner) {
	if outputFormat == common.OutputFormatJSON {
		common.PrintAsJSON(runners)
		return
	}

	t := table.NewWriter()
	header := table.Row{"Name", "Group", "Status", "Busy", "Instance ID", "Workflow", "Repository", "Created"}
	t.AppendHeader(header)
	for _, r := range runners {
		t.AppendRow(table.Row{r.Name, r.Group, r.Status, r.Busy, r.InstanceID, r.WorkflowName, r.RepositoryName, r.CreatedAt})
	}
	fmt.Println(t.Render())
}

func init() {
	runnerListCmd.Flags().StringVar(&runnerGroupName, "group", "", "The runner group to list runners for")
	runnerCmd.AddCommand(runnerListCmd)
	rootCmd.AddCommand(runnerCmd)
}
