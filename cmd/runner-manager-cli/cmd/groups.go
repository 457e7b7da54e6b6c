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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	apiparams "github.com/harryfinbow/runner-manager/apiserver/params"
	"github.com/harryfinbow/runner-manager/cmd/runner-manager-cli/common"
)

var groupCmd = &cobra.Command{
	Use:          "group",
	Aliases:      []string{"groups"},
	SilenceUsage: true,
	Short:        "Query configured runner groups",
}

var groupListCmd = &cobra.Command{
	Use:          "list",
	Aliases:      []string{"ls"},
	SilenceUsage: true,
	Short:        "List all configured runner groups",
	PreRunE:      requireLogin,
	RunE: func(cmd *cobra.Command, args []string) error {
		groups, err := apiCli.ListGroups()
		if err != nil {
			return err
		}
		formatGroups(groups)
		return nil
	},
}

func formatGroups(groups []apiparams.Group) {
	if outputFormat == common.OutputFormatJSON {
		common.PrintAsJSON(groups)
		return
	}

	t := table.NewWriter()
	header := table.Row{"Name", "Organization", "Provider", "Labels", "Min", "Max", "Current"}
	t.AppendHeader(header)
	for _, g := range groups {
		t.AppendRow(table.Row{g.Name, g.Organization, g.Provider, strings.Join(g.Labels, ","), g.Min, g.Max, g.CurrentSize})
	}
	fmt.Println(t.Render())
}

func init() {
	groupCmd.AddCommand(groupListCmd)
	rootCmd.AddCommand(groupCmd)
}
