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

// eventsCmd shows the recent lifecycle event log. Unlike the
// teacher's "garm-cli log" command, which streams a live websocket
// feed, this calls a plain GET and prints a snapshot (the management
// API has no push channel, see apiserver/events.Recorder).
var eventsCmd = &cobra.Command{
	Use:          "events",
	SilenceUsage: true,
	Short:        "Show the recent runner lifecycle event log",
	PreRunE:      requireLogin,
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := apiCli.ListEvents()
		if err != nil {
			return err
		}
		formatEvents(events)
		return nil
	},
}

func formatEvents(events []apiparams.Event) {
	if outputFormat == common.OutputFormatJSON {
		common.PrintAsJSON(events)
		return
	}

	t := table.NewWriter()
	header := table.Row{"Time", "Kind", "Group", "Runner", "Message"}
	t.AppendHeader(header)
	for _, e := range events {
		t.AppendRow(table.Row{e.Time, e.Kind, e.Group, e.Runner, e.Message})
	}
	fmt.Println(t.Render())
}

func init() {
	rootCmd.AddCommand(eventsCmd)
}
