// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tau-harness/internal/api/client"
)

func (c *cli) sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage environment sessions on a running registry",
	}

	var domain string
	start := &cobra.Command{
		Use:   "start",
		Short: "Start a session and print its id",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := c.client().Start(cmd.Context(), domain)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, id)
			return nil
		},
	}
	start.Flags().StringVar(&domain, "domain", "mock", "Domain name")

	trajectory := &cobra.Command{
		Use:   "trajectory [session_id]",
		Short: "Print the trajectory of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := c.client().Trajectory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printJSON(msgs)
		},
	}

	stop := &cobra.Command{
		Use:   "stop [session_id]",
		Short: "Stop a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client().Stop(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "stopped %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(start, trajectory, stop)
	return cmd
}

func (c *cli) client() *client.Client {
	return client.New(c.apiURL, 30*time.Second)
}
