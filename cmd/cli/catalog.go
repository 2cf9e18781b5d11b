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

	"github.com/spf13/cobra"

	"tau-harness/internal/app"
	"tau-harness/internal/tool"
)

func (c *cli) tasksCmd() *cobra.Command {
	var domain string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks of a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			catalog, err := app.NewCatalog(cfg)
			if err != nil {
				return err
			}
			tasks, err := catalog.Tasks(domain)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Fprintf(c.out, "%s\t%s\n", t.ID, t.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "mock", "Domain name")
	return cmd
}

func (c *cli) toolsCmd() *cobra.Command {
	var domain string
	var userSide bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the function-calling schemas of a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			catalog, err := app.NewCatalog(cfg)
			if err != nil {
				return err
			}
			env, err := catalog.New(domain)
			if err != nil {
				return err
			}
			descs := env.Tools()
			if userSide {
				descs = env.UserTools()
			}
			schemas := make([]tool.FunctionSchema, 0, len(descs))
			for _, d := range descs {
				schemas = append(schemas, d.FunctionSchema())
			}
			return c.printJSON(schemas)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "mock", "Domain name")
	cmd.Flags().BoolVar(&userSide, "user", false, "Print the user-side tools")
	return cmd
}
