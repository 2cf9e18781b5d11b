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
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/spf13/cobra"

	"tau-harness/internal/agent"
	"tau-harness/internal/api/client"
	"tau-harness/internal/app"
	"tau-harness/internal/app/eval"
	"tau-harness/internal/evaluator"
	"tau-harness/internal/model"
	"tau-harness/internal/orchestrator"
	"tau-harness/internal/task"
	"tau-harness/internal/user"
	"tau-harness/pkg/config"
	"tau-harness/pkg/tracing"
)

func (c *cli) runCmd() *cobra.Command {
	var (
		domain      string
		taskIDs     []string
		scripted    bool
		lines       []string
		remote      bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate conversations for tasks and score them",
		Long: `Run the agent against the user simulator for each selected task.

Tool calls execute on a fresh local environment instance, or on the registry
at --url when --remote is set. Every run is scored and written to the run store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if domain == "" {
				domain = cfg.Eval.Domain
			}
			if len(taskIDs) == 0 {
				taskIDs = cfg.Eval.TaskIDs
			}
			if concurrency > 0 {
				cfg.Eval.Concurrency = concurrency
			}
			if cfg.Eval.RemoteURL != "" && !cmd.Flags().Changed("url") {
				c.apiURL = cfg.Eval.RemoteURL
			}
			remote = remote || cfg.Eval.RemoteURL != ""

			b, err := app.NewBootstrap(cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			ctx := cmd.Context()
			if cfg.Monitoring.Tracing.Enable && cfg.Monitoring.Tracing.ExportEndpoint != "" {
				shutdown, err := tracing.InitTracer(ctx, tracing.OTelConfig{
					ServiceName:    cfg.Monitoring.Tracing.ServiceName,
					ExportEndpoint: cfg.Monitoring.Tracing.ExportEndpoint,
					Insecure:       cfg.Monitoring.Tracing.Insecure,
				})
				if err != nil {
					return err
				}
				defer shutdown(context.Background())
			}
			store, err := c.newStore(ctx, cfg.RunStore)
			if err != nil {
				return err
			}
			defer store.Close()

			runner := &eval.Runner{
				Catalog:  b.Catalog,
				Config:   cfg,
				Store:    store,
				NewAgent: llmAgent(cfg.Model.Agent),
				NewUser:  llmUser(cfg.Model.User),
				Logger:   b.Logger.WithComponent("eval").Logger,
			}
			if scripted {
				runner.NewUser = func(context.Context, *task.Task, []*schema.ToolInfo) (user.Simulator, error) {
					return user.NewScripted(lines...), nil
				}
			}
			if remote {
				runner.Remote = client.New(c.apiURL, evalTimeout(cfg))
			}
			summary, err := runner.RunTasks(ctx, domain, taskIDs)
			if err != nil {
				return err
			}
			return c.printSummary(summary)
		},
	}
	cmd.Flags().StringVar(&domain, "domain", "", "Domain name (default eval.domain)")
	cmd.Flags().StringArrayVar(&taskIDs, "task", nil, "Task id (repeatable); all tasks when omitted")
	cmd.Flags().BoolVar(&scripted, "scripted", false, "Use a scripted user instead of the user model")
	cmd.Flags().StringArrayVar(&lines, "say", nil, "Scripted user line (repeatable)")
	cmd.Flags().BoolVar(&remote, "remote", false, "Execute tools on the registry at --url")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent conversations (default eval.concurrency)")
	return cmd
}

func evalTimeout(cfg *config.Config) time.Duration {
	d, err := time.ParseDuration(cfg.Eval.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (c *cli) printSummary(s *eval.Summary) error {
	for _, run := range s.Runs {
		fmt.Fprintf(c.out, "%s\t%s\t%s\tturns=%d\treward=%.2f\n", run.ID, run.TaskID, run.TerminationReason, run.Turns, run.Reward)
	}
	fmt.Fprintf(c.out, "runs=%d avg_reward=%.3f\n", len(s.Runs), s.AvgReward)
	terms := make([]string, 0, len(s.ByTermination))
	for term := range s.ByTermination {
		terms = append(terms, string(term))
	}
	sort.Strings(terms)
	for _, term := range terms {
		fmt.Fprintf(c.out, "  %s: %d\n", term, s.ByTermination[orchestrator.Termination(term)])
	}
	return nil
}

func llmAgent(cfg config.LLMConfig) eval.AgentFactory {
	return func(ctx context.Context, tools []*schema.ToolInfo, policy string) (agent.Agent, error) {
		m, err := model.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return agent.NewEinoAgent(m, tools, policy)
	}
}

func llmUser(cfg config.LLMConfig) eval.UserFactory {
	return func(ctx context.Context, t *task.Task, tools []*schema.ToolInfo) (user.Simulator, error) {
		m, err := model.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return user.NewLLMSimulator(m, t.UserScenario, user.WithTools(tools)), nil
	}
}

func (c *cli) replayCmd() *cobra.Command {
	var runID string
	var save bool
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-score a stored run on fresh environment instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := c.newStore(ctx, cfg.RunStore)
			if err != nil {
				return err
			}
			defer store.Close()
			rec, err := store.Get(ctx, runID)
			if err != nil {
				return err
			}
			catalog, err := app.NewCatalog(cfg)
			if err != nil {
				return err
			}
			t, err := catalog.Task(rec.Domain, rec.TaskID)
			if err != nil {
				return err
			}
			factory, err := catalog.Factory(rec.Domain)
			if err != nil {
				return err
			}
			info := evaluator.EvaluateRun(ctx, factory, t, &orchestrator.Run{
				TaskID:      rec.TaskID,
				Trajectory:  rec.Trajectory,
				Termination: orchestrator.Termination(rec.TerminationReason),
			})
			if save {
				rec.Reward = info.Reward
				if rec.RewardInfo, err = json.Marshal(info); err != nil {
					return err
				}
				if err := store.Save(ctx, rec); err != nil {
					return err
				}
			}
			return c.printJSON(info)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Stored run id")
	cmd.Flags().BoolVar(&save, "save", false, "Write the new reward back to the run store")
	_ = cmd.MarkFlagRequired("run-id")
	return cmd
}
