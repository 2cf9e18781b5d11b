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

// Package eval 评测 runner：并发执行任务对话，评分并写入 run store
package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tau-harness/internal/agent"
	"tau-harness/internal/api/client"
	"tau-harness/internal/environment"
	"tau-harness/internal/evaluator"
	"tau-harness/internal/message"
	"tau-harness/internal/orchestrator"
	"tau-harness/internal/runtime/runstore"
	"tau-harness/internal/task"
	"tau-harness/internal/tool"
	"tau-harness/internal/user"
	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
)

// AgentFactory 为一次对话构造 agent；tools 已按映射表换成 agent 侧名称
type AgentFactory func(ctx context.Context, tools []*schema.ToolInfo, policy string) (agent.Agent, error)

// UserFactory 为一次对话构造 user simulator；tools 为领域的用户侧工具
type UserFactory func(ctx context.Context, t *task.Task, tools []*schema.ToolInfo) (user.Simulator, error)

// Runner 评测 runner；Remote 非空时工具经 registry HTTP 接口执行
type Runner struct {
	Catalog  *environment.Catalog
	Config   *config.Config
	Store    runstore.Store
	NewAgent AgentFactory
	NewUser  UserFactory
	Remote   *client.Client
	Logger   *slog.Logger
}

// Summary 一批对话的汇总
type Summary struct {
	Runs          []*runstore.SimulationRun        `json:"runs"`
	AvgReward     float64                          `json:"avg_reward"`
	ByTermination map[orchestrator.Termination]int `json:"by_termination"`
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// RunTasks 并发执行 taskIDs（为空时执行领域内全部任务）；单个对话失败计入结果，不中断其余对话
func (r *Runner) RunTasks(ctx context.Context, domain string, taskIDs []string) (*Summary, error) {
	tasks, err := r.selectTasks(domain, taskIDs)
	if err != nil {
		return nil, err
	}
	runs := make([]*runstore.SimulationRun, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Config.Eval.Concurrency, 1))
	for i := range tasks {
		g.Go(func() error {
			run, err := r.RunTask(gctx, domain, &tasks[i])
			if err != nil {
				return fmt.Errorf("task %s: %w", tasks[i].ID, err)
			}
			runs[i] = run
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summarize(runs), nil
}

func (r *Runner) selectTasks(domain string, ids []string) ([]task.Task, error) {
	all, err := r.Catalog.Tasks(domain)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return all, nil
	}
	out := make([]task.Task, 0, len(ids))
	for _, id := range ids {
		t, err := task.Find(all, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func summarize(runs []*runstore.SimulationRun) *Summary {
	s := &Summary{Runs: runs, ByTermination: make(map[orchestrator.Termination]int)}
	for _, run := range runs {
		s.AvgReward += run.Reward
		s.ByTermination[orchestrator.Termination(run.TerminationReason)]++
	}
	if len(runs) > 0 {
		s.AvgReward /= float64(len(runs))
	}
	return s
}

// target 一次对话使用的工具执行端
type target struct {
	executor    orchestrator.Executor
	schemas     []tool.FunctionSchema
	userSchemas []tool.FunctionSchema
	policy      string
	release  func()
}

// RunTask 执行单个任务的一次对话；只有基础设施错误（store、registry 不可达）会返回 error
func (r *Runner) RunTask(ctx context.Context, domain string, t *task.Task) (*runstore.SimulationRun, error) {
	factory, err := r.Catalog.Factory(domain)
	if err != nil {
		return nil, err
	}
	tg, err := r.open(ctx, domain, factory, t)
	if err != nil {
		return nil, err
	}
	defer tg.release()

	mcfg := r.Config.Orchestrator.ToolMappings[domain]
	names := make([]string, 0, len(tg.schemas))
	for _, s := range tg.schemas {
		names = append(names, s.Function.Name)
	}
	mapping := orchestrator.MappingFromConfig(mcfg, names)

	started := time.Now()
	id := "run-" + uuid.New().String()
	a, err := r.NewAgent(ctx, agentTools(tg.schemas, mcfg), tg.policy)
	if err != nil {
		return r.save(ctx, failedRun(id, domain, t, started, err))
	}
	userTools := make([]*schema.ToolInfo, 0, len(tg.userSchemas))
	for _, s := range tg.userSchemas {
		userTools = append(userTools, s.ToolInfo())
	}
	u, err := r.NewUser(ctx, t, userTools)
	if err != nil {
		return r.save(ctx, failedRun(id, domain, t, started, err))
	}

	o := orchestrator.New(orchestrator.Config{
		Domain:    domain,
		MaxTurns:  r.Config.Orchestrator.MaxTurns,
		MaxErrors: r.Config.Orchestrator.MaxErrors,
		Greeting:  r.Config.Orchestrator.Greeting,
	}, a, u, tg.executor, mapping, orchestrator.WithLogger(r.logger()))
	run, _ := o.Run(ctx, t)

	reward := evaluator.EvaluateRun(context.WithoutCancel(ctx), factory, t, run)
	rec := &runstore.SimulationRun{
		ID:                id,
		TaskID:            t.ID,
		Domain:            domain,
		Trajectory:        run.Trajectory,
		TerminationReason: string(run.Termination),
		Turns:             run.Turns,
		Reward:            reward.Reward,
		StartedAt:         run.StartedAt,
		EndedAt:           run.EndedAt,
	}
	if run.Err != nil {
		rec.Error = run.Err.Error()
	}
	if b, err := json.Marshal(reward); err == nil {
		rec.RewardInfo = b
	}
	r.logger().Info("对话完成", "run_id", id, "task_id", t.ID, "termination", run.Termination, "turns", run.Turns, "reward", reward.Reward)
	return r.save(ctx, rec)
}

func (r *Runner) save(ctx context.Context, rec *runstore.SimulationRun) (*runstore.SimulationRun, error) {
	if r.Store == nil {
		return rec, nil
	}
	if err := r.Store.Save(context.WithoutCancel(ctx), rec); err != nil {
		return nil, errors.Wrapf(err, "save run %s", rec.ID)
	}
	return rec, nil
}

// failedRun agent 或 user simulator 无法构造时记录的结果
func failedRun(id, domain string, t *task.Task, at time.Time, err error) *runstore.SimulationRun {
	return &runstore.SimulationRun{
		ID:                id,
		TaskID:            t.ID,
		Domain:            domain,
		TerminationReason: string(orchestrator.ConfigError),
		StartedAt:         at,
		EndedAt:           time.Now(),
		Error:             err.Error(),
	}
}

// open 本地模式新建实例并按任务初始化；远端模式在 registry 中启动 session
func (r *Runner) open(ctx context.Context, domain string, factory environment.Factory, t *task.Task) (*target, error) {
	if r.Remote == nil {
		env, err := factory()
		if err != nil {
			return nil, err
		}
		seed, err := t.History()
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidArg, "task %s history: %v", t.ID, err)
		}
		if err := env.SetState(ctx, t.Data(), t.Actions(), seed); err != nil {
			return nil, err
		}
		return &target{
			executor:    &orchestrator.EnvExecutor{Env: env},
			schemas:     env.ToolSet(message.RequestorAssistant).FunctionSchemas(),
			userSchemas: env.ToolSet(message.RequestorUser).FunctionSchemas(),
			policy:      env.Policy(),
			release:     func() {},
		}, nil
	}

	id, err := r.Remote.Start(ctx, domain)
	if err != nil {
		return nil, err
	}
	release := func() {
		if err := r.Remote.Stop(context.WithoutCancel(ctx), id); err != nil {
			r.logger().Warn("停止远端 session 失败", "session_id", id, "error", err)
		}
	}
	if t.InitialState != nil {
		if err := r.Remote.SetState(ctx, id, *t.InitialState); err != nil {
			release()
			return nil, err
		}
	}
	info, err := r.Remote.Info(ctx, id)
	if err != nil {
		release()
		return nil, err
	}
	return &target{
		executor:    &client.RemoteExecutor{Client: r.Remote, SessionID: id},
		schemas:     info.Tools,
		userSchemas: info.UserTools,
		policy:      info.Policy,
		release:     release,
	}, nil
}

// agentTools 将规范 schema 按映射表反向改名后转为 eino ToolInfo
func agentTools(schemas []tool.FunctionSchema, m config.ToolMappingConfig) []*schema.ToolInfo {
	native := make(map[string]string, len(m.Tools))
	for n, canon := range m.Tools {
		native[canon] = n
	}
	out := make([]*schema.ToolInfo, 0, len(schemas))
	for _, s := range schemas {
		name := s.Function.Name
		if n, ok := native[name]; ok {
			name = n
		}
		s.Function.Name = name
		if table, ok := m.Args[name]; ok {
			s.Function.Parameters = renameParams(s.Function.Parameters, table)
		}
		out = append(out, s.ToolInfo())
	}
	return out
}

// renameParams table 为 agent 参数名 -> 规范参数名
func renameParams(p tool.Schema, table map[string]string) tool.Schema {
	native := make(map[string]string, len(table))
	for n, canon := range table {
		native[canon] = n
	}
	props := make(map[string]tool.SchemaProperty, len(p.Properties))
	for k, v := range p.Properties {
		if n, ok := native[k]; ok {
			k = n
		}
		props[k] = v
	}
	required := make([]string, 0, len(p.Required))
	for _, k := range p.Required {
		if n, ok := native[k]; ok {
			k = n
		}
		required = append(required, k)
	}
	p.Properties, p.Required = props, required
	return p
}
