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

// Package orchestrator 驱动 agent、Environment 与用户模拟器之间的对话状态机
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tau-harness/internal/agent"
	"tau-harness/internal/message"
	"tau-harness/internal/task"
	"tau-harness/internal/user"
	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
	"tau-harness/pkg/metrics"
	"tau-harness/pkg/tracing"
)

// Termination 对话结束原因
type Termination string

const (
	UserStop      Termination = "user_stop"
	MaxTurns      Termination = "max_turns"
	TooManyErrors Termination = "too_many_errors"
	ConfigError   Termination = "config_error"
	AgentError    Termination = "agent_error"
	UserError     Termination = "user_error"
	ExecutorError Termination = "executor_error"
	Cancelled     Termination = "cancelled"
)

// Failed 该结束原因是否表示对话失败（不参与正常评分）
func (t Termination) Failed() bool {
	switch t {
	case UserStop, MaxTurns:
		return false
	default:
		return true
	}
}

type state string

const (
	awaitUser state = "AWAIT_USER"
	agentTurn state = "AGENT_TURN"
	toolExec  state = "TOOL_EXEC"
	userTurn  state = "USER_TURN"
	userTool  state = "USER_TOOL_EXEC"
	done      state = "DONE"
)

// NoTextReply agent 既无文本也无工具调用时记录的回复
const NoTextReply = "(Agent produced no text response)"

// Config 编排参数
type Config struct {
	Domain    string
	MaxTurns  int
	MaxErrors int
	Greeting  string
}

// Run 一次对话的结果。Trajectory 不含任务自带的历史。
type Run struct {
	TaskID      string
	Trajectory  []message.Message
	Termination Termination
	Turns       int
	Errors      int
	StartedAt   time.Time
	EndedAt     time.Time
	Err         error
}

// Orchestrator 单个对话的编排器；不可并发复用
type Orchestrator struct {
	cfg      Config
	agent    agent.Agent
	user     user.Simulator
	executor Executor
	mapping  Mapping
	logger   *slog.Logger
}

// Option 编排器选项
type Option func(*Orchestrator)

// WithLogger 注入 logger
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New 创建编排器；MaxTurns<=0 使用默认值，MaxErrors<=0 不限错误数
func New(cfg Config, a agent.Agent, u user.Simulator, exec Executor, mapping Mapping, opts ...Option) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = config.DefaultMaxTurns
	}
	if cfg.Greeting == "" {
		cfg.Greeting = config.DefaultGreeting
	}
	o := &Orchestrator{
		cfg:      cfg,
		agent:    a,
		user:     u,
		executor: exec,
		mapping:  mapping,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// conversation 单次 Run 的可变状态
type conversation struct {
	o         *Orchestrator
	seed      []message.Message
	run       *Run
	userState user.State
	greeted   bool
	userText  string
	agentText string
	input     agent.Input
	reply     *agent.Reply
	// 用户侧工具调用：待执行的请求、待送回模拟器的结果、连续工具回合数
	userCalls   []message.ToolCall
	userResults []message.Message
	userRounds  int
}

// Run 驱动对话直到 DONE。致命结束（config_error、agent_error、user_error、
// executor_error、cancelled）同时返回 Run 与错误；max_turns 不是错误。
func (o *Orchestrator) Run(ctx context.Context, t *task.Task) (*Run, error) {
	ctx, span := tracing.StartConversationSpan(ctx, o.cfg.Domain, t.ID)
	defer span.End()

	c := &conversation{o: o, run: &Run{TaskID: t.ID, StartedAt: time.Now()}}
	seed, err := t.History()
	if err != nil {
		return c.finish(ctx, ConfigError, err)
	}
	c.seed = seed
	c.userState = o.user.Init(seed)
	st := c.resume()

	for st != done {
		// 已请求的一批工具调用属于当前回合，取消只阻止后续回合
		if st != toolExec && st != userTool {
			if err := ctx.Err(); err != nil {
				return c.finish(ctx, Cancelled, err)
			}
		}
		turnCtx, turnSpan := tracing.StartTurnSpan(ctx, c.run.Turns, string(st))
		var term Termination
		st, term, err = c.step(turnCtx, st)
		if err != nil {
			turnSpan.RecordError(err)
		}
		turnSpan.End()
		if st == done {
			res, err := c.finish(ctx, term, err)
			span.SetAttributes(attribute.String("conversation.termination", string(term)))
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
			}
			return res, err
		}
	}
	return c.run, nil
}

// resume 按任务历史的最后一条消息决定起始状态
func (c *conversation) resume() state {
	if len(c.seed) == 0 {
		return awaitUser
	}
	last := c.seed[len(c.seed)-1]
	c.greeted = true
	switch {
	case last.Role() == message.RoleTool && last.Requestor() == message.RequestorUser:
		c.userResults = trailingUserResults(c.seed)
		return userTurn
	case last.Role() == message.RoleAssistant && !last.IsToolCall():
		c.agentText = last.Content()
		return userTurn
	case last.Role() == message.RoleUser && !last.IsToolCall():
		c.userText = last.Content()
		return awaitUser
	default:
		c.input = agent.Input{}
		return agentTurn
	}
}

func (c *conversation) step(ctx context.Context, st state) (state, Termination, error) {
	switch st {
	case awaitUser:
		return c.awaitUser(ctx)
	case agentTurn:
		return c.agentTurn(ctx)
	case toolExec:
		return c.toolExec(ctx)
	case userTurn:
		return c.userTurn(ctx)
	case userTool:
		return c.userToolExec(ctx)
	default:
		return done, ConfigError, errors.Wrapf(errors.ErrInternal, "unknown state %s", st)
	}
}

func (c *conversation) awaitUser(context.Context) (state, Termination, error) {
	if !c.greeted {
		// 问候语只交给用户模拟器，不进入 Trajectory
		c.greeted = true
		c.agentText = c.o.cfg.Greeting
		return userTurn, "", nil
	}
	c.input = agent.Input{UserText: c.userText}
	return agentTurn, "", nil
}

func (c *conversation) agentTurn(ctx context.Context) (state, Termination, error) {
	if c.run.Turns >= c.o.cfg.MaxTurns {
		return done, MaxTurns, nil
	}
	c.run.Turns++
	in := c.input
	in.History = c.history()
	reply, err := c.o.agent.Respond(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return done, Cancelled, ctx.Err()
		}
		return done, AgentError, errors.Wrapf(err, "agent turn %d", c.run.Turns)
	}
	if reply.HasCalls() {
		c.reply = reply
		return toolExec, "", nil
	}
	text := ""
	if reply != nil {
		text = reply.Text
	}
	if text == "" {
		text = NoTextReply
	}
	msg, err := message.AssistantText(text)
	if err != nil {
		return done, AgentError, err
	}
	c.append(msg)
	c.agentText = text
	return userTurn, "", nil
}

func (c *conversation) toolExec(ctx context.Context) (state, Termination, error) {
	reply := c.reply
	c.reply = nil
	calls := make([]message.ToolCall, len(reply.Calls))
	for i, nc := range reply.Calls {
		call, err := c.o.mapping.Translate(nc)
		if err != nil {
			return done, ConfigError, err
		}
		calls[i] = call
	}
	req, err := message.AssistantToolCalls(reply.Text, calls...)
	if err != nil {
		return done, ConfigError, err
	}
	c.append(req)

	// 进行中的工具执行不被取消
	execCtx := context.WithoutCancel(ctx)
	feedback := make([]agent.ToolFeedback, 0, len(calls))
	for i, call := range calls {
		resp, err := c.o.executor.Execute(execCtx, call)
		if err != nil {
			return done, ExecutorError, errors.Wrapf(err, "execute %s", call.Name)
		}
		c.append(resp.Message)
		if resp.Message.IsError() {
			c.run.Errors++
			c.o.logger.DebugContext(ctx, "工具调用返回错误", "task_id", c.run.TaskID, "tool", call.Name, "content", resp.Message.Content())
		}
		feedback = append(feedback, agent.ToolFeedback{
			CallID:  call.ID,
			Name:    reply.Calls[i].Name,
			Payload: resp.Result.ForAgent(),
			IsError: resp.Message.IsError(),
		})
	}
	if c.o.cfg.MaxErrors > 0 && c.run.Errors >= c.o.cfg.MaxErrors {
		return done, TooManyErrors, nil
	}
	c.input = agent.Input{ToolResults: feedback}
	return agentTurn, "", nil
}

func (c *conversation) userTurn(ctx context.Context) (state, Termination, error) {
	in := user.Input{AssistantText: c.agentText}
	if len(c.userResults) > 0 {
		in = user.Input{ToolResults: c.userResults}
		c.userResults = nil
	}
	msg, next, err := c.o.user.Next(ctx, in, c.userState)
	if err != nil {
		if ctx.Err() != nil {
			return done, UserError, ctx.Err()
		}
		return done, UserError, errors.Wrap(err, "user simulator")
	}
	c.userState = next
	c.append(msg)
	if msg.IsToolCall() {
		c.userCalls = msg.ToolCalls()
		return userTool, "", nil
	}
	c.userRounds = 0
	if user.IsStop(msg) {
		return done, UserStop, nil
	}
	c.userText = msg.Content()
	return awaitUser, "", nil
}

// userToolExec 以 user 身份执行用户模拟器请求的工具，结果按调用顺序紧随请求之后，
// 并在下一个 USER_TURN 送回模拟器。连续工具回合同样受 MaxTurns 约束。
func (c *conversation) userToolExec(ctx context.Context) (state, Termination, error) {
	calls := c.userCalls
	c.userCalls = nil
	execCtx := context.WithoutCancel(ctx)
	results := make([]message.Message, 0, len(calls))
	for _, call := range calls {
		call.Requestor = message.RequestorUser
		resp, err := c.o.executor.Execute(execCtx, call)
		if err != nil {
			return done, ExecutorError, errors.Wrapf(err, "execute user tool %s", call.Name)
		}
		c.append(resp.Message)
		if resp.Message.IsError() {
			c.run.Errors++
			c.o.logger.DebugContext(ctx, "用户工具调用返回错误", "task_id", c.run.TaskID, "tool", call.Name, "content", resp.Message.Content())
		}
		results = append(results, resp.Message)
	}
	if c.o.cfg.MaxErrors > 0 && c.run.Errors >= c.o.cfg.MaxErrors {
		return done, TooManyErrors, nil
	}
	c.userRounds++
	if c.userRounds >= c.o.cfg.MaxTurns {
		return done, MaxTurns, nil
	}
	c.userResults = results
	return userTurn, "", nil
}

// trailingUserResults 历史末尾连续的用户工具结果
func trailingUserResults(msgs []message.Message) []message.Message {
	i := len(msgs)
	for i > 0 && msgs[i-1].Role() == message.RoleTool && msgs[i-1].Requestor() == message.RequestorUser {
		i--
	}
	return append([]message.Message(nil), msgs[i:]...)
}

func (c *conversation) history() []message.Message {
	out := make([]message.Message, 0, len(c.seed)+len(c.run.Trajectory))
	out = append(out, c.seed...)
	return append(out, c.run.Trajectory...)
}

func (c *conversation) append(m message.Message) {
	idx := len(c.seed) + len(c.run.Trajectory)
	c.run.Trajectory = append(c.run.Trajectory, m.WithTurn(idx, time.Now()))
}

func (c *conversation) finish(ctx context.Context, term Termination, err error) (*Run, error) {
	if (term == UserError || term == AgentError) && ctx.Err() != nil {
		term = Cancelled
	}
	c.run.Termination = term
	c.run.EndedAt = time.Now()
	c.run.Err = err
	metrics.ConversationsTotal.WithLabelValues(string(term)).Inc()
	metrics.ConversationTurns.Observe(float64(c.run.Turns))

	attrs := []any{
		"task_id", c.run.TaskID, "termination", term,
		"turns", c.run.Turns, "errors", c.run.Errors, "messages", len(c.run.Trajectory),
	}
	if err != nil {
		c.o.logger.ErrorContext(ctx, "对话异常结束", append(attrs, "error", err)...)
	} else {
		c.o.logger.InfoContext(ctx, "对话结束", attrs...)
	}
	return c.run, err
}
