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

// Package environment Environment 会话契约：领域状态 + 工具集 + 策略文本，
// 支持 set_state 快照恢复与工具调用的消息化边界
package environment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tau-harness/internal/message"
	"tau-harness/internal/task"
	"tau-harness/internal/tool"
	"tau-harness/internal/tool/registry"
	"tau-harness/pkg/errors"
	"tau-harness/pkg/metrics"
)

// State 领域数据库：可被初始化数据局部更新，可计算确定性哈希
type State interface {
	Apply(data map[string]any) error
	Hash() string
}

// Options 构造 Environment 的组成部分，nil 的工具集视为空
type Options struct {
	Domain        string
	Policy        string
	DB            State
	UserDB        State
	Tools         *registry.Registry // agent 可调用
	UserTools     *registry.Registry // user simulator 可调用
	Functions     *registry.Registry // 仅供初始化动作与断言使用（assistant 侧）
	UserFunctions *registry.Registry // 同上（user 侧）
}

// Environment 一个有状态的领域模拟实例；非并发安全，由 session 层串行化访问
type Environment struct {
	domain    string
	policy    string
	db        State
	userDB    State
	tools     map[message.Requestor]*registry.Registry
	functions map[message.Requestor]*registry.Registry
}

// Response GetResponse 的完整结果：工具消息与带标签的原始结果
type Response struct {
	Message message.Message
	Result  tool.Result
	Err     error // 工具失败原因，已体现在 Message 中，不需要调用方再处理
}

// New 创建 Environment
func New(opts Options) *Environment {
	orEmpty := func(r *registry.Registry) *registry.Registry {
		if r == nil {
			return registry.New()
		}
		return r
	}
	return &Environment{
		domain: opts.Domain,
		policy: opts.Policy,
		db:     opts.DB,
		userDB: opts.UserDB,
		tools: map[message.Requestor]*registry.Registry{
			message.RequestorAssistant: orEmpty(opts.Tools),
			message.RequestorUser:      orEmpty(opts.UserTools),
		},
		functions: map[message.Requestor]*registry.Registry{
			message.RequestorAssistant: orEmpty(opts.Functions),
			message.RequestorUser:      orEmpty(opts.UserFunctions),
		},
	}
}

// Domain 领域名
func (e *Environment) Domain() string { return e.domain }

// Policy agent 需遵守的自然语言策略
func (e *Environment) Policy() string { return e.policy }

// Tools agent 侧工具描述
func (e *Environment) Tools() []*tool.Descriptor { return e.tools[message.RequestorAssistant].List() }

// UserTools user 侧工具描述
func (e *Environment) UserTools() []*tool.Descriptor { return e.tools[message.RequestorUser].List() }

// ToolSet 指定一侧的工具集
func (e *Environment) ToolSet(r message.Requestor) *registry.Registry {
	if ts, ok := e.tools[r.OrDefault()]; ok {
		return ts
	}
	return registry.New()
}

// DBHash agent 侧数据库哈希
func (e *Environment) DBHash() string {
	if e.db == nil {
		return ""
	}
	return e.db.Hash()
}

// UserDBHash user 侧数据库哈希
func (e *Environment) UserDBHash() string {
	if e.userDB == nil {
		return ""
	}
	return e.userDB.Hash()
}

// UseTool 执行 agent 侧工具
func (e *Environment) UseTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return e.MakeToolCall(ctx, message.RequestorAssistant, name, args)
}

// UseUserTool 执行 user 侧工具
func (e *Environment) UseUserTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return e.MakeToolCall(ctx, message.RequestorUser, name, args)
}

// MakeToolCall 按发起方路由到对应工具集；工具 panic 转为错误
func (e *Environment) MakeToolCall(ctx context.Context, requestor message.Requestor, name string, args map[string]any) (out any, err error) {
	ts, ok := e.tools[requestor.OrDefault()]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown requestor %q", requestor)
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("工具执行 panic", "domain", e.domain, "tool", name, "panic", r)
			out, err = nil, fmt.Errorf("tool %s panicked: %v", name, r)
		}
	}()
	return ts.Use(ctx, name, args)
}

// Respond 执行工具调用并包装为工具消息，从不返回错误：失败时 error=true，
// 内容为 "Error: ..."。消息 ID 总是调用的 ID。执行不受 ctx 取消影响。
func (e *Environment) Respond(ctx context.Context, call message.ToolCall) Response {
	ctx = context.WithoutCancel(ctx)
	requestor := call.Requestor.OrDefault()
	start := time.Now()
	raw, err := e.MakeToolCall(ctx, requestor, call.Name, call.Arguments)
	var res tool.Result
	if err == nil {
		res, err = tool.NewResult(raw)
	}
	metrics.ToolDuration.WithLabelValues(e.domain, call.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(e.domain, call.Name, "error").Inc()
		text := "Error: " + err.Error()
		return Response{
			Message: message.ToolResult(call.ID, text, requestor, true),
			Result:  tool.ScalarResult(text),
			Err:     err,
		}
	}
	metrics.ToolCallsTotal.WithLabelValues(e.domain, call.Name, "ok").Inc()
	return Response{
		Message: message.ToolResult(call.ID, res.Content(), requestor, false),
		Result:  res,
	}
}

// GetResponse Respond 的消息部分
func (e *Environment) GetResponse(ctx context.Context, call message.ToolCall) message.Message {
	return e.Respond(ctx, call).Message
}

// RunEnvFunctionCall 执行初始化动作或断言函数：先查该侧的 env 函数，再查工具
func (e *Environment) RunEnvFunctionCall(ctx context.Context, call task.EnvFunctionCall) (any, error) {
	side := call.EnvType.OrDefault()
	funcs, ok := e.functions[side]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "unknown env type %q", call.EnvType)
	}
	if funcs.Has(call.FuncName) {
		return funcs.Use(ctx, call.FuncName, call.Arguments)
	}
	return e.MakeToolCall(ctx, side, call.FuncName, call.Arguments)
}

// RunEnvAssertion 执行断言，返回是否满足（结果等于 AssertValue）
func (e *Environment) RunEnvAssertion(ctx context.Context, a task.EnvAssertion) (bool, error) {
	out, err := e.RunEnvFunctionCall(ctx, a.EnvFunctionCall)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, errors.Wrapf(errors.ErrInvalidArguments, "assertion %s returned %T, want bool", a.FuncName, out)
	}
	return b == a.AssertValue, nil
}
