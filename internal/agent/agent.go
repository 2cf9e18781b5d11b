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

// Package agent 被测 agent 的调用契约。工具调用以 agent 自身的命名与参数形态表达，
// 与 Environment 规范名之间的转换只在编排器内进行。
package agent

import (
	"context"

	"tau-harness/internal/message"
)

// NativeCall agent 原生形态的工具调用
type NativeCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToolFeedback 回传给 agent 的一次工具结果；Payload 为 Result.ForAgent 形态
type ToolFeedback struct {
	CallID  string
	Name    string
	Payload map[string]any
	IsError bool
}

// Input 一次 agent 调用的输入：History 为当前完整 Trajectory；
// UserText 与 ToolResults 二选一，分别对应新的用户发言与上一批工具调用的结果
type Input struct {
	History     []message.Message
	UserText    string
	ToolResults []ToolFeedback
}

// Reply agent 的回复：纯文本，或文本（可空）加一个或多个工具调用
type Reply struct {
	Text  string
	Calls []NativeCall
}

// HasCalls 是否携带工具调用
func (r *Reply) HasCalls() bool { return r != nil && len(r.Calls) > 0 }

// Agent 被测 agent
type Agent interface {
	Respond(ctx context.Context, in Input) (*Reply, error)
}

// Func 函数适配为 Agent
type Func func(ctx context.Context, in Input) (*Reply, error)

// Respond 实现 Agent
func (f Func) Respond(ctx context.Context, in Input) (*Reply, error) { return f(ctx, in) }
