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

// Package message 定义对话消息、工具调用与 Trajectory
package message

import (
	"fmt"
	"time"

	"tau-harness/pkg/errors"
)

// Role 消息角色
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Requestor 工具调用发起方：Environment 同时支持 agent 与 user 发起的调用
type Requestor string

const (
	RequestorAssistant Requestor = "assistant"
	RequestorUser      Requestor = "user"
)

// OrDefault 空值按 assistant 处理
func (r Requestor) OrDefault() Requestor {
	if r == "" {
		return RequestorAssistant
	}
	return r
}

// ToolCall 一次工具调用；ID 由调用方分配，同一回合内唯一
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Requestor Requestor      `json:"requestor,omitempty"`
}

// Usage token 用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Message 对话消息。内容与工具调用不可导出，只能经构造函数创建，
// 从而保证 user/assistant 消息必有文本或至少一个工具调用。
type Message struct {
	role      Role
	content   string
	toolCalls []ToolCall

	// 仅 tool 消息
	id        string
	requestor Requestor
	isError   bool

	TurnIdx   int
	Timestamp time.Time
	Cost      *float64
	Usage     *Usage
}

// Text 创建文本形式的 user/assistant 消息，text 不能为空
func Text(role Role, text string) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, errors.Wrapf(errors.ErrInvalidArg, "text message role %q", role)
	}
	if text == "" {
		return Message{}, errors.Wrapf(errors.ErrInvalidArg, "%s message without content", role)
	}
	return Message{role: role, content: text, Timestamp: time.Now()}, nil
}

// ToolCalls 创建携带工具调用的 user/assistant 消息，text 可为空，calls 至少一个
func ToolCalls(role Role, text string, calls []ToolCall) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, errors.Wrapf(errors.ErrInvalidArg, "tool call message role %q", role)
	}
	if len(calls) == 0 {
		return Message{}, errors.Wrapf(errors.ErrInvalidArg, "%s message without tool calls", role)
	}
	cp := make([]ToolCall, len(calls))
	for i, c := range calls {
		if c.Name == "" {
			return Message{}, errors.Wrapf(errors.ErrInvalidArg, "tool call %d without name", i)
		}
		if c.Arguments == nil {
			c.Arguments = map[string]any{}
		}
		c.Requestor = Requestor(role)
		cp[i] = c
	}
	return Message{role: role, content: text, toolCalls: cp, Timestamp: time.Now()}, nil
}

// UserText 用户文本消息
func UserText(text string) (Message, error) { return Text(RoleUser, text) }

// AssistantText agent 文本消息
func AssistantText(text string) (Message, error) { return Text(RoleAssistant, text) }

// AssistantToolCalls agent 发起的工具调用消息
func AssistantToolCalls(text string, calls ...ToolCall) (Message, error) {
	return ToolCalls(RoleAssistant, text, calls)
}

// UserToolCalls 用户发起的工具调用消息
func UserToolCalls(text string, calls ...ToolCall) (Message, error) {
	return ToolCalls(RoleUser, text, calls)
}

// ForCall 为某个工具调用合成其请求消息，角色随 call.Requestor
func ForCall(call ToolCall) (Message, error) {
	return ToolCalls(Role(call.Requestor.OrDefault()), "", []ToolCall{call})
}

// System 系统消息
func System(text string) Message {
	return Message{role: RoleSystem, content: text, Timestamp: time.Now()}
}

// ToolResult 工具结果消息，id 对应唯一一个先前的 ToolCall
func ToolResult(id, content string, requestor Requestor, isError bool) Message {
	return Message{
		role:      RoleTool,
		id:        id,
		content:   content,
		requestor: requestor.OrDefault(),
		isError:   isError,
		Timestamp: time.Now(),
	}
}

func (m Message) Role() Role { return m.role }
func (m Message) Content() string { return m.content }
func (m Message) ID() string { return m.id }
func (m Message) Requestor() Requestor { return m.requestor }
func (m Message) IsError() bool { return m.isError }
func (m Message) HasText() bool { return m.content != "" }
func (m Message) IsToolCall() bool { return len(m.toolCalls) > 0 }
func (m Message) IsZero() bool { return m.role == "" }

// ToolCalls 返回工具调用的副本
func (m Message) ToolCalls() []ToolCall {
	if len(m.toolCalls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(m.toolCalls))
	copy(out, m.toolCalls)
	return out
}

// WithTurn 返回带回合序号与时间戳的副本
func (m Message) WithTurn(turn int, at time.Time) Message {
	m.TurnIdx = turn
	m.Timestamp = at
	return m
}

// String 便于日志输出
func (m Message) String() string {
	switch {
	case m.role == RoleTool:
		return fmt.Sprintf("tool(%s): %s", m.id, m.content)
	case m.IsToolCall():
		names := make([]string, len(m.toolCalls))
		for i, c := range m.toolCalls {
			names[i] = c.Name
		}
		return fmt.Sprintf("%s: tool_calls=%v", m.role, names)
	default:
		return fmt.Sprintf("%s: %s", m.role, m.content)
	}
}
