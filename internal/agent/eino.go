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

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tau-harness/internal/message"
)

// Instruction agent 通用指令，与领域 policy 一起组成 system prompt
const Instruction = `You are a customer service agent that helps the user according to the <policy> provided below.
In each turn you can either:
- Send a message to the user.
- Make a tool call.
You cannot do both at the same time.

Try to be helpful and always follow the policy. Always make sure you generate valid JSON only.`

// SystemPrompt 组装 system prompt
func SystemPrompt(policy string) string {
	return "<instructions>\n" + Instruction + "\n</instructions>\n<policy>\n" + policy + "\n</policy>"
}

// EinoAgent 基于 eino ToolCallingChatModel 的 agent，自行维护原生对话
type EinoAgent struct {
	model model.ToolCallingChatModel

	mu      sync.Mutex
	history []*schema.Message
	seeded  bool
}

// NewEinoAgent 绑定工具并以 policy 初始化对话；tools 为空时不绑定
func NewEinoAgent(m model.ToolCallingChatModel, tools []*schema.ToolInfo, policy string) (*EinoAgent, error) {
	if len(tools) > 0 {
		bound, err := m.WithTools(tools)
		if err != nil {
			return nil, fmt.Errorf("bind agent tools: %w", err)
		}
		m = bound
	}
	return &EinoAgent{
		model:   m,
		history: []*schema.Message{schema.SystemMessage(SystemPrompt(policy))},
	}, nil
}

// Respond 实现 Agent。首次调用时以 in.History 中已有的消息播种原生对话（任务自带的历史）。
func (a *EinoAgent) Respond(ctx context.Context, in Input) (*Reply, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.seeded {
		a.seeded = true
		seed := in.History
		// 本轮新增的用户发言已在 History 末尾，避免重复
		if in.UserText != "" && len(seed) > 0 {
			if last := seed[len(seed)-1]; last.Role() == message.RoleUser && last.Content() == in.UserText {
				seed = seed[:len(seed)-1]
			}
		}
		a.history = append(a.history, ToSchema(seed)...)
	}
	for _, fb := range in.ToolResults {
		b, err := json.Marshal(fb.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode feedback for %s: %w", fb.Name, err)
		}
		a.history = append(a.history, schema.ToolMessage(string(b), fb.CallID))
	}
	if in.UserText != "" {
		a.history = append(a.history, schema.UserMessage(in.UserText))
	}

	out, err := a.model.Generate(ctx, a.history)
	if err != nil {
		return nil, fmt.Errorf("agent generate: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("agent generate: empty response")
	}
	a.history = append(a.history, out)
	reply := &Reply{Text: strings.TrimSpace(out.Content)}
	for _, tc := range out.ToolCalls {
		reply.Calls = append(reply.Calls, NativeCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArguments(tc.Function.Arguments),
		})
	}
	return reply, nil
}

// History 原生对话副本
func (a *EinoAgent) History() []*schema.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*schema.Message(nil), a.history...)
}

// decodeArguments 空参数视为 {}；非 JSON 对象原样放在 raw 下
func decodeArguments(s string) map[string]any {
	s = strings.TrimSpace(s)
	if s == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		return map[string]any{"raw": s}
	}
	return args
}

// ToSchema 将 agent 可见的 Trajectory 消息转为 eino 消息：user 侧工具调用及其结果被跳过
func ToSchema(msgs []message.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role() {
		case message.RoleSystem:
			out = append(out, schema.SystemMessage(m.Content()))
		case message.RoleUser:
			if m.IsToolCall() {
				continue
			}
			out = append(out, schema.UserMessage(m.Content()))
		case message.RoleAssistant:
			var calls []schema.ToolCall
			for _, c := range m.ToolCalls() {
				b, _ := json.Marshal(c.Arguments)
				calls = append(calls, schema.ToolCall{
					ID:       c.ID,
					Type:     "function",
					Function: schema.FunctionCall{Name: c.Name, Arguments: string(b)},
				})
			}
			out = append(out, schema.AssistantMessage(m.Content(), calls))
		case message.RoleTool:
			if m.Requestor() == message.RequestorUser {
				continue
			}
			out = append(out, schema.ToolMessage(m.Content(), m.ID()))
		}
	}
	return out
}
