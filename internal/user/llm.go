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

package user

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"tau-harness/internal/message"
	"tau-harness/internal/task"
)

// Guidelines 用户模拟通用准则
const Guidelines = `# User Simulation Guidelines
You are playing the role of a customer contacting a customer service representative.
Your goal is to simulate realistic customer interactions while following specific scenario instructions.

## Core Principles
- Generate one message at a time, maintaining natural conversation flow.
- Strictly follow the scenario instructions you have received.
- Never make up or hallucinate information not provided in the scenario instructions.
- Avoid repeating the exact instructions verbatim. Use paraphrasing and natural language.
- Disclose information progressively. Wait for the agent to ask for specific information before providing it.

## Task Completion
- The goal is to continue the conversation until the task is complete.
- If the instruction goal is satisified, generate the '###STOP###' token to end the conversation.
- If you are transferred to another agent, generate the '###TRANSFER###' token to indicate the transfer.
- If you find yourself in a situation in which the scenario does not provide enough information for you to continue the conversation, generate the '###OUT-OF-SCOPE###' token to end the conversation.`

// SystemPrompt 由任务的用户场景组装 system prompt
func SystemPrompt(s task.UserScenario) string {
	var b strings.Builder
	b.WriteString(Guidelines)
	b.WriteString("\n\n<scenario>\n")
	if s.Persona != "" {
		b.WriteString("Persona:\n")
		b.WriteString(s.Persona)
		b.WriteString("\n\n")
	}
	b.WriteString(s.Instructions)
	b.WriteString("\n</scenario>")
	return b.String()
}

// LLMSimulator 以 eino ChatModel 扮演用户。角色互换：agent 文本作为模型的 user 消息，
// 模型输出即用户发言。绑定了用户工具时，模型的工具调用成为用户侧工具调用。
type LLMSimulator struct {
	model  model.BaseChatModel
	system string
	tools  []*schema.ToolInfo
}

// Option LLMSimulator 选项
type Option func(*LLMSimulator)

// WithTools 绑定用户侧工具
func WithTools(tools []*schema.ToolInfo) Option {
	return func(s *LLMSimulator) { s.tools = tools }
}

// NewLLMSimulator 创建模拟器
func NewLLMSimulator(m model.BaseChatModel, scenario task.UserScenario, opts ...Option) *LLMSimulator {
	s := &LLMSimulator{model: m, system: SystemPrompt(scenario)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init 只保留文本发言，角色互换
func (s *LLMSimulator) Init(history []message.Message) State {
	msgs := []*schema.Message{schema.SystemMessage(s.system)}
	for _, m := range history {
		if m.IsToolCall() || !m.HasText() {
			continue
		}
		switch m.Role() {
		case message.RoleAssistant:
			msgs = append(msgs, schema.UserMessage(m.Content()))
		case message.RoleUser:
			msgs = append(msgs, schema.AssistantMessage(m.Content(), nil))
		}
	}
	return State{History: msgs}
}

// Next 实现 Simulator
func (s *LLMSimulator) Next(ctx context.Context, in Input, state State) (message.Message, State, error) {
	if len(state.History) == 0 {
		state = s.Init(nil)
	}
	history := append([]*schema.Message(nil), state.History...)
	if len(in.ToolResults) > 0 {
		for _, r := range in.ToolResults {
			history = append(history, schema.ToolMessage(r.Content(), r.ID()))
		}
	} else {
		history = append(history, schema.UserMessage(in.AssistantText))
	}
	var opts []model.Option
	if len(s.tools) > 0 {
		opts = append(opts, model.WithTools(s.tools))
	}
	out, err := s.model.Generate(ctx, history, opts...)
	if err != nil {
		return message.Message{}, state, fmt.Errorf("user simulator generate: %w", err)
	}
	if out != nil && len(out.ToolCalls) > 0 {
		calls := make([]message.ToolCall, 0, len(out.ToolCalls))
		for _, tc := range out.ToolCalls {
			calls = append(calls, message.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: decodeArguments(tc.Function.Arguments),
				Requestor: message.RequestorUser,
			})
		}
		msg, err := message.UserToolCalls(strings.TrimSpace(out.Content), calls...)
		if err != nil {
			return message.Message{}, state, err
		}
		history = append(history, schema.AssistantMessage(out.Content, out.ToolCalls))
		return msg, State{History: history, Turns: state.Turns + 1}, nil
	}
	text := ""
	if out != nil {
		text = strings.TrimSpace(out.Content)
	}
	if text == "" {
		return message.Message{}, state, fmt.Errorf("user simulator produced an empty message")
	}
	msg, err := message.UserText(text)
	if err != nil {
		return message.Message{}, state, err
	}
	history = append(history, schema.AssistantMessage(text, nil))
	return msg, State{History: history, Turns: state.Turns + 1}, nil
}

// decodeArguments 空参数视为 {}
func decodeArguments(s string) map[string]any {
	args := map[string]any{}
	if s = strings.TrimSpace(s); s == "" {
		return args
	}
	if err := json.Unmarshal([]byte(s), &args); err != nil || args == nil {
		return map[string]any{"raw": s}
	}
	return args
}
