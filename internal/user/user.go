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

// Package user 用户模拟器契约与实现
package user

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/schema"

	"tau-harness/internal/message"
)

// 终止信号
const (
	Stop       = "###STOP###"
	Transfer   = "###TRANSFER###"
	OutOfScope = "###OUT-OF-SCOPE###"
)

// State 模拟器状态：原生对话与已发言次数。由 Next 返回新值，调用方不应修改。
type State struct {
	History []*schema.Message
	Turns   int
}

// Input 模拟器的一次输入。ToolResults 非空时是上一条用户工具调用的执行结果（按调用顺序），
// 此时 AssistantText 为空。
type Input struct {
	AssistantText string
	ToolResults   []message.Message
}

// Simulator 用户模拟器。Next 可返回文本发言，也可返回用户侧工具调用
// （message.UserToolCalls），后者执行完毕后结果随下一次 Next 送回。
type Simulator interface {
	// Init 以已有 Trajectory 构造初始状态
	Init(history []message.Message) State
	// Next 对最新的 agent 文本或工具结果作出回应
	Next(ctx context.Context, in Input, state State) (message.Message, State, error)
}

// IsStop 是否为终止发言；携带工具调用的消息不是
func IsStop(m message.Message) bool {
	if m.IsToolCall() {
		return false
	}
	c := m.Content()
	return strings.Contains(c, Stop) || strings.Contains(c, Transfer) || strings.Contains(c, OutOfScope)
}
