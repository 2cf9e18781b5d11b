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

	"tau-harness/internal/message"
)

// Scripted 依次发出固定发言，用完后发出 Stop
type Scripted struct {
	Lines []string
}

// NewScripted 创建脚本模拟器
func NewScripted(lines ...string) *Scripted {
	return &Scripted{Lines: lines}
}

// Init 实现 Simulator
func (s *Scripted) Init([]message.Message) State { return State{} }

// Next 实现 Simulator
func (s *Scripted) Next(_ context.Context, _ Input, state State) (message.Message, State, error) {
	text := Stop
	if state.Turns < len(s.Lines) {
		text = s.Lines[state.Turns]
	}
	msg, err := message.UserText(text)
	if err != nil {
		return message.Message{}, state, err
	}
	return msg, State{Turns: state.Turns + 1}, nil
}
