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

package message

import "sync"

// Trajectory 一段对话或一个 session 的有序、只追加消息序列
type Trajectory struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewTrajectory 以给定消息为初始内容
func NewTrajectory(msgs ...Message) *Trajectory {
	t := &Trajectory{}
	t.msgs = append(t.msgs, msgs...)
	return t
}

// Append 在末尾追加，多条消息一次追加保证相邻
func (t *Trajectory) Append(msgs ...Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, msgs...)
}

// Messages 返回副本
func (t *Trajectory) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len 消息数
func (t *Trajectory) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Last 最后一条消息，空时 ok=false
func (t *Trajectory) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.msgs) == 0 {
		return Message{}, false
	}
	return t.msgs[len(t.msgs)-1], true
}
