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

import (
	"encoding/json"
	"time"

	"tau-harness/pkg/errors"
)

type wireMessage struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ID        string     `json:"id,omitempty"`
	Requestor Requestor  `json:"requestor,omitempty"`
	Error     bool       `json:"error,omitempty"`
	TurnIdx   int        `json:"turn_idx"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Cost      *float64   `json:"cost,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// MarshalJSON 实现 json.Marshaler
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		Role:      m.role,
		Content:   m.content,
		ToolCalls: m.toolCalls,
		ID:        m.id,
		Requestor: m.requestor,
		Error:     m.isError,
		TurnIdx:   m.TurnIdx,
		Cost:      m.Cost,
		Usage:     m.Usage,
	}
	if !m.Timestamp.IsZero() {
		ts := m.Timestamp
		w.Timestamp = &ts
	}
	return json.Marshal(w)
}

// UnmarshalJSON 实现 json.Unmarshaler，拒绝违反消息不变量的输入
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return errors.Wrap(errors.ErrInvalidArg, err.Error())
	}
	var (
		msg Message
		err error
	)
	switch w.Role {
	case RoleSystem:
		msg = System(w.Content)
	case RoleTool:
		if w.ID == "" {
			return errors.Wrap(errors.ErrInvalidArg, "tool message without id")
		}
		msg = ToolResult(w.ID, w.Content, w.Requestor, w.Error)
	case RoleUser, RoleAssistant:
		if len(w.ToolCalls) > 0 {
			msg, err = ToolCalls(w.Role, w.Content, w.ToolCalls)
		} else {
			msg, err = Text(w.Role, w.Content)
		}
		if err != nil {
			return err
		}
	default:
		return errors.Wrapf(errors.ErrInvalidArg, "unknown role %q", w.Role)
	}
	msg.TurnIdx = w.TurnIdx
	msg.Timestamp = time.Time{}
	if w.Timestamp != nil {
		msg.Timestamp = *w.Timestamp
	}
	msg.Cost = w.Cost
	msg.Usage = w.Usage
	*m = msg
	return nil
}

// DecodeHistory 宽松解析消息历史：只保留角色可识别且结构合法的条目，其余静默丢弃
func DecodeHistory(raw []json.RawMessage) []Message {
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal(r, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// DecodeHistoryStrict 严格解析，第一条非法条目即返回错误
func DecodeHistoryStrict(raw []json.RawMessage) ([]Message, error) {
	out := make([]Message, 0, len(raw))
	for i, r := range raw {
		var m Message
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, errors.Wrapf(err, "message %d", i)
		}
		out = append(out, m)
	}
	return out, nil
}

// EncodeHistory DecodeHistory 的逆操作
func EncodeHistory(msgs []Message) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(msgs))
	for i, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
