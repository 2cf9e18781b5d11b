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

package environment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"tau-harness/internal/message"
	"tau-harness/internal/task"
	"tau-harness/pkg/errors"
)

// SetState 替换实例状态：依次应用初始化数据、执行初始化动作、回放历史中的工具调用。
// 任一步失败返回 ErrInitialization（回放不一致同时为 ErrReplay），此后该实例不可再用。
func (e *Environment) SetState(ctx context.Context, data *task.InitializationData, actions []task.EnvFunctionCall, history []message.Message) error {
	if data != nil {
		if len(data.AgentData) > 0 {
			if e.db == nil {
				return errors.Wrap(errors.ErrInitialization, "agent data given but domain has no agent db")
			}
			if err := e.db.Apply(data.AgentData); err != nil {
				return fmt.Errorf("%w: apply agent data: %v", errors.ErrInitialization, err)
			}
		}
		if len(data.UserData) > 0 {
			if e.userDB == nil {
				return errors.Wrap(errors.ErrInitialization, "user data given but domain has no user db")
			}
			if err := e.userDB.Apply(data.UserData); err != nil {
				return fmt.Errorf("%w: apply user data: %v", errors.ErrInitialization, err)
			}
		}
	}
	for i, a := range actions {
		if _, err := e.RunEnvFunctionCall(ctx, a); err != nil {
			return fmt.Errorf("%w: initialization action %d (%s): %v", errors.ErrInitialization, i, a.FuncName, err)
		}
	}
	return e.replay(ctx, history)
}

// replay 每个携带工具调用的消息之后须紧跟对应数量的工具消息，ID 一致、内容一致
func (e *Environment) replay(ctx context.Context, history []message.Message) error {
	for i, m := range history {
		if !m.IsToolCall() {
			continue
		}
		for j, call := range m.ToolCalls() {
			k := i + 1 + j
			if k >= len(history) || history[k].Role() != message.RoleTool {
				return replayErr("tool call %s (%s) has no recorded response", call.ID, call.Name)
			}
			want := history[k]
			if want.ID() != call.ID {
				return replayErr("tool call %s answered by response %s", call.ID, want.ID())
			}
			got := e.GetResponse(ctx, call)
			if !SameContent(got.Content(), want.Content()) {
				return replayErr("tool call %s (%s): got %q, recorded %q", call.ID, call.Name, got.Content(), want.Content())
			}
		}
	}
	return nil
}

func replayErr(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", errors.ErrInitialization, errors.ErrReplay, fmt.Sprintf(format, args...))
}

// SameContent 工具消息内容比较：均为合法 JSON 时按值比较，否则按去空白后的文本比较
func SameContent(a, b string) bool {
	var av, bv any
	if json.Unmarshal([]byte(a), &av) == nil && json.Unmarshal([]byte(b), &bv) == nil {
		return reflect.DeepEqual(av, bv)
	}
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// HashJSON 对值的 JSON 形态计算 sha256；encoding/json 对 map 键排序，结果确定
func HashJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MergeJSON 将 patch 深度合并进 target（指向结构体或 map 的指针）：
// 对象逐键合并，其余值整体替换
func MergeJSON(target any, patch map[string]any) error {
	b, err := json.Marshal(target)
	if err != nil {
		return err
	}
	var cur map[string]any
	if err := json.Unmarshal(b, &cur); err != nil {
		return err
	}
	if cur == nil {
		cur = map[string]any{}
	}
	merged := deepMerge(cur, patch)
	b, err = json.Marshal(merged)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

func deepMerge(dst, src map[string]any) map[string]any {
	for k, sv := range src {
		if sm, ok := sv.(map[string]any); ok {
			if dm, ok := dst[k].(map[string]any); ok {
				dst[k] = deepMerge(dm, sm)
				continue
			}
		}
		dst[k] = sv
	}
	return dst
}
