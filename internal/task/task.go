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

// Package task 定义评测任务：用户场景、初始状态与评测标准
package task

import (
	"encoding/json"
	"os"

	"tau-harness/internal/message"
	"tau-harness/pkg/errors"
)

// RewardType reward 的组成来源
type RewardType string

const (
	RewardDB           RewardType = "DB"
	RewardEnvAssertion RewardType = "ENV_ASSERTION"
	RewardAction       RewardType = "ACTION"
	RewardCommunicate  RewardType = "COMMUNICATE"
	RewardNLAssertion  RewardType = "NL_ASSERTION"
)

// DefaultRewardBasis 未指定 reward_basis 时使用
var DefaultRewardBasis = []RewardType{RewardDB, RewardCommunicate}

// Task 一个评测任务，加载后只读，可在并发对话间共享
type Task struct {
	ID                 string              `json:"id"`
	Description        string              `json:"description,omitempty"`
	UserScenario       UserScenario        `json:"user_scenario"`
	InitialState       *InitialState       `json:"initial_state,omitempty"`
	EvaluationCriteria *EvaluationCriteria `json:"evaluation_criteria,omitempty"`
}

// UserScenario 提供给 user simulator 的设定
type UserScenario struct {
	Persona      string `json:"persona,omitempty"`
	Instructions string `json:"instructions"`
}

// InitialState 任务开始前的 Environment 状态
type InitialState struct {
	InitializationData    *InitializationData `json:"initialization_data,omitempty"`
	InitializationActions []EnvFunctionCall   `json:"initialization_actions,omitempty"`
	MessageHistory        []json.RawMessage   `json:"message_history,omitempty"`
}

// InitializationData 分别作用于 agent 侧与 user 侧 DB 的更新
type InitializationData struct {
	AgentData map[string]any `json:"agent_data,omitempty"`
	UserData  map[string]any `json:"user_data,omitempty"`
}

// EnvFunctionCall 初始化动作或断言调用的 Environment 函数
type EnvFunctionCall struct {
	EnvType   message.Requestor `json:"env_type"`
	FuncName  string            `json:"func_name"`
	Arguments map[string]any    `json:"arguments"`
}

// EnvAssertion 对最终状态的断言，函数返回值须等于 AssertValue
type EnvAssertion struct {
	EnvFunctionCall
	AssertValue bool   `json:"assert_value"`
	Message     string `json:"message,omitempty"`
}

// UnmarshalJSON assert_value 缺省为 true
func (a *EnvAssertion) UnmarshalJSON(data []byte) error {
	type alias EnvAssertion
	v := alias{AssertValue: true}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = EnvAssertion(v)
	return nil
}

// Action 期望发生的工具调用。CompareArgs 为 nil 表示未给出（比较工具调用自身的全部参数），
// 显式的空列表表示只比较名称。
type Action struct {
	ActionID    string            `json:"action_id"`
	Requestor   message.Requestor `json:"requestor,omitempty"`
	Name        string            `json:"name"`
	Arguments   map[string]any    `json:"arguments"`
	Info        string            `json:"info,omitempty"`
	CompareArgs *[]string         `json:"compare_args,omitempty"`
}

// ToolCall 将期望动作转为工具调用
func (a Action) ToolCall() message.ToolCall {
	return message.ToolCall{
		ID:        a.ActionID,
		Name:      a.Name,
		Arguments: a.Arguments,
		Requestor: a.Requestor.OrDefault(),
	}
}

// EvaluationCriteria 评测标准
type EvaluationCriteria struct {
	Actions         []Action       `json:"actions,omitempty"`
	EnvAssertions   []EnvAssertion `json:"env_assertions,omitempty"`
	CommunicateInfo []string       `json:"communicate_info,omitempty"`
	NLAssertions    []string       `json:"nl_assertions,omitempty"`
	RewardBasis     []RewardType   `json:"reward_basis,omitempty"`
}

// Basis 返回 reward_basis，未配置时为默认值
func (c *EvaluationCriteria) Basis() []RewardType {
	if c == nil || len(c.RewardBasis) == 0 {
		return DefaultRewardBasis
	}
	return c.RewardBasis
}

// History 解析初始消息历史，非法条目报错
func (t *Task) History() ([]message.Message, error) {
	if t.InitialState == nil {
		return nil, nil
	}
	return message.DecodeHistoryStrict(t.InitialState.MessageHistory)
}

// Data 初始化数据，可能为 nil
func (t *Task) Data() *InitializationData {
	if t.InitialState == nil {
		return nil
	}
	return t.InitialState.InitializationData
}

// Actions 初始化动作
func (t *Task) Actions() []EnvFunctionCall {
	if t.InitialState == nil {
		return nil
	}
	return t.InitialState.InitializationActions
}

// LoadTasks 从 JSON 数组文件加载任务集
func LoadTasks(path string) ([]Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read tasks %s", path)
	}
	var tasks []Task
	if err := json.Unmarshal(b, &tasks); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "parse tasks %s: %v", path, err)
	}
	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			return nil, errors.Wrapf(errors.ErrInvalidArg, "task %d without id", i)
		}
		if seen[t.ID] {
			return nil, errors.Wrapf(errors.ErrInvalidArg, "duplicate task id %q", t.ID)
		}
		seen[t.ID] = true
	}
	return tasks, nil
}

// Find 按 ID 查找
func Find(tasks []Task, id string) (*Task, error) {
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, errors.Wrapf(errors.ErrNotFound, "task %q", id)
}
