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

// Package evaluator 在全新的 Environment 实例上重放对话并计算 reward。
// 评估失败作为结果数据返回，从不报错。
package evaluator

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"

	"tau-harness/internal/environment"
	"tau-harness/internal/message"
	"tau-harness/internal/orchestrator"
	"tau-harness/internal/task"
	"tau-harness/pkg/metrics"
)

// DBCheck 数据库终态比较
type DBCheck struct {
	DBMatch  bool    `json:"db_match"`
	DBReward float64 `json:"db_reward"`
}

// EnvAssertionCheck 单个环境断言的结果
type EnvAssertionCheck struct {
	Assertion task.EnvAssertion `json:"env_assertion"`
	Met       bool              `json:"met"`
	Reward    float64           `json:"reward"`
}

// ActionCheck 单个期望动作是否在 Trajectory 中出现
type ActionCheck struct {
	Action  task.Action `json:"action"`
	Matched bool        `json:"action_match"`
}

// CommunicateCheck 单条需告知用户的信息是否出现
type CommunicateCheck struct {
	Info string `json:"info"`
	Met  bool   `json:"met"`
}

// RewardInfo 评估结果
type RewardInfo struct {
	Reward            float64                     `json:"reward"`
	DBCheck           *DBCheck                    `json:"db_check,omitempty"`
	EnvAssertions     []EnvAssertionCheck         `json:"env_assertions,omitempty"`
	ActionChecks      []ActionCheck               `json:"action_checks,omitempty"`
	CommunicateChecks []CommunicateCheck          `json:"communicate_checks,omitempty"`
	RewardBreakdown   map[task.RewardType]float64 `json:"reward_breakdown,omitempty"`
	Info              map[string]any              `json:"info,omitempty"`
}

const noStateCriteriaNote = "no expected actions or env assertions"

func (r *RewardInfo) setInfo(key string, v any) {
	if r.Info == nil {
		r.Info = map[string]any{}
	}
	r.Info[key] = v
}

func failed(reason string, err error) RewardInfo {
	info := map[string]any{"note": reason}
	if err != nil {
		info["error"] = err.Error()
	}
	metrics.RewardHistogram.Observe(0)
	return RewardInfo{Reward: 0, Info: info}
}

// EvaluateRun 失败结束的对话直接计 0，不做重放；max_turns 正常评估
func EvaluateRun(ctx context.Context, factory environment.Factory, t *task.Task, run *orchestrator.Run) RewardInfo {
	if run.Termination.Failed() {
		return failed("conversation terminated with "+string(run.Termination), run.Err)
	}
	return CalculateReward(ctx, factory, t, run.Trajectory)
}

// CalculateReward 只使用 factory 新建的实例，不触碰对话中的存活实例
func CalculateReward(ctx context.Context, factory environment.Factory, t *task.Task, trajectory []message.Message) RewardInfo {
	criteria := t.EvaluationCriteria
	if criteria == nil {
		metrics.RewardHistogram.Observe(1)
		return RewardInfo{Reward: 1, Info: map[string]any{"note": "no evaluation criteria"}}
	}
	seed, err := t.History()
	if err != nil {
		return failed("invalid task message history", err)
	}
	full := append(append([]message.Message(nil), seed...), trajectory...)

	predicted, err := factory()
	if err != nil {
		return failed("construct predicted environment", err)
	}
	if err := predicted.SetState(ctx, t.Data(), t.Actions(), full); err != nil {
		slog.WarnContext(ctx, "trajectory 重放失败", "task_id", t.ID, "error", err)
		return failed("trajectory replay failed", err)
	}

	basis := criteria.Basis()
	info := RewardInfo{Reward: 1, RewardBreakdown: map[task.RewardType]float64{}}
	// 既无期望动作也无环境断言时，状态类检查直接满足
	noStateCriteria := criteria.Actions == nil && criteria.EnvAssertions == nil
	for _, b := range basis {
		var score float64
		switch b {
		case task.RewardDB:
			if noStateCriteria {
				info.DBCheck = &DBCheck{DBMatch: true, DBReward: 1}
				info.setInfo("note", noStateCriteriaNote)
				score = 1
				break
			}
			check, err := dbCheck(ctx, factory, t, seed, predicted)
			if err != nil {
				return failed("construct gold environment", err)
			}
			info.DBCheck = check
			score = check.DBReward
		case task.RewardEnvAssertion:
			if noStateCriteria {
				info.setInfo("note", noStateCriteriaNote)
			}
			info.EnvAssertions, score = envAssertions(ctx, predicted, criteria.EnvAssertions)
		case task.RewardAction:
			info.ActionChecks, score = actionChecks(full, criteria.Actions)
		case task.RewardCommunicate:
			info.CommunicateChecks, score = communicateChecks(full, criteria.CommunicateInfo)
		case task.RewardNLAssertion:
			slog.WarnContext(ctx, "NL_ASSERTION 需要 LLM 评审，跳过", "task_id", t.ID)
			info.setInfo("skipped", []string{string(task.RewardNLAssertion)})
			continue
		default:
			slog.WarnContext(ctx, "未知的 reward 类型，跳过", "task_id", t.ID, "type", b)
			continue
		}
		info.RewardBreakdown[b] = score
		info.Reward *= score
	}
	metrics.RewardHistogram.Observe(info.Reward)
	return info
}

// dbCheck 金标准实例：相同初始状态 + 任务历史，再依次执行期望动作
func dbCheck(ctx context.Context, factory environment.Factory, t *task.Task, seed []message.Message, predicted *environment.Environment) (*DBCheck, error) {
	gold, err := factory()
	if err != nil {
		return nil, err
	}
	if err := gold.SetState(ctx, t.Data(), t.Actions(), seed); err != nil {
		return nil, err
	}
	for _, a := range t.EvaluationCriteria.Actions {
		call := a.ToolCall()
		if _, err := gold.MakeToolCall(ctx, call.Requestor, call.Name, call.Arguments); err != nil {
			slog.WarnContext(ctx, "期望动作执行失败", "task_id", t.ID, "action", a.ActionID, "tool", a.Name, "error", err)
		}
	}
	match := predicted.DBHash() == gold.DBHash() && predicted.UserDBHash() == gold.UserDBHash()
	check := &DBCheck{DBMatch: match}
	if match {
		check.DBReward = 1
	}
	return check, nil
}

func envAssertions(ctx context.Context, env *environment.Environment, assertions []task.EnvAssertion) ([]EnvAssertionCheck, float64) {
	score := 1.0
	checks := make([]EnvAssertionCheck, 0, len(assertions))
	for _, a := range assertions {
		met, err := env.RunEnvAssertion(ctx, a)
		if err != nil {
			slog.WarnContext(ctx, "环境断言执行失败", "func", a.FuncName, "error", err)
		}
		c := EnvAssertionCheck{Assertion: a, Met: met && err == nil}
		if c.Met {
			c.Reward = 1
		}
		score *= c.Reward
		checks = append(checks, c)
	}
	return checks, score
}

func actionChecks(history []message.Message, actions []task.Action) ([]ActionCheck, float64) {
	var calls []message.ToolCall
	for _, m := range history {
		calls = append(calls, m.ToolCalls()...)
	}
	score := 1.0
	checks := make([]ActionCheck, 0, len(actions))
	for _, a := range actions {
		matched := false
		for _, c := range calls {
			if matchesAction(a, c) {
				matched = true
				break
			}
		}
		if !matched {
			score = 0
		}
		checks = append(checks, ActionCheck{Action: a, Matched: matched})
	}
	return checks, score
}

// matchesAction 名称相同后比较参数：比较的参数名取 CompareArgs，未给出时取工具调用自身的参数名；
// 参数名为空时直接匹配。发起方不参与比较。
func matchesAction(a task.Action, c message.ToolCall) bool {
	if a.Name != c.Name {
		return false
	}
	var keys []string
	if a.CompareArgs != nil {
		keys = *a.CompareArgs
	} else {
		for k := range c.Arguments {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		want, ok1 := a.Arguments[k]
		got, ok2 := c.Arguments[k]
		if ok1 != ok2 || !sameValue(want, got) {
			return false
		}
	}
	return true
}

// sameValue 按 JSON 形态比较，消除 int 与 float64 的差异
func sameValue(a, b any) bool {
	var av, bv any
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return reflect.DeepEqual(a, b)
	}
	_ = json.Unmarshal(ab, &av)
	_ = json.Unmarshal(bb, &bv)
	return reflect.DeepEqual(av, bv)
}

func communicateChecks(history []message.Message, infos []string) ([]CommunicateCheck, float64) {
	score := 1.0
	checks := make([]CommunicateCheck, 0, len(infos))
	for _, info := range infos {
		needle := strings.ToLower(info)
		met := false
		for _, m := range history {
			if m.Role() != message.RoleAssistant || !m.HasText() {
				continue
			}
			if strings.Contains(strings.ReplaceAll(strings.ToLower(m.Content()), ",", ""), needle) {
				met = true
				break
			}
		}
		if !met {
			score = 0
		}
		checks = append(checks, CommunicateCheck{Info: info, Met: met})
	}
	return checks, score
}
