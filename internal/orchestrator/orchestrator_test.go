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

package orchestrator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/internal/agent"
	"tau-harness/internal/domain/mock"
	"tau-harness/internal/message"
	"tau-harness/internal/task"
	"tau-harness/internal/user"
	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
)

// stubAgent 依次返回预置回复，用完后一直回复 "ok"
type stubAgent struct {
	replies []agent.Reply
	inputs  []agent.Input
	err     error
	onCall  func(n int)
}

func (a *stubAgent) Respond(_ context.Context, in agent.Input) (*agent.Reply, error) {
	a.inputs = append(a.inputs, in)
	if a.onCall != nil {
		a.onCall(len(a.inputs))
	}
	if a.err != nil {
		return nil, a.err
	}
	if len(a.replies) == 0 {
		return &agent.Reply{Text: "ok"}, nil
	}
	r := a.replies[0]
	a.replies = a.replies[1:]
	return &r, nil
}

// stubUser 前 replies 次正常回复，之后发出终止信号；replies<0 永不终止
type stubUser struct {
	replies int
	seen    []string
}

func (u *stubUser) Init([]message.Message) user.State { return user.State{} }

func (u *stubUser) Next(_ context.Context, in user.Input, st user.State) (message.Message, user.State, error) {
	u.seen = append(u.seen, in.AssistantText)
	text := fmt.Sprintf("user message %d", st.Turns)
	if u.replies >= 0 && st.Turns >= u.replies {
		text = "thanks " + user.Stop
	}
	m, err := message.UserText(text)
	return m, user.State{Turns: st.Turns + 1}, err
}

// toolUser 第二次发言改为调用 check_status，拿到结果后终止
type toolUser struct {
	inputs []user.Input
}

func (u *toolUser) Init([]message.Message) user.State { return user.State{} }

func (u *toolUser) Next(_ context.Context, in user.Input, st user.State) (message.Message, user.State, error) {
	u.inputs = append(u.inputs, in)
	next := user.State{Turns: st.Turns + 1}
	switch {
	case len(in.ToolResults) > 0:
		m, err := message.UserText("status is " + in.ToolResults[0].Content() + " " + user.Stop)
		return m, next, err
	case st.Turns == 0:
		m, err := message.UserText("hi")
		return m, next, err
	default:
		m, err := message.UserToolCalls("", message.ToolCall{ID: "u1", Name: "check_status", Arguments: map[string]any{"task_id": "task_1"}})
		return m, next, err
	}
}

func mockExecutor(t *testing.T) (*EnvExecutor, Mapping) {
	t.Helper()
	env, err := mock.NewEnvironment()
	require.NoError(t, err)
	var names []string
	for _, d := range env.Tools() {
		names = append(names, d.Name())
	}
	return &EnvExecutor{Env: env}, IdentityMapping(names)
}

func roles(msgs []message.Message) []message.Role {
	out := make([]message.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role()
	}
	return out
}

func TestRun_UserStopAfterOneReply(t *testing.T) {
	exec, mapping := mockExecutor(t)
	a := &stubAgent{replies: []agent.Reply{{Text: "Sure, what do you need?"}}}
	u := &stubUser{replies: 1}
	o := New(Config{Domain: mock.Domain}, a, u, exec, mapping)

	run, err := o.Run(context.Background(), &task.Task{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, UserStop, run.Termination)
	require.Len(t, run.Trajectory, 3)
	assert.Equal(t, []message.Role{message.RoleUser, message.RoleAssistant, message.RoleUser}, roles(run.Trajectory))
	assert.Equal(t, "user message 0", run.Trajectory[0].Content())
	assert.Equal(t, "Sure, what do you need?", run.Trajectory[1].Content())
	assert.True(t, user.IsStop(run.Trajectory[2]))

	assert.Equal(t, config.DefaultGreeting, u.seen[0], "greeting goes to the user, not the trajectory")
	assert.Equal(t, "user message 0", a.inputs[0].UserText)
	assert.Equal(t, 1, run.Turns)
	for i, m := range run.Trajectory {
		assert.Equal(t, i, m.TurnIdx)
		assert.False(t, m.Timestamp.IsZero())
	}
}

func TestRun_TurnBudgetIsExact(t *testing.T) {
	for _, maxTurns := range []int{1, 3, 7} {
		t.Run(fmt.Sprint(maxTurns), func(t *testing.T) {
			exec, mapping := mockExecutor(t)
			a := &stubAgent{}
			o := New(Config{MaxTurns: maxTurns}, a, &stubUser{replies: -1}, exec, mapping)
			run, err := o.Run(context.Background(), &task.Task{ID: "t"})
			require.NoError(t, err, "max_turns is not an error")
			assert.Equal(t, MaxTurns, run.Termination)
			assert.Len(t, a.inputs, maxTurns)
			assert.Equal(t, maxTurns, run.Turns)
		})
	}
}

func TestRun_ToolCallsStayAdjacent(t *testing.T) {
	exec, mapping := mockExecutor(t)
	a := &stubAgent{replies: []agent.Reply{
		{Text: "checking", Calls: []agent.NativeCall{
			{ID: "a1", Name: "get_users"},
			{ID: "a2", Name: "update_task_status", Arguments: map[string]any{"task_id": "task_1", "status": "completed"}},
		}},
		{Text: "Done, task_1 is completed."},
	}}
	o := New(Config{}, a, &stubUser{replies: 1}, exec, mapping)
	run, err := o.Run(context.Background(), &task.Task{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, UserStop, run.Termination)

	want := []message.Role{message.RoleUser, message.RoleAssistant, message.RoleTool, message.RoleTool, message.RoleAssistant, message.RoleUser}
	require.Equal(t, want, roles(run.Trajectory))
	req := run.Trajectory[1]
	require.True(t, req.IsToolCall())
	assert.Equal(t, "checking", req.Content())
	calls := req.ToolCalls()
	assert.Equal(t, calls[0].ID, run.Trajectory[2].ID())
	assert.Equal(t, calls[1].ID, run.Trajectory[3].ID())
	assert.False(t, run.Trajectory[3].IsError())

	fb := a.inputs[1].ToolResults
	require.Len(t, fb, 2)
	assert.Equal(t, "a1", fb[0].CallID)
	assert.Contains(t, fb[0].Payload, "result", "list results are wrapped for the agent")
	assert.Equal(t, "completed", fb[1].Payload["status"])
	assert.Len(t, a.inputs[1].History, 4)
	assert.Equal(t, 2, run.Turns)
}

func TestRun_UserToolCallsExecuteAsUser(t *testing.T) {
	exec, mapping := mockExecutor(t)
	a := &stubAgent{}
	u := &toolUser{}
	run, err := New(Config{}, a, u, exec, mapping).Run(context.Background(), &task.Task{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, UserStop, run.Termination)

	want := []message.Role{message.RoleUser, message.RoleAssistant, message.RoleUser, message.RoleTool, message.RoleUser}
	require.Equal(t, want, roles(run.Trajectory))
	req, resp := run.Trajectory[2], run.Trajectory[3]
	require.True(t, req.IsToolCall())
	assert.Equal(t, message.RequestorUser, req.ToolCalls()[0].Requestor)
	assert.Equal(t, "u1", resp.ID())
	assert.Equal(t, message.RequestorUser, resp.Requestor())
	assert.False(t, resp.IsError())
	assert.Equal(t, "pending", resp.Content())

	require.Len(t, u.inputs, 3)
	require.Len(t, u.inputs[2].ToolResults, 1, "results go back to the user, not the agent")
	assert.Empty(t, u.inputs[2].AssistantText)
	assert.Len(t, a.inputs, 1, "the agent is not called for user tool rounds")
	assert.Equal(t, 1, run.Turns)

	// 回放同一 Trajectory 应与记录一致
	env, err := mock.NewEnvironment()
	require.NoError(t, err)
	require.NoError(t, env.SetState(context.Background(), nil, nil, run.Trajectory))
}

// loopingUser 永远只调用工具
type loopingUser struct{}

func (loopingUser) Init([]message.Message) user.State { return user.State{} }

func (loopingUser) Next(_ context.Context, _ user.Input, st user.State) (message.Message, user.State, error) {
	m, err := message.UserToolCalls("", message.ToolCall{ID: fmt.Sprint("u", st.Turns), Name: "check_status", Arguments: map[string]any{"task_id": "task_1"}})
	return m, user.State{Turns: st.Turns + 1}, err
}

func TestRun_UserToolLoopIsBounded(t *testing.T) {
	exec, mapping := mockExecutor(t)
	a := &stubAgent{}
	run, err := New(Config{MaxTurns: 3}, a, loopingUser{}, exec, mapping).Run(context.Background(), &task.Task{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, MaxTurns, run.Termination)
	assert.Len(t, run.Trajectory, 6)
	assert.Empty(t, a.inputs)
	assert.Equal(t, message.RoleTool, run.Trajectory[len(run.Trajectory)-1].Role())
}

func TestRun_UnknownToolIsConfigError(t *testing.T) {
	exec, mapping := mockExecutor(t)
	a := &stubAgent{replies: []agent.Reply{{Calls: []agent.NativeCall{{ID: "x", Name: "book_flight"}}}}}
	o := New(Config{}, a, &stubUser{replies: 1}, exec, mapping)
	run, err := o.Run(context.Background(), &task.Task{ID: "t"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownTool))
	assert.Equal(t, ConfigError, run.Termination)
	assert.Len(t, run.Trajectory, 1, "nothing is appended for an unmappable batch")
}

func TestRun_TooManyErrors(t *testing.T) {
	exec, mapping := mockExecutor(t)
	bad := agent.Reply{Calls: []agent.NativeCall{{Name: "update_task_status", Arguments: map[string]any{"task_id": "nope", "status": "completed"}}}}
	a := &stubAgent{replies: []agent.Reply{bad, bad, bad, bad}}
	o := New(Config{MaxErrors: 2}, a, &stubUser{replies: -1}, exec, mapping)
	run, err := o.Run(context.Background(), &task.Task{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, TooManyErrors, run.Termination)
	assert.Equal(t, 2, run.Errors)
	last := run.Trajectory[len(run.Trajectory)-1]
	assert.True(t, last.IsError())
	assert.Contains(t, a.inputs[1].ToolResults[0].Payload["result"], "Error: ")
}

func TestRun_AgentError(t *testing.T) {
	exec, mapping := mockExecutor(t)
	o := New(Config{}, &stubAgent{err: fmt.Errorf("model unavailable")}, &stubUser{replies: 1}, exec, mapping)
	run, err := o.Run(context.Background(), &task.Task{ID: "t"})
	assert.ErrorContains(t, err, "model unavailable")
	assert.Equal(t, AgentError, run.Termination)
	assert.True(t, run.Termination.Failed())
}

func TestRun_NoTextReply(t *testing.T) {
	exec, mapping := mockExecutor(t)
	a := &stubAgent{replies: []agent.Reply{{}}}
	o := New(Config{}, a, &stubUser{replies: 1}, exec, mapping)
	run, err := o.Run(context.Background(), &task.Task{ID: "t"})
	require.NoError(t, err)
	assert.Equal(t, NoTextReply, run.Trajectory[1].Content())
}

func TestRun_CancelLetsInFlightToolFinish(t *testing.T) {
	exec, mapping := mockExecutor(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := &stubAgent{
		replies: []agent.Reply{{Calls: []agent.NativeCall{{ID: "c", Name: "create_task", Arguments: map[string]any{"user_id": "user_1", "title": "x"}}}}},
		onCall:  func(int) { cancel() },
	}
	o := New(Config{}, a, &stubUser{replies: -1}, exec, mapping)
	run, err := o.Run(ctx, &task.Task{ID: "t"})
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Cancelled, run.Termination)

	require.Len(t, run.Trajectory, 3)
	assert.Equal(t, message.RoleTool, run.Trajectory[2].Role())
	assert.False(t, run.Trajectory[2].IsError(), "tool ran to completion")
	assert.Len(t, a.inputs, 1, "no further turn is scheduled")
}

func TestRun_ResumesFromTaskHistory(t *testing.T) {
	tasks, err := mock.Tasks()
	require.NoError(t, err)
	resume, err := task.Find(tasks, "resume_after_lookup")
	require.NoError(t, err)

	env, err := mock.NewEnvironment()
	require.NoError(t, err)
	history, err := resume.History()
	require.NoError(t, err)
	require.NoError(t, env.SetState(context.Background(), resume.Data(), resume.Actions(), history))

	mapping := IdentityMapping([]string{"get_users", "create_task", "update_task_status", "transfer_to_human_agents"})
	a := &stubAgent{}
	u := &stubUser{replies: 1}
	run, err := New(Config{}, a, u, &EnvExecutor{Env: env}, mapping).Run(context.Background(), resume)
	require.NoError(t, err)

	assert.Equal(t, "Hi Ann, what would you like to do?", u.seen[0])
	assert.Equal(t, UserStop, run.Termination)
	require.Len(t, run.Trajectory, 3)
	assert.Equal(t, 4, run.Trajectory[0].TurnIdx, "indices continue after the seeded history")
	assert.Len(t, a.inputs[0].History, 5)
}

func TestMappingFromConfig(t *testing.T) {
	m := MappingFromConfig(config.ToolMappingConfig{
		Tools: map[string]string{"users.list": "get_users", "new_task": "create_task"},
		Args:  map[string]map[string]string{"new_task": {"owner": "user_id", "name": "title"}},
	}, []string{"get_users", "create_task"})

	call, err := m.Translate(agent.NativeCall{ID: "1", Name: "new_task", Arguments: map[string]any{"owner": "user_1", "name": "x", "description": "d"}})
	require.NoError(t, err)
	assert.Equal(t, "create_task", call.Name)
	assert.Equal(t, map[string]any{"user_id": "user_1", "title": "x", "description": "d"}, call.Arguments)
	assert.Equal(t, message.RequestorAssistant, call.Requestor)

	call, err = m.Translate(agent.NativeCall{Name: "get_users"})
	require.NoError(t, err)
	assert.NotEmpty(t, call.ID)
	assert.Equal(t, map[string]any{}, call.Arguments)

	_, err = m.Translate(agent.NativeCall{Name: "users.delete"})
	assert.True(t, errors.Is(err, errors.ErrUnknownTool))

	_, err = m.Translate(agent.NativeCall{Name: "new_task", Arguments: map[string]any{"owner": "a", "user_id": "b"}})
	assert.True(t, errors.Is(err, errors.ErrInvalidArg))
}
