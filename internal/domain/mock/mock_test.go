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

package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/internal/environment"
	"tau-harness/internal/message"
	"tau-harness/internal/tool"
	"tau-harness/pkg/errors"
)

func TestNewEnvironment_Tools(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)
	names := make([]string, 0)
	for _, d := range env.Tools() {
		names = append(names, d.Name())
	}
	assert.Equal(t, []string{"create_task", "get_users", "transfer_to_human_agents", "update_task_status"}, names)
	require.Len(t, env.UserTools(), 1)

	d, ok := env.ToolSet(message.RequestorAssistant).Get("create_task")
	require.True(t, ok)
	assert.Equal(t, []string{"user_id", "title", "description"}, d.ParamNames())
	assert.Equal(t, tool.TypeObject, d.Returns().Type.Type)
}

func TestTools_CreateAndUpdate(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)
	ctx := context.Background()

	out, err := env.UseTool(ctx, "create_task", map[string]any{"user_id": "user_1", "title": "Buy groceries"})
	require.NoError(t, err)
	created := out.(Task)
	assert.Equal(t, "task_2", created.TaskID)
	assert.Equal(t, StatusPending, created.Status)

	_, err = env.UseTool(ctx, "create_task", map[string]any{"user_id": "user_9", "title": "x"})
	assert.ErrorContains(t, err, "user user_9 not found")

	_, err = env.UseTool(ctx, "update_task_status", map[string]any{"task_id": "task_2", "status": "done"})
	assert.ErrorContains(t, err, "invalid status")

	out, err = env.UseTool(ctx, "update_task_status", map[string]any{"task_id": "task_2", "status": StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, out.(Task).Status)

	status, err := env.UseUserTool(ctx, "check_status", map[string]any{"task_id": "task_2"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, status)
}

func TestGetResponse_GetUsers(t *testing.T) {
	env, err := NewEnvironment()
	require.NoError(t, err)
	m := env.GetResponse(context.Background(), message.ToolCall{ID: "c1", Name: "get_users", Arguments: map[string]any{}})
	assert.False(t, m.IsError())
	assert.Equal(t, "c1", m.ID())
	assert.JSONEq(t, `[{"user_id":"user_1","name":"Mock User","tasks":["task_1"]}]`, m.Content())
}

func TestDB_ApplyAndHash(t *testing.T) {
	a, b := DefaultDB(), DefaultDB()
	assert.Equal(t, a.Hash(), b.Hash())

	require.NoError(t, a.Apply(map[string]any{
		"users": map[string]any{"user_2": map[string]any{"user_id": "user_2", "name": "Bob", "tasks": []any{}}},
	}))
	assert.Len(t, a.Users, 2)
	assert.Equal(t, "Mock User", a.Users["user_1"].Name)
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestTasks_ReplayInitialState(t *testing.T) {
	c := environment.NewCatalog()
	require.NoError(t, Register(c))

	tasks, err := c.Tasks(Domain)
	require.NoError(t, err)
	require.Len(t, tasks, 3)

	tk, err := c.Task(Domain, "resume_after_lookup")
	require.NoError(t, err)
	hist, err := tk.History()
	require.NoError(t, err)

	env, err := c.New(Domain)
	require.NoError(t, err)
	require.NoError(t, env.SetState(context.Background(), tk.Data(), tk.Actions(), hist))

	met, err := env.RunEnvFunctionCall(context.Background(), tk.Actions()[0])
	require.NoError(t, err)
	assert.Equal(t, "Ann", met.(User).Name)

	_, err = c.Task(Domain, "missing")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
