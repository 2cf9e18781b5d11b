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

package task

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/internal/message"
	"tau-harness/pkg/errors"
)

const tasksJSON = `[
  {
    "id": "t1",
    "user_scenario": {"instructions": "create a task"},
    "initial_state": {
      "initialization_actions": [{"env_type": "assistant", "func_name": "set_user_name", "arguments": {"user_id": "user_1", "name": "Ann"}}],
      "message_history": [{"role": "user", "content": "hi"}]
    },
    "evaluation_criteria": {
      "env_assertions": [{"env_type": "assistant", "func_name": "assert_number_of_tasks", "arguments": {"user_id": "user_1", "expected_number": 1}}],
      "actions": [{"action_id": "a1", "name": "create_task", "arguments": {"user_id": "user_1", "title": "x"}, "compare_args": ["user_id"]}]
    }
  },
  {"id": "t2", "user_scenario": {"instructions": "chat"}}
]`

func TestLoadTasks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(tasksJSON), 0644))

	tasks, err := LoadTasks(path)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	t1, err := Find(tasks, "t1")
	require.NoError(t, err)
	require.Len(t, t1.EvaluationCriteria.EnvAssertions, 1)
	assert.True(t, t1.EvaluationCriteria.EnvAssertions[0].AssertValue)
	assert.Equal(t, DefaultRewardBasis, t1.EvaluationCriteria.Basis())
	assert.Equal(t, message.RequestorAssistant, t1.Actions()[0].EnvType)

	hist, err := t1.History()
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hi", hist[0].Content())

	call := t1.EvaluationCriteria.Actions[0].ToolCall()
	assert.Equal(t, message.RequestorAssistant, call.Requestor)
	assert.Equal(t, "a1", call.ID)

	t2, err := Find(tasks, "t2")
	require.NoError(t, err)
	assert.Nil(t, t2.Data())
	assert.Nil(t, t2.Actions())

	_, err = Find(tasks, "nope")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestLoadTasks_Invalid(t *testing.T) {
	dir := t.TempDir()
	dup := filepath.Join(dir, "dup.json")
	require.NoError(t, os.WriteFile(dup, []byte(`[{"id":"a"},{"id":"a"}]`), 0644))
	_, err := LoadTasks(dup)
	assert.ErrorIs(t, err, errors.ErrInvalidArg)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{`), 0644))
	_, err = LoadTasks(bad)
	assert.ErrorIs(t, err, errors.ErrInvalidArg)
}

func TestEnvAssertion_ExplicitFalse(t *testing.T) {
	var a EnvAssertion
	require.NoError(t, a.UnmarshalJSON([]byte(`{"func_name":"assert_x","assert_value":false}`)))
	assert.False(t, a.AssertValue)
	assert.Equal(t, "assert_x", a.FuncName)
}
