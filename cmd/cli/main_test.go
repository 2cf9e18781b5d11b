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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/internal/domain/mock"
	"tau-harness/internal/evaluator"
	"tau-harness/internal/message"
	"tau-harness/internal/runtime/runstore"
	"tau-harness/pkg/config"
)

func newTestCLI(store runstore.Store) (*cli, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &cli{
		out: out,
		newStore: func(context.Context, config.RunStoreConfig) (runstore.Store, error) {
			return nopClose{store}, nil
		},
	}, out
}

// nopClose 让多个命令共享同一个内存 store
type nopClose struct{ runstore.Store }

func (nopClose) Close() error { return nil }

func execute(t *testing.T, c *cli, args ...string) error {
	t.Helper()
	root := newRootCmd(c)
	root.SetArgs(append(args, "--config", "testdata-missing.yaml"))
	return root.Execute()
}

func TestTasksCmd(t *testing.T) {
	c, out := newTestCLI(runstore.NewMemoryStore())
	require.NoError(t, execute(t, c, "tasks", "--domain", mock.Domain))
	assert.Contains(t, out.String(), "create_task_1\tUser asks for a new task.")
	assert.Contains(t, out.String(), "resume_after_lookup")

	assert.Error(t, execute(t, c, "tasks", "--domain", "airline"))
}

func TestToolsCmd(t *testing.T) {
	c, out := newTestCLI(runstore.NewMemoryStore())
	require.NoError(t, execute(t, c, "tools"))
	var schemas []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &schemas))
	assert.Len(t, schemas, 4)

	out.Reset()
	require.NoError(t, execute(t, c, "tools", "--user"))
	assert.Contains(t, out.String(), "check_status")
}

func TestRunCmd_WithoutModelRecordsConfigError(t *testing.T) {
	store := runstore.NewMemoryStore()
	c, out := newTestCLI(store)
	require.NoError(t, execute(t, c, "run", "--domain", mock.Domain, "--task", "create_task_1", "--scripted", "--say", "hi"))
	assert.Contains(t, out.String(), "config_error")
	assert.Contains(t, out.String(), "runs=1 avg_reward=0.000")

	runs, err := store.List(context.Background(), "create_task_1")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.NotEmpty(t, runs[0].Error)
}

func TestReplayCmd(t *testing.T) {
	env, err := mock.NewEnvironment()
	require.NoError(t, err)
	call := message.ToolCall{ID: "c1", Name: "create_task", Arguments: map[string]any{"user_id": "user_1", "title": "Buy groceries"}, Requestor: message.RequestorAssistant}
	req, err := message.AssistantToolCalls("", call)
	require.NoError(t, err)

	store := runstore.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &runstore.SimulationRun{
		ID:                "run-1",
		TaskID:            "create_task_1",
		Domain:            mock.Domain,
		Trajectory:        []message.Message{req, env.GetResponse(context.Background(), call)},
		TerminationReason: "user_stop",
		StartedAt:         time.Now(),
	}))

	c, out := newTestCLI(store)
	require.NoError(t, execute(t, c, "replay", "--run-id", "run-1", "--save"))
	var info evaluator.RewardInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, 1.0, info.Reward)

	rec, err := store.Get(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rec.Reward)
	assert.NotEmpty(t, rec.RewardInfo)

	assert.Error(t, execute(t, c, "replay", "--run-id", "missing"))
	assert.Error(t, execute(t, c, "replay"))
}
