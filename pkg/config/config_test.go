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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := writeConfig(t, `
api:
  port: 9000
  host: "127.0.0.1"
log:
  level: "debug"
orchestrator:
  max_turns: 5
  tool_mappings:
    mock:
      tools:
        list_users: get_users
      args:
        new_task:
          owner: user_id
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, "127.0.0.1", cfg.API.Host)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Orchestrator.MaxTurns)
	assert.Equal(t, DefaultMaxErrors, cfg.Orchestrator.MaxErrors)
	assert.Equal(t, DefaultGreeting, cfg.Orchestrator.Greeting)

	m := cfg.Orchestrator.ToolMappings["mock"]
	assert.Equal(t, "get_users", m.Tools["list_users"])
	assert.Equal(t, "user_id", m.Args["new_task"]["owner"])
}

func TestLoadConfig_EnvPlaceholder(t *testing.T) {
	t.Setenv("TAU_TEST_KEY", "sk-test")
	path := writeConfig(t, `
model:
  agent:
    model: gpt-4o-mini
    api_key: "${TAU_TEST_KEY}"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Model.Agent.APIKey)
	assert.Equal(t, "memory", cfg.RunStore.Type)
}

func TestLoadConfig_Missing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultPort, cfg.API.Port)
	assert.Equal(t, DefaultMaxTurns, cfg.Orchestrator.MaxTurns)
	assert.Equal(t, 1, cfg.Eval.Concurrency)
}
