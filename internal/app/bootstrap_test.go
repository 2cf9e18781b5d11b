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

package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/internal/domain/mock"
	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
)

func TestNewBootstrap_Default(t *testing.T) {
	b, err := NewBootstrap(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{mock.Domain}, b.Catalog.Domains())
	tasks, err := b.Catalog.Tasks(mock.Domain)
	require.NoError(t, err)
	assert.NotEmpty(t, tasks)
	assert.Equal(t, config.DefaultMaxTurns, b.Config.Orchestrator.MaxTurns)
	assert.NoError(t, b.Close())
}

func TestNewCatalog_TasksFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"extra_1","user_scenario":{"instructions":"say hi"}}]`), 0o644))

	cfg := config.Default()
	cfg.Eval.Domain = mock.Domain
	cfg.Eval.TasksFile = path
	c, err := NewCatalog(cfg)
	require.NoError(t, err)
	tk, err := c.Task(mock.Domain, "extra_1")
	require.NoError(t, err)
	assert.Equal(t, "say hi", tk.UserScenario.Instructions)

	cfg.Eval.Domain = "airline"
	_, err = NewCatalog(cfg)
	assert.True(t, errors.Is(err, errors.ErrUnknownDomain))
}
