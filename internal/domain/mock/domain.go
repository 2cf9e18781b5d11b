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
	_ "embed"
	"encoding/json"

	"tau-harness/internal/environment"
	"tau-harness/internal/task"
)

// Domain 领域名
const Domain = "mock"

// Policy agent 策略
const Policy = `# Mock task desk policy

You help users manage their to-do tasks.

- Look users up with get_users before acting on their behalf.
- Only create tasks for a user who exists. Use the title the user asked for.
- A task status is either pending or completed.
- Confirm what you did in plain words after every change.
- If the user asks for a human, call transfer_to_human_agents with a short summary.`

//go:embed tasks.json
var tasksJSON []byte

// NewEnvironment 以默认数据构造新实例
func NewEnvironment() (*environment.Environment, error) {
	db := DefaultDB()
	tools, err := declareAll(assistantTools, db)
	if err != nil {
		return nil, err
	}
	users, err := declareAll(userTools, db)
	if err != nil {
		return nil, err
	}
	funcs, err := declareAll(envFunctions, db)
	if err != nil {
		return nil, err
	}
	return environment.New(environment.Options{
		Domain:    Domain,
		Policy:    Policy,
		DB:        db,
		Tools:     tools,
		UserTools: users,
		Functions: funcs,
	}), nil
}

// Tasks 内置任务集
func Tasks() ([]task.Task, error) {
	var tasks []task.Task
	if err := json.Unmarshal(tasksJSON, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Register 向目录注册 mock 领域及其任务集
func Register(c *environment.Catalog) error {
	if err := c.RegisterDomain(Domain, NewEnvironment); err != nil {
		return err
	}
	tasks, err := Tasks()
	if err != nil {
		return err
	}
	return c.RegisterTasks(Domain, tasks)
}
