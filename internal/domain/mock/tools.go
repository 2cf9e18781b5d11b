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
	"fmt"

	"tau-harness/internal/tool"
	"tau-harness/internal/tool/registry"
)

func dbOf(args map[string]any) *DB { return args["db"].(*DB) }

func str(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

var dbParam = tool.Param{Name: "db", Required: true}

func getUsers(_ context.Context, args map[string]any) (any, error) {
	return dbOf(args).sortedUsers(), nil
}

func createTask(_ context.Context, args map[string]any) (any, error) {
	db := dbOf(args)
	userID := str(args, "user_id")
	user, ok := db.Users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s not found", userID)
	}
	t := Task{
		TaskID:      db.nextTaskID(),
		Title:       str(args, "title"),
		Description: str(args, "description"),
		Status:      StatusPending,
	}
	db.Tasks[t.TaskID] = t
	user.Tasks = append(user.Tasks, t.TaskID)
	db.Users[userID] = user
	return t, nil
}

func updateTaskStatus(_ context.Context, args map[string]any) (any, error) {
	db := dbOf(args)
	id, status := str(args, "task_id"), str(args, "status")
	if status != StatusPending && status != StatusCompleted {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	t, ok := db.Tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s not found", id)
	}
	t.Status = status
	db.Tasks[id] = t
	return t, nil
}

func transferToHumanAgents(context.Context, map[string]any) (any, error) {
	return "Transfer successful", nil
}

func checkStatus(_ context.Context, args map[string]any) (any, error) {
	id := str(args, "task_id")
	t, ok := dbOf(args).Tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return t.Status, nil
}

func assertTaskStatus(_ context.Context, args map[string]any) (any, error) {
	t, ok := dbOf(args).Tasks[str(args, "task_id")]
	return ok && t.Status == str(args, "expected_status"), nil
}

func assertNumberOfTasks(_ context.Context, args map[string]any) (any, error) {
	u, ok := dbOf(args).Users[str(args, "user_id")]
	return ok && len(u.Tasks) == args["expected_number"].(int), nil
}

func setUserName(_ context.Context, args map[string]any) (any, error) {
	db := dbOf(args)
	id := str(args, "user_id")
	u, ok := db.Users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	u.Name = str(args, "name")
	db.Users[id] = u
	return u, nil
}

var assistantTools = []tool.Declaration{
	{
		Name:    "get_users",
		Doc:     "Get all users in the database.\n\nReturns:\n    list[User]: every user with their task ids.",
		Params:  []tool.Param{dbParam},
		Handler: getUsers,
	},
	{
		Name: "create_task",
		Doc: `Create a new task for a user.

Args:
    user_id (str): The ID of the user creating the task.
    title (str): The title of the task.
    description (str, optional): An optional task description.

Returns:
    Task: The created task.

Raises:
    ValueError: If the user is not found.`,
		Params: []tool.Param{
			dbParam,
			{Name: "user_id", Required: true},
			{Name: "title", Required: true},
			{Name: "description", Default: ""},
		},
		Handler: createTask,
	},
	{
		Name: "update_task_status",
		Doc: `Update the status of a task.

Args:
    task_id (str): The ID of the task to update.
    status (str): The new status, pending or completed.

Returns:
    Task: The updated task.

Raises:
    ValueError: If the task is not found or the status is invalid.`,
		Params: []tool.Param{
			dbParam,
			{Name: "task_id", Required: true},
			{Name: "status", Required: true},
		},
		Handler: updateTaskStatus,
	},
	{
		Name: "transfer_to_human_agents",
		Doc: `Transfer the user to a human agent, with a summary of the issue.

Only transfer if the user explicitly asks for a human agent, or the request
cannot be handled with the available tools.

Args:
    summary (str): A summary of the user's issue.

Returns:
    str: A message indicating the user has been transferred.`,
		Params:  []tool.Param{dbParam, {Name: "summary", Required: true}},
		Handler: transferToHumanAgents,
	},
}

var userTools = []tool.Declaration{
	{
		Name:    "check_status",
		Doc:     "Check the status of one of your tasks.\n\nArgs:\n    task_id (str): The task to check.\n\nReturns:\n    str: pending or completed.",
		Params:  []tool.Param{dbParam, {Name: "task_id", Required: true}},
		Handler: checkStatus,
	},
}

var envFunctions = []tool.Declaration{
	{
		Name: "assert_task_status",
		Doc:  "Check that a task has the expected status.\n\nArgs:\n    task_id (str): task\n    expected_status (str): status",
		Params: []tool.Param{
			dbParam,
			{Name: "task_id", Required: true},
			{Name: "expected_status", Required: true},
		},
		Returns: "bool",
		Handler: assertTaskStatus,
	},
	{
		Name: "assert_number_of_tasks",
		Doc:  "Check that a user owns the expected number of tasks.\n\nArgs:\n    user_id (str): user\n    expected_number (int): count",
		Params: []tool.Param{
			dbParam,
			{Name: "user_id", Required: true},
			{Name: "expected_number", Required: true},
		},
		Returns: "bool",
		Handler: assertNumberOfTasks,
	},
	{
		Name:    "set_user_name",
		Doc:     "Rename a user.\n\nArgs:\n    user_id (str): user\n    name (str): new name",
		Params:  []tool.Param{dbParam, {Name: "user_id", Required: true}, {Name: "name", Required: true}},
		Returns: "User",
		Handler: setUserName,
	},
}

func declareAll(decls []tool.Declaration, db *DB) (*registry.Registry, error) {
	r := registry.New()
	for _, d := range decls {
		if err := r.Declare(d, map[string]any{"db": db}); err != nil {
			return nil, err
		}
	}
	return r, nil
}
