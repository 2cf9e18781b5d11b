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

// Package mock 用于测试与演示的最小领域：用户与待办任务
package mock

import (
	"fmt"
	"sort"

	"tau-harness/internal/environment"
)

// 任务状态
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task 待办任务
type Task struct {
	TaskID      string `json:"task_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"`
}

// User 用户及其任务 ID
type User struct {
	UserID string   `json:"user_id"`
	Name   string   `json:"name"`
	Tasks  []string `json:"tasks"`
}

// DB mock 领域数据库
type DB struct {
	Tasks map[string]Task `json:"tasks"`
	Users map[string]User `json:"users"`
}

// DefaultDB 初始数据
func DefaultDB() *DB {
	return &DB{
		Tasks: map[string]Task{
			"task_1": {TaskID: "task_1", Title: "Write report", Status: StatusPending},
		},
		Users: map[string]User{
			"user_1": {UserID: "user_1", Name: "Mock User", Tasks: []string{"task_1"}},
		},
	}
}

// Apply 实现 environment.State
func (d *DB) Apply(data map[string]any) error {
	return environment.MergeJSON(d, data)
}

// Hash 实现 environment.State
func (d *DB) Hash() string {
	return environment.HashJSON(d)
}

func (d *DB) nextTaskID() string {
	for n := len(d.Tasks) + 1; ; n++ {
		id := fmt.Sprintf("task_%d", n)
		if _, ok := d.Tasks[id]; !ok {
			return id
		}
	}
}

func (d *DB) sortedUsers() []User {
	out := make([]User, 0, len(d.Users))
	for _, u := range d.Users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}
