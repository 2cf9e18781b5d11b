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

// Package runstore 模拟运行结果存储：保存可重放、可重新评分的 SimulationRun
package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tau-harness/internal/message"
	"tau-harness/pkg/config"
)

// SimulationRun 一次对话的落盘记录
type SimulationRun struct {
	ID                string            `json:"id"`
	TaskID            string            `json:"task_id"`
	Domain            string            `json:"domain"`
	Trajectory        []message.Message `json:"trajectory"`
	TerminationReason string            `json:"termination_reason"`
	Turns             int               `json:"turns"`
	Reward            float64           `json:"reward"`
	RewardInfo        json.RawMessage   `json:"reward_info,omitempty"`
	StartedAt         time.Time         `json:"started_at"`
	EndedAt           time.Time         `json:"ended_at"`
	Error             string            `json:"error,omitempty"`
}

// Store 运行记录存储
type Store interface {
	// Save 按 ID 写入，已存在则覆盖
	Save(ctx context.Context, run *SimulationRun) error
	// Get 不存在返回 ErrNotFound
	Get(ctx context.Context, id string) (*SimulationRun, error)
	// List 返回 taskID 的全部记录（按 StartedAt 升序）；taskID 为空返回全部
	List(ctx context.Context, taskID string) ([]*SimulationRun, error)
	Close() error
}

// New 按配置选择后端
func New(ctx context.Context, cfg config.RunStoreConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		return NewRedisStore(ctx, cfg.Redis)
	case "postgres":
		return NewPostgresStore(ctx, cfg.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unsupported runstore type: %s", cfg.Type)
	}
}

func decodeRun(b []byte) (*SimulationRun, error) {
	var run SimulationRun
	if err := json.Unmarshal(b, &run); err != nil {
		return nil, fmt.Errorf("decode run: %w", err)
	}
	return &run, nil
}
