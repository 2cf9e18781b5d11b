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

package runstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
)

// redisStore prefix:run:<id> 存 JSON，prefix:task:<task_id> 与 prefix:runs 为索引集合
type redisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 连接 Redis 并 Ping
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "tau"
	}
	return &redisStore{client: client, prefix: prefix}, nil
}

func (s *redisStore) runKey(id string) string      { return s.prefix + ":run:" + id }
func (s *redisStore) taskKey(taskID string) string { return s.prefix + ":task:" + taskID }
func (s *redisStore) allKey() string               { return s.prefix + ":runs" }

func (s *redisStore) Save(ctx context.Context, run *SimulationRun) error {
	if run == nil || run.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "run id is required")
	}
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.runKey(run.ID), b, 0)
	pipe.SAdd(ctx, s.taskKey(run.TaskID), run.ID)
	pipe.SAdd(ctx, s.allKey(), run.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Get(ctx context.Context, id string) (*SimulationRun, error) {
	b, err := s.client.Get(ctx, s.runKey(id)).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, err
	}
	return decodeRun(b)
}

func (s *redisStore) List(ctx context.Context, taskID string) ([]*SimulationRun, error) {
	index := s.allKey()
	if taskID != "" {
		index = s.taskKey(taskID)
	}
	ids, err := s.client.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.runKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*SimulationRun, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue // 索引残留
		}
		run, err := decodeRun([]byte(str))
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	sortRuns(out)
	return out, nil
}

func (s *redisStore) Close() error { return s.client.Close() }
