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
	"sort"
	"sync"

	"tau-harness/pkg/errors"
)

// memoryStore 内存实现；保存 JSON 副本，调用方修改不会影响已存记录
type memoryStore struct {
	mu   sync.RWMutex
	runs map[string][]byte
}

// NewMemoryStore 创建内存版存储
func NewMemoryStore() Store {
	return &memoryStore{runs: make(map[string][]byte)}
}

func (s *memoryStore) Save(_ context.Context, run *SimulationRun) error {
	if run == nil || run.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "run id is required")
	}
	b, err := json.Marshal(run)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.runs[run.ID] = b
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (*SimulationRun, error) {
	s.mu.RLock()
	b, ok := s.runs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}
	return decodeRun(b)
}

func (s *memoryStore) List(_ context.Context, taskID string) ([]*SimulationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*SimulationRun
	for _, b := range s.runs {
		run, err := decodeRun(b)
		if err != nil {
			return nil, err
		}
		if taskID == "" || run.TaskID == taskID {
			out = append(out, run)
		}
	}
	sortRuns(out)
	return out, nil
}

func (s *memoryStore) Close() error { return nil }

func sortRuns(runs []*SimulationRun) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.Before(runs[j].StartedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
