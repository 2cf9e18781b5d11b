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

package environment

import (
	"sort"
	"sync"

	"tau-harness/internal/task"
	"tau-harness/pkg/errors"
)

// Factory 构造一个全新的 Environment 实例
type Factory func() (*Environment, error)

// Catalog 领域工厂与任务集目录；进程启动时构建一次，按引用传递给 Registry 与 Orchestrator
type Catalog struct {
	mu      sync.RWMutex
	domains map[string]Factory
	tasks   map[string][]task.Task
}

// NewCatalog 创建空目录
func NewCatalog() *Catalog {
	return &Catalog{
		domains: make(map[string]Factory),
		tasks:   make(map[string][]task.Task),
	}
}

// RegisterDomain 注册领域工厂，重名报错
func (c *Catalog) RegisterDomain(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.Wrap(errors.ErrInvalidArg, "domain name and factory are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.domains[name]; ok {
		return errors.Wrapf(errors.ErrInvalidArg, "domain %q already registered", name)
	}
	c.domains[name] = f
	return nil
}

// Factory 按名称查找领域工厂
func (c *Catalog) Factory(name string) (Factory, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.domains[name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownDomain, "domain %q not found in registry", name)
	}
	return f, nil
}

// New 构造领域的新实例
func (c *Catalog) New(name string) (*Environment, error) {
	f, err := c.Factory(name)
	if err != nil {
		return nil, err
	}
	return f()
}

// Domains 已注册领域，已排序
func (c *Catalog) Domains() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.domains))
	for name := range c.domains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterTasks 追加领域任务集
func (c *Catalog) RegisterTasks(domain string, tasks []task.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.domains[domain]; !ok {
		return errors.Wrapf(errors.ErrUnknownDomain, "domain %q not found in registry", domain)
	}
	c.tasks[domain] = append(c.tasks[domain], tasks...)
	return nil
}

// Tasks 领域任务集副本
func (c *Catalog) Tasks(domain string) ([]task.Task, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.domains[domain]; !ok {
		return nil, errors.Wrapf(errors.ErrUnknownDomain, "domain %q not found in registry", domain)
	}
	return append([]task.Task(nil), c.tasks[domain]...), nil
}

// Task 按 ID 取任务
func (c *Catalog) Task(domain, id string) (*task.Task, error) {
	tasks, err := c.Tasks(domain)
	if err != nil {
		return nil, err
	}
	return task.Find(tasks, id)
}
