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

package registry

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"

	"tau-harness/internal/tool"
	"tau-harness/pkg/errors"
)

type entry struct {
	desc  *tool.Descriptor
	bound map[string]any
}

// Registry 一个 Environment 的工具集：注册、发现、校验后调用、供 LLM 使用的 Schema 列表
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// New 创建新的 ToolRegistry
func New() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register 注册工具；bound 为预绑定参数的值，须覆盖 Descriptor 的全部 predefined 参数
func (r *Registry) Register(d *tool.Descriptor, bound map[string]any) error {
	for _, name := range d.Predefined() {
		if _, ok := bound[name]; !ok {
			return errors.Wrapf(errors.ErrDescriptor, "tool %q: predefined arg %q has no bound value", d.Name(), name)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name()]; exists {
		return errors.Wrapf(errors.ErrDescriptor, "tool %q registered twice", d.Name())
	}
	r.tools[d.Name()] = entry{desc: d, bound: bound}
	return nil
}

// Declare 由声明构建并注册，bound 的键即 predefined 参数
func (r *Registry) Declare(decl tool.Declaration, bound map[string]any) error {
	names := make([]string, 0, len(bound))
	for k := range bound {
		names = append(names, k)
	}
	sort.Strings(names)
	d, err := tool.Build(decl, names...)
	if err != nil {
		return err
	}
	return r.Register(d, bound)
}

// Get 按名称获取工具
func (r *Registry) Get(name string) (*tool.Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[name]
	return e.desc, ok
}

// Has 是否已注册
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// List 返回所有已注册工具，按名称排序
func (r *Registry) List() []*tool.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*tool.Descriptor, 0, len(r.tools))
	for _, e := range r.tools {
		list = append(list, e.desc)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// Names 已注册工具名，已排序
func (r *Registry) Names() []string {
	list := r.List()
	out := make([]string, len(list))
	for i, d := range list {
		out[i] = d.Name()
	}
	return out
}

// Use 校验参数并执行工具：未注册为 ErrUnknownTool，参数不合法为 ErrInvalidArguments，
// 其余错误为工具自身错误（包装后返回）
func (r *Registry) Use(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownTool, "tool %q", name)
	}
	validated, err := e.desc.Validate(args)
	if err != nil {
		return nil, err
	}
	for k, v := range e.bound {
		validated[k] = v
	}
	out, err := e.desc.Call(ctx, validated)
	if err != nil {
		return nil, errors.Wrapf(err, "tool %s", name)
	}
	return out, nil
}

// FunctionSchemas 所有工具的 function-calling schema
func (r *Registry) FunctionSchemas() []tool.FunctionSchema {
	list := r.List()
	out := make([]tool.FunctionSchema, len(list))
	for i, d := range list {
		out[i] = d.FunctionSchema()
	}
	return out
}

// SchemasForLLM 返回所有工具的 Schema 列表（JSON 序列化供 LLM 使用）
func (r *Registry) SchemasForLLM() ([]byte, error) {
	return json.Marshal(r.FunctionSchemas())
}

// ToolInfos 所有工具的 eino ToolInfo
func (r *Registry) ToolInfos() []*schema.ToolInfo {
	list := r.List()
	out := make([]*schema.ToolInfo, len(list))
	for i, d := range list {
		out[i] = d.ToolInfo()
	}
	return out
}
