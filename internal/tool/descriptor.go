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

// Package tool 工具描述构建：由静态声明生成不可变的 Descriptor，
// 同时服务于 LLM function-calling schema 与带校验的网络端点
package tool

import (
	"context"
	"log/slog"

	"tau-harness/pkg/errors"
)

// Func 工具实现；args 已经过校验并合并了预绑定参数
type Func func(ctx context.Context, args map[string]any) (any, error)

// Param 参数声明
type Param struct {
	Name        string
	Type        string // 可空，空时取文档中的类型，再退化为 any
	Required    bool
	Default     any // 非 nil 时为可选参数的默认值
	Description string
}

// Declaration 工具的静态声明
type Declaration struct {
	Name    string
	Doc     string // Google 风格文档块：摘要、详述、Args/Returns/Raises/Examples
	Params  []Param
	Returns string
	Handler Func
}

// ParamSchema 对外可见的参数描述
type ParamSchema struct {
	Name        string   `json:"name"`
	Type        TypeSpec `json:"-"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
}

// HasDefault 是否带默认值
func (p ParamSchema) HasDefault() bool { return p.Default != nil }

// ReturnSchema 返回值描述
type ReturnSchema struct {
	Type        TypeSpec
	Description string
}

// Descriptor 注册时构建一次，此后只读；访问器均返回副本
type Descriptor struct {
	name       string
	short      string
	long       string
	params     []ParamSchema
	index      map[string]int
	predefined []string
	returns    ReturnSchema
	raises     []Raise
	examples   []string
	handler    Func
}

// Build 由声明构建 Descriptor；predefined 为预绑定参数名，不出现在对外 schema 中。
// 文档缺失只记 warning；声明本身不可用时返回 ErrDescriptor。
func Build(decl Declaration, predefined ...string) (*Descriptor, error) {
	if decl.Name == "" {
		return nil, errors.Wrap(errors.ErrDescriptor, "tool name is empty")
	}
	if decl.Handler == nil {
		return nil, errors.Wrapf(errors.ErrDescriptor, "tool %q: handler is nil", decl.Name)
	}
	declared := make(map[string]bool, len(decl.Params))
	for i, p := range decl.Params {
		if p.Name == "" {
			return nil, errors.Wrapf(errors.ErrDescriptor, "tool %q: param %d has no name", decl.Name, i)
		}
		if declared[p.Name] {
			return nil, errors.Wrapf(errors.ErrDescriptor, "tool %q: duplicate param %q", decl.Name, p.Name)
		}
		if p.Required && p.Default != nil {
			return nil, errors.Wrapf(errors.ErrDescriptor, "tool %q: required param %q has a default", decl.Name, p.Name)
		}
		declared[p.Name] = true
	}
	bound := make(map[string]bool, len(predefined))
	for _, name := range predefined {
		if !declared[name] {
			return nil, errors.Wrapf(errors.ErrDescriptor, "tool %q: predefined arg %q is not a param", decl.Name, name)
		}
		bound[name] = true
	}

	doc := ParseDoc(decl.Doc)
	if doc.Short == "" {
		slog.Warn("工具缺少文档描述，使用名称代替", "tool", decl.Name)
	}
	d := &Descriptor{
		name:       decl.Name,
		short:      doc.Short,
		long:       doc.Long,
		index:      make(map[string]int),
		predefined: append([]string(nil), predefined...),
		raises:     doc.Raises,
		examples:   doc.Examples,
		handler:    decl.Handler,
	}
	for _, p := range decl.Params {
		if bound[p.Name] {
			continue
		}
		da, documented := doc.Args[p.Name]
		typ := ParseType(p.Type)
		if typ.IsZero() {
			typ = ParseType(da.Type)
		}
		desc := p.Description
		if desc == "" {
			desc = da.Description
		}
		if !documented && p.Description == "" {
			slog.Warn("工具参数缺少文档", "tool", decl.Name, "param", p.Name)
		}
		d.index[p.Name] = len(d.params)
		d.params = append(d.params, ParamSchema{
			Name:        p.Name,
			Type:        typ.OrAny(),
			Required:    p.Required,
			Default:     p.Default,
			Description: desc,
		})
	}
	for name := range doc.Args {
		if !declared[name] {
			slog.Warn("文档中的参数未声明", "tool", decl.Name, "param", name)
		}
	}
	ret := ParseType(decl.Returns)
	if ret.IsZero() {
		ret = ParseType(doc.Returns.Type)
	}
	d.returns = ReturnSchema{Type: ret.OrAny(), Description: doc.Returns.Description}
	return d, nil
}

// Name 工具名
func (d *Descriptor) Name() string { return d.name }

// ShortDescription 摘要
func (d *Descriptor) ShortDescription() string { return d.short }

// LongDescription 详述
func (d *Descriptor) LongDescription() string { return d.long }

// Description 供 LLM 使用的描述；无文档时为工具名
func (d *Descriptor) Description() string {
	switch {
	case d.short == "":
		return d.name
	case d.long == "":
		return d.short
	default:
		return d.short + "\n\n" + d.long
	}
}

// Params 对外可见参数，按声明顺序
func (d *Descriptor) Params() []ParamSchema {
	out := make([]ParamSchema, len(d.params))
	copy(out, d.params)
	return out
}

// Param 按名称取参数
func (d *Descriptor) Param(name string) (ParamSchema, bool) {
	i, ok := d.index[name]
	if !ok {
		return ParamSchema{}, false
	}
	return d.params[i], true
}

// ParamNames 对外可见参数名
func (d *Descriptor) ParamNames() []string {
	out := make([]string, len(d.params))
	for i, p := range d.params {
		out[i] = p.Name
	}
	return out
}

// Predefined 预绑定参数名
func (d *Descriptor) Predefined() []string {
	return append([]string(nil), d.predefined...)
}

// Returns 返回值描述
func (d *Descriptor) Returns() ReturnSchema { return d.returns }

// Raises 文档声明的错误
func (d *Descriptor) Raises() []Raise { return append([]Raise(nil), d.raises...) }

// Examples 用法示例
func (d *Descriptor) Examples() []string { return append([]string(nil), d.examples...) }

// Call 直接调用实现，不做校验；由 Toolkit 在校验与绑定之后调用
func (d *Descriptor) Call(ctx context.Context, args map[string]any) (any, error) {
	return d.handler(ctx, args)
}
