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

package tool

import (
	"github.com/cloudwego/eino/schema"
)

// Schema 参数的 JSON Schema（object）
type Schema struct {
	Type                 string                    `json:"type"`
	Description          string                    `json:"description,omitempty"`
	Properties           map[string]SchemaProperty `json:"properties"`
	Required             []string                  `json:"required,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties"`
}

// SchemaProperty 表示 Schema 中单个属性的描述；any 类型不输出 type
type SchemaProperty struct {
	Type        string          `json:"type,omitempty"`
	Description string          `json:"description,omitempty"`
	Default     any             `json:"default,omitempty"`
	Items       *SchemaProperty `json:"items,omitempty"`
}

// FunctionSchema OpenAI 风格的 function-calling 工具描述
type FunctionSchema struct {
	Type     string       `json:"type"`
	Function FunctionSpec `json:"function"`
}

// FunctionSpec FunctionSchema.function
type FunctionSpec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

// ParametersSchema 对外参数的 JSON Schema，键与可见参数名一一对应
func (d *Descriptor) ParametersSchema() Schema {
	s := Schema{Type: "object", Properties: make(map[string]SchemaProperty, len(d.params))}
	for _, p := range d.params {
		prop := property(p.Type)
		prop.Description = p.Description
		prop.Default = p.Default
		s.Properties[p.Name] = prop
		if p.Required {
			s.Required = append(s.Required, p.Name)
		}
	}
	return s
}

func property(t TypeSpec) SchemaProperty {
	var prop SchemaProperty
	if t.Type != TypeAny {
		prop.Type = string(t.Type)
	}
	if t.Type == TypeArray && t.Items != "" && t.Items != TypeAny {
		prop.Items = &SchemaProperty{Type: string(t.Items)}
	}
	return prop
}

// FunctionSchema 生成 OpenAI function-calling schema
func (d *Descriptor) FunctionSchema() FunctionSchema {
	return FunctionSchema{
		Type: "function",
		Function: FunctionSpec{
			Name:        d.name,
			Description: d.Description(),
			Parameters:  d.ParametersSchema(),
		},
	}
}

// ToolInfo 生成 eino ToolInfo，供 ToolCallingChatModel 绑定
func (d *Descriptor) ToolInfo() *schema.ToolInfo {
	params := make(map[string]*schema.ParameterInfo, len(d.params))
	for _, p := range d.params {
		info := &schema.ParameterInfo{
			Type:     einoType(p.Type.Type),
			Desc:     p.Description,
			Required: p.Required,
		}
		if p.Type.Type == TypeArray && p.Type.Items != "" && p.Type.Items != TypeAny {
			info.ElemInfo = &schema.ParameterInfo{Type: einoType(p.Type.Items)}
		}
		params[p.Name] = info
	}
	return &schema.ToolInfo{
		Name:        d.name,
		Desc:        d.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

func einoType(t Type) schema.DataType {
	switch t {
	case TypeString:
		return schema.String
	case TypeInteger:
		return schema.Integer
	case TypeNumber:
		return schema.Number
	case TypeBoolean:
		return schema.Boolean
	case TypeArray:
		return schema.Array
	default:
		return schema.Object
	}
}

// ToolInfo 由 wire 上的 schema 还原 eino ToolInfo，用于远端 registry 返回的工具列表
func (f FunctionSchema) ToolInfo() *schema.ToolInfo {
	required := make(map[string]bool, len(f.Function.Parameters.Required))
	for _, r := range f.Function.Parameters.Required {
		required[r] = true
	}
	params := make(map[string]*schema.ParameterInfo, len(f.Function.Parameters.Properties))
	for name, p := range f.Function.Parameters.Properties {
		info := &schema.ParameterInfo{
			Type:     einoType(Type(p.Type)),
			Desc:     p.Description,
			Required: required[name],
		}
		if p.Items != nil {
			info.ElemInfo = &schema.ParameterInfo{Type: einoType(Type(p.Items.Type))}
		}
		params[name] = info
	}
	return &schema.ToolInfo{
		Name:        f.Function.Name,
		Desc:        f.Function.Description,
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}
}

// ToolInfos 批量转换
func ToolInfos(descs []*Descriptor) []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.ToolInfo())
	}
	return out
}
