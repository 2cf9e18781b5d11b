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
	"encoding/json"
	"fmt"
	"reflect"
)

// ResultKind 工具结果的形态
type ResultKind int

const (
	// Scalar 基本类型、列表等非对象值
	Scalar ResultKind = iota
	// Mapping 普通键值对象
	Mapping
	// Structured 结构体，以其 JSON 对象形态保存
	Structured
)

func (k ResultKind) String() string {
	switch k {
	case Structured:
		return "structured"
	case Mapping:
		return "mapping"
	default:
		return "scalar"
	}
}

// Result 在 Environment 边界一次性生成的带标签工具结果
type Result struct {
	Kind  ResultKind
	value any
}

// NewResult 按原始返回值的形态打标签，并归一化为 JSON 可表示的值
func NewResult(v any) (Result, error) {
	kind := Scalar
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		kind = Structured
	case reflect.Map:
		kind = Mapping
	}
	norm, err := normalize(v)
	if err != nil {
		return Result{}, fmt.Errorf("tool result is not JSON representable: %w", err)
	}
	if kind != Scalar {
		if _, ok := norm.(map[string]any); !ok {
			// 例如实现了 MarshalJSON 的结构体序列化为非对象
			kind = Scalar
		}
	}
	return Result{Kind: kind, value: norm}, nil
}

// ScalarResult 直接构造 Scalar 结果（如错误文本）
func ScalarResult(v any) Result {
	return Result{Kind: Scalar, value: v}
}

// ResultFromContent 由序列化后的工具消息内容重建结果：JSON 对象为 Mapping，
// 其他合法 JSON 为 Scalar，非 JSON 文本为字符串 Scalar
func ResultFromContent(content string) Result {
	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		return Result{Kind: Scalar, value: content}
	}
	if _, ok := v.(map[string]any); ok {
		return Result{Kind: Mapping, value: v}
	}
	return Result{Kind: Scalar, value: v}
}

// Raw 原始值，写入评测 Trajectory
func (r Result) Raw() any { return r.value }

// Content 工具消息内容
func (r Result) Content() string { return ToJSONString(r.value) }

// ForAgent 转为 agent 调用约定所需的对象形态；Scalar 包装为 {"result": v}
func (r Result) ForAgent() map[string]any {
	if m, ok := r.value.(map[string]any); ok && r.Kind != Scalar {
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out
	}
	return map[string]any{"result": r.value}
}

// ToJSONString 字符串原样返回，其余按 JSON 编码
func ToJSONString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}
