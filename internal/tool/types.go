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

import "strings"

// Type 参数与返回值的 JSON Schema 基本类型
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeArray   Type = "array"
	TypeObject  Type = "object"
	TypeAny     Type = "any"
)

// TypeSpec 归一化后的类型；Items 仅对 array 有意义
type TypeSpec struct {
	Type  Type
	Items Type
}

// ParseType 将声明或文档中的类型名归一化，空串返回零值表示未声明。
// 支持 str/int/float/bool/dict/list[...]/Optional[...] 及 "str, optional" 写法。
func ParseType(s string) TypeSpec {
	s = strings.TrimSpace(s)
	if s == "" {
		return TypeSpec{}
	}
	if i := strings.Index(s, ","); i >= 0 && !strings.Contains(s[:i], "[") {
		s = strings.TrimSpace(s[:i])
	}
	lower := strings.ToLower(s)
	if inner, ok := unwrap(s, "optional"); ok {
		return ParseType(inner)
	}
	for _, prefix := range []string{"list", "array", "sequence", "tuple", "set"} {
		if lower == prefix {
			return TypeSpec{Type: TypeArray}
		}
		if inner, ok := unwrap(s, prefix); ok {
			return TypeSpec{Type: TypeArray, Items: ParseType(inner).Type}
		}
	}
	if strings.HasPrefix(lower, "[]") {
		return TypeSpec{Type: TypeArray, Items: ParseType(s[2:]).Type}
	}
	if strings.HasPrefix(lower, "dict") || strings.HasPrefix(lower, "map") || strings.HasPrefix(lower, "mapping") {
		return TypeSpec{Type: TypeObject}
	}
	switch lower {
	case "str", "string":
		return TypeSpec{Type: TypeString}
	case "int", "integer", "int64", "int32":
		return TypeSpec{Type: TypeInteger}
	case "float", "number", "double", "float64", "decimal":
		return TypeSpec{Type: TypeNumber}
	case "bool", "boolean":
		return TypeSpec{Type: TypeBoolean}
	case "object":
		return TypeSpec{Type: TypeObject}
	case "any", "interface{}":
		return TypeSpec{Type: TypeAny}
	}
	// 首字母大写的标识符视为结构化对象（如 Task、User）
	if isIdent(s) && s[0] >= 'A' && s[0] <= 'Z' {
		return TypeSpec{Type: TypeObject}
	}
	return TypeSpec{Type: TypeAny}
}

// IsZero 是否未声明
func (t TypeSpec) IsZero() bool { return t.Type == "" }

// OrAny 未声明时为 any
func (t TypeSpec) OrAny() TypeSpec {
	if t.IsZero() {
		return TypeSpec{Type: TypeAny}
	}
	return t
}

// unwrap 大小写不敏感地剥去 name[...]，返回保留原大小写的内层
func unwrap(s, name string) (string, bool) {
	if strings.HasPrefix(strings.ToLower(s), name+"[") && strings.HasSuffix(s, "]") {
		return s[len(name)+1 : len(s)-1], true
	}
	return "", false
}

func isIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}
