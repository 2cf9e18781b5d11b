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
	"math"
	"reflect"
	"sort"
	"strings"

	"tau-harness/pkg/errors"
)

// Validate 按参数 schema 校验调用参数，返回补齐默认值后的新 map。
// integer 参数接受整数值的 float（JSON 解码结果）并转为 int。
func (d *Descriptor) Validate(args map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(d.params))
	var problems []string
	for _, p := range d.params {
		v, present := args[p.Name]
		if !present || v == nil {
			switch {
			case p.Required:
				problems = append(problems, fmt.Sprintf("missing required argument %q", p.Name))
			case p.HasDefault():
				out[p.Name] = p.Default
			}
			continue
		}
		cv, err := coerce(v, p.Type)
		if err != nil {
			problems = append(problems, fmt.Sprintf("argument %q: %v", p.Name, err))
			continue
		}
		out[p.Name] = cv
	}
	var unknown []string
	for k := range args {
		if _, ok := d.index[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		problems = append(problems, fmt.Sprintf("unexpected argument %q", k))
	}
	if len(problems) > 0 {
		return nil, errors.Wrapf(errors.ErrInvalidArguments, "%s: %s", d.name, strings.Join(problems, "; "))
	}
	return out, nil
}

func coerce(v any, t TypeSpec) (any, error) {
	switch t.Type {
	case TypeAny, "":
		return v, nil
	case TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case TypeBoolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case TypeInteger:
		if i, ok := asInt(v); ok {
			return i, nil
		}
	case TypeNumber:
		if f, ok := asFloat(v); ok {
			return f, nil
		}
	case TypeObject:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Map || rv.Kind() == reflect.Struct ||
			(rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct) {
			return v, nil
		}
	case TypeArray:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			break
		}
		if t.Items == "" || t.Items == TypeAny {
			return v, nil
		}
		items := make([]any, rv.Len())
		for i := range items {
			cv, err := coerce(rv.Index(i).Interface(), TypeSpec{Type: t.Items})
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = cv
		}
		return items, nil
	}
	return nil, fmt.Errorf("expected %s, got %s", t.Type, typeName(v))
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case float32:
		if float64(n) == math.Trunc(float64(n)) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
