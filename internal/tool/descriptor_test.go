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
	"context"
	"encoding/json"
	"sort"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/pkg/errors"
)

const createTaskDoc = `Create a new task for a user.

The task starts in the pending state.

Args:
    user_id (str): The ID of the user who owns the task.
    title (str): Task title.
    description (str, optional): Longer text,
        may span lines.
    db: bound database.

Returns:
    Task: the created task.

Raises:
    ValueError: If the user does not exist.

Examples:
    create_task(user_id="user_1", title="buy milk")
`

func noop(context.Context, map[string]any) (any, error) { return nil, nil }

func createTaskDecl() Declaration {
	return Declaration{
		Name: "create_task",
		Doc:  createTaskDoc,
		Params: []Param{
			{Name: "db", Required: true},
			{Name: "user_id", Required: true},
			{Name: "title", Required: true},
			{Name: "description", Default: ""},
		},
		Handler: noop,
	}
}

func TestBuild_FromDoc(t *testing.T) {
	d, err := Build(createTaskDecl(), "db")
	require.NoError(t, err)

	assert.Equal(t, "create_task", d.Name())
	assert.Equal(t, "Create a new task for a user.", d.ShortDescription())
	assert.Equal(t, "The task starts in the pending state.", d.LongDescription())
	assert.Equal(t, []string{"user_id", "title", "description"}, d.ParamNames())
	assert.Equal(t, []string{"db"}, d.Predefined())

	desc, ok := d.Param("description")
	require.True(t, ok)
	assert.Equal(t, TypeString, desc.Type.Type)
	assert.Equal(t, "Longer text, may span lines.", desc.Description)
	assert.False(t, desc.Required)
	assert.True(t, desc.HasDefault())

	_, ok = d.Param("db")
	assert.False(t, ok)

	assert.Equal(t, TypeObject, d.Returns().Type.Type)
	assert.Equal(t, "the created task.", d.Returns().Description)
	assert.Equal(t, []Raise{{Name: "ValueError", Description: "If the user does not exist."}}, d.Raises())
	assert.Equal(t, []string{`create_task(user_id="user_1", title="buy milk")`}, d.Examples())
}

func TestBuild_SchemaKeysMatchVisibleParams(t *testing.T) {
	tests := []struct {
		name       string
		params     []Param
		predefined []string
		want       []string
	}{
		{"none", nil, nil, []string{}},
		{"all visible", []Param{{Name: "a"}, {Name: "b"}}, nil, []string{"a", "b"}},
		{"bound excluded", []Param{{Name: "db"}, {Name: "a"}, {Name: "ctx"}}, []string{"db", "ctx"}, []string{"a"}},
		{"all bound", []Param{{Name: "db"}}, []string{"db"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Build(Declaration{Name: "t", Params: tt.params, Handler: noop}, tt.predefined...)
			require.NoError(t, err)
			keys := make([]string, 0)
			for k := range d.ParametersSchema().Properties {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			want := append([]string{}, tt.want...)
			sort.Strings(want)
			assert.Equal(t, want, keys)
		})
	}
}

func TestBuild_TypeFallback(t *testing.T) {
	d, err := Build(Declaration{
		Name: "t",
		Doc:  "Doc.\n\nArgs:\n    n (int): count\n    tags (List[str]): tags\n",
		Params: []Param{
			{Name: "explicit", Type: "bool"},
			{Name: "n"},
			{Name: "tags"},
			{Name: "undocumented"},
		},
		Returns: "",
		Handler: noop,
	})
	require.NoError(t, err)

	p, _ := d.Param("explicit")
	assert.Equal(t, TypeBoolean, p.Type.Type)
	p, _ = d.Param("n")
	assert.Equal(t, TypeInteger, p.Type.Type)
	p, _ = d.Param("tags")
	assert.Equal(t, TypeSpec{Type: TypeArray, Items: TypeString}, p.Type)
	p, _ = d.Param("undocumented")
	assert.Equal(t, TypeAny, p.Type.Type)
	assert.Equal(t, TypeAny, d.Returns().Type.Type)
}

func TestBuild_MissingDocTolerated(t *testing.T) {
	d, err := Build(Declaration{Name: "bare", Params: []Param{{Name: "x"}}, Handler: noop})
	require.NoError(t, err)
	assert.Equal(t, "bare", d.Description())
	assert.Equal(t, []string{"x"}, d.ParamNames())
}

func TestBuild_DescriptorErrors(t *testing.T) {
	tests := []struct {
		name       string
		decl       Declaration
		predefined []string
	}{
		{"nil handler", Declaration{Name: "t"}, nil},
		{"empty name", Declaration{Handler: noop}, nil},
		{"empty param", Declaration{Name: "t", Params: []Param{{Name: ""}}, Handler: noop}, nil},
		{"duplicate param", Declaration{Name: "t", Params: []Param{{Name: "a"}, {Name: "a"}}, Handler: noop}, nil},
		{"required with default", Declaration{Name: "t", Params: []Param{{Name: "a", Required: true, Default: 1}}, Handler: noop}, nil},
		{"unknown predefined", Declaration{Name: "t", Handler: noop}, []string{"db"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.decl, tt.predefined...)
			assert.ErrorIs(t, err, errors.ErrDescriptor)
		})
	}
}

func TestDescriptor_Validate(t *testing.T) {
	d, err := Build(Declaration{
		Name: "t",
		Params: []Param{
			{Name: "s", Type: "str", Required: true},
			{Name: "n", Type: "int"},
			{Name: "f", Type: "float", Default: 1.5},
			{Name: "tags", Type: "list[str]"},
			{Name: "meta", Type: "dict"},
		},
		Handler: noop,
	})
	require.NoError(t, err)

	got, err := d.Validate(map[string]any{"s": "x", "n": float64(3), "tags": []any{"a"}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"s": "x", "n": 3, "f": 1.5, "tags": []any{"a"}}, got)

	bad := []map[string]any{
		{},
		{"s": 1},
		{"s": "x", "n": 2.5},
		{"s": "x", "tags": []any{1}},
		{"s": "x", "meta": "nope"},
		{"s": "x", "extra": true},
	}
	for _, args := range bad {
		_, err := d.Validate(args)
		assert.ErrorIs(t, err, errors.ErrInvalidArguments, "args %v", args)
	}
}

func TestDescriptor_FunctionSchema(t *testing.T) {
	d, err := Build(createTaskDecl(), "db")
	require.NoError(t, err)

	b, err := json.Marshal(d.FunctionSchema())
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))

	assert.Equal(t, "function", got["type"])
	fn := got["function"].(map[string]any)
	assert.Equal(t, "create_task", fn["name"])
	params := fn["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.ElementsMatch(t, []any{"user_id", "title"}, params["required"])
	props := params["properties"].(map[string]any)
	assert.Len(t, props, 3)
	assert.Equal(t, "string", props["user_id"].(map[string]any)["type"])
}

func TestDescriptor_ToolInfo(t *testing.T) {
	d, err := Build(createTaskDecl(), "db")
	require.NoError(t, err)
	info := d.ToolInfo()
	assert.Equal(t, "create_task", info.Name)
	assert.Contains(t, info.Desc, "Create a new task")
	require.NotNil(t, info.ParamsOneOf)

	empty, err := Build(Declaration{Name: "get_users", Doc: "List users.", Handler: noop})
	require.NoError(t, err)
	assert.Equal(t, "List users.", empty.ToolInfo().Desc)
	assert.Equal(t, schema.Integer, einoType(TypeInteger))
	assert.Equal(t, schema.Object, einoType(TypeAny))
}

func TestFunctionSchema_ToolInfo(t *testing.T) {
	d, err := Build(createTaskDecl(), "db")
	require.NoError(t, err)
	b, err := json.Marshal(d.FunctionSchema())
	require.NoError(t, err)
	var wire FunctionSchema
	require.NoError(t, json.Unmarshal(b, &wire))

	info := wire.ToolInfo()
	assert.Equal(t, d.ToolInfo().Name, info.Name)
	assert.Equal(t, d.ToolInfo().Desc, info.Desc)
	require.NotNil(t, info.ParamsOneOf)
	assert.Len(t, ToolInfos([]*Descriptor{d, d}), 2)
}

func TestParseType(t *testing.T) {
	tests := map[string]TypeSpec{
		"":               {},
		"str":            {Type: TypeString},
		"Optional[int]":  {Type: TypeInteger},
		"str, optional":  {Type: TypeString},
		"float":          {Type: TypeNumber},
		"bool":           {Type: TypeBoolean},
		"dict[str, Any]": {Type: TypeObject},
		"list":           {Type: TypeArray},
		"List[Task]":     {Type: TypeArray, Items: TypeObject},
		"[]string":       {Type: TypeArray, Items: TypeString},
		"User":           {Type: TypeObject},
		"Literal['a']":   {Type: TypeAny},
		"any":            {Type: TypeAny},
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseType(in))
		})
	}
}
