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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func TestNewResult_Kinds(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		kind     ResultKind
		forAgent map[string]any
		content  string
	}{
		{
			name:     "struct",
			in:       sampleTask{TaskID: "task_1", Status: "pending"},
			kind:     Structured,
			forAgent: map[string]any{"task_id": "task_1", "status": "pending"},
			content:  `{"status":"pending","task_id":"task_1"}`,
		},
		{
			name:     "struct pointer",
			in:       &sampleTask{TaskID: "task_2"},
			kind:     Structured,
			forAgent: map[string]any{"task_id": "task_2", "status": ""},
			content:  `{"status":"","task_id":"task_2"}`,
		},
		{
			name:     "mapping",
			in:       map[string]any{"ok": true},
			kind:     Mapping,
			forAgent: map[string]any{"ok": true},
			content:  `{"ok":true}`,
		},
		{
			name:     "string scalar",
			in:       "Transfer successful",
			kind:     Scalar,
			forAgent: map[string]any{"result": "Transfer successful"},
			content:  "Transfer successful",
		},
		{
			name:     "number scalar",
			in:       3,
			kind:     Scalar,
			forAgent: map[string]any{"result": float64(3)},
			content:  "3",
		},
		{
			name:     "list scalar",
			in:       []sampleTask{{TaskID: "a"}},
			kind:     Scalar,
			forAgent: map[string]any{"result": []any{map[string]any{"task_id": "a", "status": ""}}},
			content:  `[{"task_id":"a","status":""}]`,
		},
		{
			name:     "nil",
			in:       nil,
			kind:     Scalar,
			forAgent: map[string]any{"result": nil},
			content:  "null",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResult(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.forAgent, r.ForAgent())
			if _, ok := tt.in.(string); ok {
				assert.Equal(t, tt.content, r.Content())
			} else {
				assert.JSONEq(t, tt.content, r.Content())
			}
		})
	}
}

func TestNewResult_NotJSON(t *testing.T) {
	_, err := NewResult(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestResult_ForAgentIsCopy(t *testing.T) {
	r, err := NewResult(map[string]any{"a": 1})
	require.NoError(t, err)
	m := r.ForAgent()
	m["a"] = "changed"
	assert.Equal(t, float64(1), r.ForAgent()["a"])
}

func TestResultFromContent(t *testing.T) {
	r := ResultFromContent(`{"task_id":"task_1"}`)
	assert.Equal(t, Mapping, r.Kind)
	assert.Equal(t, "task_1", r.ForAgent()["task_id"])

	r = ResultFromContent(`[1,2]`)
	assert.Equal(t, Scalar, r.Kind)
	assert.Equal(t, []any{float64(1), float64(2)}, r.Raw())

	r = ResultFromContent("Error: boom")
	assert.Equal(t, Scalar, r.Kind)
	assert.Equal(t, "Error: boom", r.Raw())
}

func TestToJSONString(t *testing.T) {
	assert.Equal(t, "plain", ToJSONString("plain"))
	assert.Equal(t, `{"a":1}`, ToJSONString(map[string]int{"a": 1}))
	assert.Equal(t, "true", ToJSONString(true))
}
