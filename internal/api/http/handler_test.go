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

package http

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tau-harness/internal/api/http/middleware"
	"tau-harness/internal/domain/mock"
	"tau-harness/internal/environment"
	"tau-harness/internal/runtime/session"
)

func newTestEngine(t *testing.T, opts ...middleware.Option) (*route.Engine, *session.Registry) {
	t.Helper()
	c := environment.NewCatalog()
	require.NoError(t, mock.Register(c))
	reg := session.NewRegistry(c)
	h := NewRouter(NewHandler(reg), middleware.NewMiddleware(opts...)).Build("127.0.0.1:0")
	return h.Engine, reg
}

type response struct {
	code int
	body []byte
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func do(e *route.Engine, method, path, body string) response {
	var b *ut.Body
	if body != "" {
		b = &ut.Body{Body: bytes.NewBufferString(body), Len: len(body)}
	}
	w := ut.PerformRequest(e, method, path, b, ut.Header{Key: "Content-Type", Value: "application/json"})
	res := w.Result()
	return response{code: res.StatusCode(), body: res.Body()}
}

func startSession(t *testing.T, e *route.Engine) string {
	t.Helper()
	r := do(e, "POST", "/api/sessions", `{"domain":"mock"}`)
	require.Equal(t, 201, r.code, string(r.body))
	var out StartResponse
	r.decode(t, &out)
	require.NotEmpty(t, out.SessionID)
	return out.SessionID
}

func TestHealthAndStatus(t *testing.T) {
	e, _ := newTestEngine(t)
	r := do(e, "GET", "/api/health", "")
	assert.Equal(t, 200, r.code)

	startSession(t, e)
	r = do(e, "GET", "/api/status", "")
	require.Equal(t, 200, r.code)
	var st map[string]any
	r.decode(t, &st)
	assert.EqualValues(t, 1, st["active_sessions"])
	assert.Equal(t, []any{"mock"}, st["domains"])

	r = do(e, "GET", "/metrics", "")
	assert.Equal(t, 200, r.code)
	assert.Contains(t, string(r.body), "tau_sessions_active")
}

func TestStartSession_Errors(t *testing.T) {
	e, _ := newTestEngine(t)
	tests := []struct {
		name string
		body string
		code int
		kind string
	}{
		{"unknown domain", `{"domain":"airline"}`, 404, "unknown_domain"},
		{"missing domain", `{}`, 400, "invalid_argument"},
		{"malformed", `{"domain":`, 400, "invalid_argument"},
		{"wrong type", `{"domain":5}`, 400, "invalid_argument"},
		{"empty body", ``, 400, "invalid_argument"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := do(e, "POST", "/api/sessions", tt.body)
			assert.Equal(t, tt.code, r.code)
			var er ErrorResponse
			r.decode(t, &er)
			assert.Equal(t, tt.kind, er.Error)
			assert.NotEmpty(t, er.Message)
		})
	}

	r := do(e, "POST", "/api/sessions", `{"domain":"mock","session_id":"mine"}`)
	require.Equal(t, 201, r.code)
	r = do(e, "POST", "/api/sessions", `{"domain":"mock","session_id":"mine"}`)
	assert.Equal(t, 400, r.code)
}

func TestMockScenario(t *testing.T) {
	e, _ := newTestEngine(t)
	id := startSession(t, e)

	r := do(e, "POST", "/api/sessions/"+id+"/state", `{}`)
	require.Equal(t, 200, r.code, string(r.body))

	r = do(e, "POST", "/api/sessions/"+id+"/tools", `{"id":"c1","name":"get_users","arguments":{},"requestor":"assistant"}`)
	require.Equal(t, 200, r.code, string(r.body))
	var msg map[string]any
	r.decode(t, &msg)
	assert.Equal(t, "tool", msg["role"])
	assert.Equal(t, "c1", msg["id"])
	assert.Nil(t, msg["error"], "error flag is omitted when false")

	r = do(e, "GET", "/api/sessions/"+id+"/trajectory", "")
	require.Equal(t, 200, r.code)
	var traj struct {
		SessionID string           `json:"session_id"`
		Messages  []map[string]any `json:"messages"`
	}
	r.decode(t, &traj)
	assert.Equal(t, id, traj.SessionID)
	require.Len(t, traj.Messages, 2)
	assert.Equal(t, "assistant", traj.Messages[0]["role"])

	r = do(e, "GET", "/api/sessions/"+id+"/info", "")
	require.Equal(t, 200, r.code)
	var info session.Info
	r.decode(t, &info)
	assert.Equal(t, 2, info.TrajectoryLength)
	assert.Equal(t, "mock", info.Domain)

	r = do(e, "DELETE", "/api/sessions/"+id, "")
	assert.Equal(t, 200, r.code)
	r = do(e, "GET", "/api/sessions/"+id+"/trajectory", "")
	assert.Equal(t, 404, r.code)
}

func TestSetState_Conflict(t *testing.T) {
	e, reg := newTestEngine(t)
	id := startSession(t, e)
	body := `{"initialization_actions":[{"env_type":"assistant","func_name":"set_user_name","arguments":{"user_id":"nobody","name":"x"}}]}`
	r := do(e, "POST", "/api/sessions/"+id+"/state", body)
	assert.Equal(t, 409, r.code)
	var er ErrorResponse
	r.decode(t, &er)
	assert.Equal(t, "initialization_error", er.Error)
	assert.Equal(t, 0, reg.Len())
}

func TestUnknownSession(t *testing.T) {
	e, _ := newTestEngine(t)
	paths := []struct{ method, path, body string }{
		{"POST", "/api/sessions/ghost/state", `{}`},
		{"POST", "/api/sessions/ghost/tools", `{"id":"1","name":"get_users"}`},
		{"GET", "/api/sessions/ghost/trajectory", ""},
		{"GET", "/api/sessions/ghost/info", ""},
		{"DELETE", "/api/sessions/ghost", ""},
		{"GET", "/api/sessions/ghost/endpoints", ""},
		{"POST", "/api/sessions/ghost/endpoints/tools/get_users", `{}`},
	}
	for _, p := range paths {
		r := do(e, p.method, p.path, p.body)
		assert.Equal(t, 404, r.code, p.path)
		var er ErrorResponse
		r.decode(t, &er)
		assert.Equal(t, "unknown_session", er.Error, p.path)
	}
}

func TestPerToolEndpoints(t *testing.T) {
	e, reg := newTestEngine(t)
	id := startSession(t, e)

	r := do(e, "GET", "/api/sessions/"+id+"/endpoints", "")
	require.Equal(t, 200, r.code)
	var listing struct {
		Endpoints []EndpointEntry `json:"endpoints"`
	}
	r.decode(t, &listing)
	require.NotEmpty(t, listing.Endpoints)
	last := listing.Endpoints[len(listing.Endpoints)-1]
	assert.Equal(t, "/api/sessions/"+id+"/endpoints/user_tools/check_status", last.Path)

	base := "/api/sessions/" + id + "/endpoints"
	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"ok", base + "/tools/get_users", "", 200},
		{"user tool", base + "/user_tools/check_status", `{"task_id":"task_1"}`, 200},
		{"unknown tool", base + "/tools/nope", `{}`, 404},
		{"wrong side", base + "/user_tools/get_users", `{}`, 404},
		{"missing arg", base + "/tools/update_task_status", `{"task_id":"task_1"}`, 422},
		{"not an object", base + "/tools/update_task_status", `"x"`, 422},
		{"execution failure", base + "/tools/update_task_status", `{"task_id":"task_9","status":"completed"}`, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := do(e, "POST", tt.path, tt.body)
			assert.Equal(t, tt.code, r.code, string(r.body))
		})
	}

	r = do(e, "POST", base+"/user_tools/check_status", `{"task_id":"task_1"}`)
	assert.Equal(t, `"pending"`, string(r.body))

	traj, err := reg.Trajectory(id)
	require.NoError(t, err)
	assert.Empty(t, traj)
}

func TestRateLimit(t *testing.T) {
	e, _ := newTestEngine(t, middleware.WithRateLimit(0.001, 1))
	r := do(e, "POST", "/api/sessions", `{"domain":"mock"}`)
	assert.Equal(t, 201, r.code)
	r = do(e, "POST", "/api/sessions", `{"domain":"mock"}`)
	assert.Equal(t, 429, r.code)

	r = do(e, "GET", "/api/health", "")
	assert.Equal(t, 200, r.code, "health is not rate limited")
}
