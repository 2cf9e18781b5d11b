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

// Package session Environment 实例注册表：按 session id 托管多个相互隔离、有状态的
// Environment，并为每个 session 维护有序 Trajectory
package session

import (
	"sync"
	"time"

	"tau-harness/internal/environment"
	"tau-harness/internal/message"
)

// Session 一个存活的 Environment 实例及其 Trajectory
type Session struct {
	ID        string
	Domain    string
	CreatedAt time.Time

	mu         sync.Mutex // 串行化同一 session 上的工具执行与 set_state
	closed     bool
	factory    environment.Factory
	env        *environment.Environment
	trajectory *message.Trajectory
	endpoints  map[message.Requestor]map[string]*Endpoint
}

func newSession(id, domain string, f environment.Factory, env *environment.Environment) *Session {
	s := &Session{
		ID:         id,
		Domain:     domain,
		CreatedAt:  time.Now(),
		factory:    f,
		env:        env,
		trajectory: message.NewTrajectory(),
	}
	s.buildEndpoints()
	return s
}

// buildEndpoints 由当前 Environment 的工具描述生成 per-session 分发表；调用方持有 mu 或 session 尚未发布
func (s *Session) buildEndpoints() {
	s.endpoints = make(map[message.Requestor]map[string]*Endpoint, 2)
	for _, r := range []message.Requestor{message.RequestorAssistant, message.RequestorUser} {
		table := make(map[string]*Endpoint)
		for _, d := range s.env.ToolSet(r).List() {
			table[d.Name()] = &Endpoint{session: s, requestor: r, desc: d}
		}
		s.endpoints[r] = table
	}
}
