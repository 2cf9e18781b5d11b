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

package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tau-harness/internal/environment"
	"tau-harness/internal/message"
	"tau-harness/internal/task"
	"tau-harness/internal/tool"
	"tau-harness/pkg/errors"
	"tau-harness/pkg/metrics"
	"tau-harness/pkg/tracing"
)

// Registry session id -> (Environment, Trajectory)。
// sessions 表的结构性操作由 mu 保护；单个 session 内的操作由 Session.mu 串行化，
// 不同 session 之间可并行。
type Registry struct {
	catalog     *environment.Catalog
	allowed     map[string]bool
	maxSessions int
	logger      *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option Registry 选项
type Option func(*Registry)

// WithAllowedDomains 限定可启动的 domain，空表示目录中全部
func WithAllowedDomains(domains ...string) Option {
	return func(r *Registry) {
		if len(domains) == 0 {
			return
		}
		r.allowed = make(map[string]bool, len(domains))
		for _, d := range domains {
			r.allowed[d] = true
		}
	}
}

// WithMaxSessions 同时存活 session 上限，<=0 不限
func WithMaxSessions(n int) Option {
	return func(r *Registry) { r.maxSessions = n }
}

// WithLogger 注入 logger
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// Info session 概要
type Info struct {
	SessionID        string                `json:"session_id"`
	Domain           string                `json:"domain"`
	Policy           string                `json:"policy"`
	Tools            []tool.FunctionSchema `json:"tools"`
	UserTools        []tool.FunctionSchema `json:"user_tools"`
	TrajectoryLength int                   `json:"trajectory_length"`
	CreatedAt        time.Time             `json:"created_at"`
}

// NewRegistry 创建注册表
func NewRegistry(catalog *environment.Catalog, opts ...Option) *Registry {
	r := &Registry{
		catalog:  catalog,
		logger:   slog.Default(),
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Domains 可启动的 domain
func (r *Registry) Domains() []string {
	var out []string
	for _, d := range r.catalog.Domains() {
		if r.allowed == nil || r.allowed[d] {
			out = append(out, d)
		}
	}
	return out
}

// Start 为 domain 创建新 session，返回新分配的 id
func (r *Registry) Start(ctx context.Context, domain string) (string, error) {
	return r.StartWithID(ctx, domain, "")
}

// StartWithID 同 Start；id 非空时使用调用方指定的 id，已存在则报错
func (r *Registry) StartWithID(ctx context.Context, domain, id string) (string, error) {
	if r.allowed != nil && !r.allowed[domain] {
		return "", errors.Wrapf(errors.ErrUnknownDomain, "domain %q is not served", domain)
	}
	factory, err := r.catalog.Factory(domain)
	if err != nil {
		return "", err
	}
	env, err := factory()
	if err != nil {
		return "", errors.Wrapf(err, "construct %s environment", domain)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.maxSessions > 0 && len(r.sessions) >= r.maxSessions {
		return "", errors.Wrapf(errors.ErrInvalidArg, "session limit %d reached", r.maxSessions)
	}
	if id == "" {
		for {
			id = "env-" + uuid.New().String()
			if _, taken := r.sessions[id]; !taken {
				break
			}
		}
	} else if _, taken := r.sessions[id]; taken {
		return "", errors.Wrapf(errors.ErrInvalidArg, "session %s already exists", id)
	}
	r.sessions[id] = newSession(id, domain, factory, env)
	metrics.SessionsActive.Inc()
	metrics.SessionsStarted.WithLabelValues(domain).Inc()
	r.logger.InfoContext(ctx, "session started", "session_id", id, "domain", domain)
	return id, nil
}

// acquire 查找 session 并持有其锁；session 不存在或已停止时返回 ErrUnknownSession
func (r *Registry) acquire(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownSession, "session %s", id)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrUnknownSession, "session %s", id)
	}
	return s, nil
}

// SetState 在该 session 领域的全新实例上应用状态，成功后替换存活实例，
// 并以历史中合法的部分重置 Trajectory。初始化失败时 session 被销毁。
func (r *Registry) SetState(ctx context.Context, id string, state task.InitialState) error {
	s, err := r.acquire(id)
	if err != nil {
		return err
	}
	defer s.mu.Unlock()

	history := message.DecodeHistory(state.MessageHistory)
	if dropped := len(state.MessageHistory) - len(history); dropped > 0 {
		r.logger.WarnContext(ctx, "set_state 丢弃非法历史消息", "session_id", id, "dropped", dropped)
	}
	env, err := s.factory()
	if err != nil {
		return errors.Wrapf(err, "construct %s environment", s.Domain)
	}
	if err := env.SetState(ctx, state.InitializationData, state.InitializationActions, history); err != nil {
		r.logger.ErrorContext(ctx, "set_state 失败，销毁 session", "session_id", id, "error", err)
		s.closed = true
		r.remove(id)
		return err
	}
	s.env = env
	s.trajectory = message.NewTrajectory(history...)
	s.buildEndpoints()
	return nil
}

// ExecuteTool 追加携带调用的请求消息、执行 GetResponse、追加工具消息；
// 两条消息在 session 锁内一次追加，调用方观察不到中间状态
func (r *Registry) ExecuteTool(ctx context.Context, id string, call message.ToolCall) (message.Message, error) {
	s, err := r.acquire(id)
	if err != nil {
		return message.Message{}, err
	}
	defer s.mu.Unlock()

	if call.ID == "" {
		call.ID = "call_" + uuid.New().String()
	}
	call.Requestor = call.Requestor.OrDefault()
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	req, err := message.ForCall(call)
	if err != nil {
		return message.Message{}, err
	}
	ctx, span := tracing.StartToolSpan(ctx, id, call.Name)
	defer span.End()
	resp := s.env.GetResponse(ctx, call)
	s.trajectory.Append(req, resp)
	return resp, nil
}

// Trajectory 返回完整有序历史的副本
func (r *Registry) Trajectory(id string) ([]message.Message, error) {
	s, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return s.trajectory.Messages(), nil
}

// Info session 概要与工具描述
func (r *Registry) Info(id string) (*Info, error) {
	s, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	return &Info{
		SessionID:        s.ID,
		Domain:           s.Domain,
		Policy:           s.env.Policy(),
		Tools:            s.env.ToolSet(message.RequestorAssistant).FunctionSchemas(),
		UserTools:        s.env.ToolSet(message.RequestorUser).FunctionSchemas(),
		TrajectoryLength: s.trajectory.Len(),
		CreatedAt:        s.CreatedAt,
	}, nil
}

// Stop 移除 session 及其分发表；等待进行中的工具执行结束
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		metrics.SessionsActive.Dec()
	}
	r.mu.Unlock()
	if !ok {
		return errors.Wrapf(errors.ErrUnknownSession, "session %s", id)
	}
	s.mu.Lock()
	s.closed = true
	s.endpoints = nil
	s.mu.Unlock()
	r.logger.Info("session stopped", "session_id", id)
	return nil
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		delete(r.sessions, id)
		metrics.SessionsActive.Dec()
	}
}

// Sessions 存活 session id，已排序
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len 存活 session 数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close 停止全部 session
func (r *Registry) Close() {
	for _, id := range r.Sessions() {
		_ = r.Stop(id)
	}
}
