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

// Package http Environment 实例注册表的 HTTP 接口（hertz）
package http

import (
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"tau-harness/internal/message"
	"tau-harness/internal/runtime/session"
	"tau-harness/internal/task"
	"tau-harness/pkg/errors"
	"tau-harness/pkg/metrics"
)

// Handler HTTP 处理器
type Handler struct {
	registry *session.Registry
	started  time.Time
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(registry *session.Registry) *Handler {
	return &Handler{registry: registry, started: time.Now()}
}

// StartRequest POST /api/sessions 请求体
type StartRequest struct {
	Domain    string `json:"domain"`
	SessionID string `json:"session_id,omitempty"`
}

// StartResponse POST /api/sessions 响应体
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// TrajectoryResponse GET /api/sessions/:id/trajectory 响应体
type TrajectoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []message.Message `json:"messages"`
}

// ErrorResponse 错误响应体；Error 为 errors.Kind
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "tau-registry",
	})
}

// Status 注册表状态
func (h *Handler) Status(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]any{
		"domains":         h.registry.Domains(),
		"active_sessions": h.registry.Len(),
		"sessions":        h.registry.Sessions(),
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
	})
}

// Metrics Prometheus 文本格式
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		writeError(ctx, c, consts.StatusInternalServerError, err)
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// StartSession 启动 session
// POST /api/sessions
func (h *Handler) StartSession(ctx context.Context, c *app.RequestContext) {
	var req StartRequest
	if !bindJSON(ctx, c, &req) {
		return
	}
	if req.Domain == "" {
		writeError(ctx, c, consts.StatusBadRequest, errors.Wrap(errors.ErrInvalidArg, "domain is required"))
		return
	}
	id, err := h.registry.StartWithID(ctx, req.Domain, req.SessionID)
	if err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	c.JSON(consts.StatusCreated, StartResponse{SessionID: id})
}

// SetState 初始化 session 状态
// POST /api/sessions/:id/state
func (h *Handler) SetState(ctx context.Context, c *app.RequestContext) {
	var state task.InitialState
	if !bindJSON(ctx, c, &state) {
		return
	}
	id := c.Param("id")
	if err := h.registry.SetState(ctx, id, state); err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"session_id": id, "status": "ok"})
}

// ExecuteTool 执行一个工具调用并返回工具消息
// POST /api/sessions/:id/tools
func (h *Handler) ExecuteTool(ctx context.Context, c *app.RequestContext) {
	var call message.ToolCall
	if !bindJSON(ctx, c, &call) {
		return
	}
	resp, err := h.registry.ExecuteTool(ctx, c.Param("id"), call)
	if err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	c.JSON(consts.StatusOK, resp)
}

// Trajectory GET /api/sessions/:id/trajectory
func (h *Handler) Trajectory(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	msgs, err := h.registry.Trajectory(id)
	if err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	c.JSON(consts.StatusOK, TrajectoryResponse{SessionID: id, Messages: msgs})
}

// Info GET /api/sessions/:id/info
func (h *Handler) Info(ctx context.Context, c *app.RequestContext) {
	info, err := h.registry.Info(c.Param("id"))
	if err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	c.JSON(consts.StatusOK, info)
}

// StopSession DELETE /api/sessions/:id
func (h *Handler) StopSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if err := h.registry.Stop(id); err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	c.JSON(consts.StatusOK, map[string]string{"session_id": id, "status": "stopped"})
}

// bindJSON 空 body 视为 {}，其余交给 hertz binder
func bindJSON(ctx context.Context, c *app.RequestContext, v any) bool {
	if len(bytes.TrimSpace(c.Request.Body())) == 0 {
		return true
	}
	if err := c.BindJSON(v); err != nil {
		writeError(ctx, c, consts.StatusBadRequest, errors.Wrapf(errors.ErrInvalidArg, "malformed request body: %v", err))
		return false
	}
	return true
}

// statusOf 注册表错误到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, errors.ErrUnknownSession),
		errors.Is(err, errors.ErrUnknownDomain),
		errors.Is(err, errors.ErrUnknownTool),
		errors.Is(err, errors.ErrNotFound):
		return consts.StatusNotFound
	case errors.Is(err, errors.ErrInitialization):
		return consts.StatusConflict
	case errors.Is(err, errors.ErrInvalidArguments):
		return consts.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrInvalidArg):
		return consts.StatusBadRequest
	default:
		return consts.StatusInternalServerError
	}
}

func writeError(ctx context.Context, c *app.RequestContext, status int, err error) {
	if status >= consts.StatusInternalServerError {
		hlog.CtxErrorf(ctx, "%s %s: %v", c.Method(), c.Path(), err)
	}
	c.JSON(status, ErrorResponse{Error: errors.Kind(err), Message: err.Error()})
}
