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

// Package client 注册表 HTTP 接口的 resty 客户端
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"tau-harness/internal/message"
	"tau-harness/internal/runtime/session"
	"tau-harness/internal/task"
	"tau-harness/pkg/errors"
)

const defaultTimeout = 30 * time.Second

// Client 远端注册表客户端
type Client struct {
	http *resty.Client
}

// New 创建客户端；timeout<=0 使用 30s
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// check 非 2xx 响应还原为错误分类
func check(resp *resty.Response, op string) error {
	if resp.IsSuccess() {
		return nil
	}
	var eb errorBody
	if err := json.Unmarshal(resp.Body(), &eb); err == nil && eb.Error != "" {
		return errors.Wrapf(errors.FromKind(eb.Error), "%s: %s", op, eb.Message)
	}
	var sentinel error
	switch resp.StatusCode() {
	case http.StatusNotFound:
		sentinel = errors.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		sentinel = errors.ErrInvalidArg
	default:
		sentinel = errors.ErrInternal
	}
	return errors.Wrapf(sentinel, "%s: status %d: %s", op, resp.StatusCode(), resp.String())
}

// Health GET /api/health
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return err
	}
	return check(resp, "health")
}

// Start 启动 session
func (c *Client) Start(ctx context.Context, domain string) (string, error) {
	return c.StartWithID(ctx, domain, "")
}

// StartWithID 以指定 id 启动 session
func (c *Client) StartWithID(ctx context.Context, domain, id string) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	resp, err := c.http.R().SetContext(ctx).
		SetBody(map[string]string{"domain": domain, "session_id": id}).
		SetResult(&out).
		Post("/api/sessions")
	if err != nil {
		return "", err
	}
	if err := check(resp, "start session"); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// SetState 初始化远端 session 状态
func (c *Client) SetState(ctx context.Context, id string, state task.InitialState) error {
	resp, err := c.http.R().SetContext(ctx).
		SetBody(state).
		Post("/api/sessions/" + id + "/state")
	if err != nil {
		return err
	}
	return check(resp, "set_state "+id)
}

// ExecuteTool 执行工具调用，返回工具消息
func (c *Client) ExecuteTool(ctx context.Context, id string, call message.ToolCall) (message.Message, error) {
	var out message.Message
	resp, err := c.http.R().SetContext(ctx).
		SetBody(call).
		SetResult(&out).
		Post("/api/sessions/" + id + "/tools")
	if err != nil {
		return message.Message{}, err
	}
	if err := check(resp, "execute_tool "+id); err != nil {
		return message.Message{}, err
	}
	if out.Role() != message.RoleTool {
		return message.Message{}, fmt.Errorf("execute_tool %s: unexpected %s message", id, out.Role())
	}
	return out, nil
}

// Trajectory 远端 session 的完整历史
func (c *Client) Trajectory(ctx context.Context, id string) ([]message.Message, error) {
	var out struct {
		Messages []message.Message `json:"messages"`
	}
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&out).
		Get("/api/sessions/" + id + "/trajectory")
	if err != nil {
		return nil, err
	}
	if err := check(resp, "trajectory "+id); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Info 远端 session 概要
func (c *Client) Info(ctx context.Context, id string) (*session.Info, error) {
	var out session.Info
	resp, err := c.http.R().SetContext(ctx).
		SetResult(&out).
		Get("/api/sessions/" + id + "/info")
	if err != nil {
		return nil, err
	}
	if err := check(resp, "info "+id); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stop 停止远端 session
func (c *Client) Stop(ctx context.Context, id string) error {
	resp, err := c.http.R().SetContext(ctx).Delete("/api/sessions/" + id)
	if err != nil {
		return err
	}
	return check(resp, "stop "+id)
}
