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
	"context"
	"fmt"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"tau-harness/internal/message"
	"tau-harness/internal/tool"
	"tau-harness/pkg/errors"
)

// EndpointEntry 单工具端点列表项
type EndpointEntry struct {
	Name      string              `json:"name"`
	Requestor message.Requestor   `json:"requestor"`
	Method    string              `json:"method"`
	Path      string              `json:"path"`
	Schema    tool.FunctionSchema `json:"schema"`
}

func endpointPath(id string, r message.Requestor, name string) string {
	group := "tools"
	if r == message.RequestorUser {
		group = "user_tools"
	}
	return fmt.Sprintf("/api/sessions/%s/endpoints/%s/%s", id, group, name)
}

// ListEndpoints GET /api/sessions/:id/endpoints
func (h *Handler) ListEndpoints(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	list, err := h.registry.Endpoints(id)
	if err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	out := make([]EndpointEntry, 0, len(list))
	for _, e := range list {
		out = append(out, EndpointEntry{
			Name:      e.Name,
			Requestor: e.Requestor,
			Method:    "POST",
			Path:      endpointPath(id, e.Requestor, e.Name),
			Schema:    e.Schema,
		})
	}
	c.JSON(consts.StatusOK, map[string]any{"session_id": id, "endpoints": out})
}

// InvokeTool POST /api/sessions/:id/endpoints/tools/:tool
func (h *Handler) InvokeTool(ctx context.Context, c *app.RequestContext) {
	h.invoke(ctx, c, message.RequestorAssistant)
}

// InvokeUserTool POST /api/sessions/:id/endpoints/user_tools/:tool
func (h *Handler) InvokeUserTool(ctx context.Context, c *app.RequestContext) {
	h.invoke(ctx, c, message.RequestorUser)
}

// invoke 请求体为参数对象，响应为工具原始结果；不写入 trajectory
func (h *Handler) invoke(ctx context.Context, c *app.RequestContext, r message.Requestor) {
	ep, err := h.registry.Endpoint(c.Param("id"), r, c.Param("tool"))
	if err != nil {
		writeError(ctx, c, statusOf(err), err)
		return
	}
	out, err := ep.Invoke(ctx, c.Request.Body())
	if err != nil {
		status := consts.StatusBadRequest
		switch {
		case errors.Is(err, errors.ErrUnknownSession):
			status = consts.StatusNotFound
		case errors.Is(err, errors.ErrInvalidArguments):
			status = consts.StatusUnprocessableEntity
		}
		writeError(ctx, c, status, err)
		return
	}
	c.JSON(consts.StatusOK, out)
}
