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
	"github.com/cloudwego/hertz/pkg/app/middlewares/server/recovery"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/route"

	"tau-harness/internal/api/http/middleware"
)

// Router HTTP 路由
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, mw *middleware.Middleware) *Router {
	return &Router{handler: handler, middleware: mw}
}

// Build 创建 hertz 实例并注册路由；opts 可携带 tracer 等服务端选项
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.New(opts...)
	r.Register(h.Engine)
	return h
}

// Register 在 engine 上挂载中间件与全部路由
func (r *Router) Register(engine *route.Engine) {
	engine.Use(recovery.Recovery(), r.middleware.AccessLog(), r.middleware.RequestCounter())

	engine.GET("/metrics", r.handler.Metrics)

	api := engine.Group("/api")
	api.GET("/health", r.handler.HealthCheck)
	api.GET("/status", r.handler.Status)

	sessions := api.Group("/sessions", r.middleware.RateLimit())
	{
		sessions.POST("", r.handler.StartSession)
		sessions.POST("/:id/state", r.handler.SetState)
		sessions.POST("/:id/tools", r.handler.ExecuteTool)
		sessions.GET("/:id/trajectory", r.handler.Trajectory)
		sessions.GET("/:id/info", r.handler.Info)
		sessions.DELETE("/:id", r.handler.StopSession)

		sessions.GET("/:id/endpoints", r.handler.ListEndpoints)
		sessions.POST("/:id/endpoints/tools/:tool", r.handler.InvokeTool)
		sessions.POST("/:id/endpoints/user_tools/:tool", r.handler.InvokeUserTool)
	}
}
