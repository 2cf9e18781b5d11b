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

package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"tau-harness/pkg/metrics"
)

// Middleware HTTP 中间件集合
type Middleware struct {
	limiter *rate.Limiter
}

// Option 中间件选项
type Option func(*Middleware)

// WithRateLimit 令牌桶限流；qps<=0 不限流
func WithRateLimit(qps float64, burst int) Option {
	return func(m *Middleware) {
		if qps <= 0 {
			return
		}
		if burst <= 0 {
			burst = int(qps)
			if burst < 1 {
				burst = 1
			}
		}
		m.limiter = rate.NewLimiter(rate.Limit(qps), burst)
	}
}

// NewMiddleware 创建中间件集合
func NewMiddleware(opts ...Option) *Middleware {
	m := &Middleware{}
	for _, o := range opts {
		o(m)
	}
	return m
}

// RateLimit 速率限制中间件，超出返回 429
func (m *Middleware) RateLimit() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if m.limiter != nil && !m.limiter.Allow() {
			c.JSON(consts.StatusTooManyRequests, map[string]string{
				"error":   "rate_limited",
				"message": "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

// AccessLog 请求日志
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		hlog.CtxInfof(ctx, "%s %s %d %s %s",
			c.Method(), c.Path(), c.Response.StatusCode(), time.Since(start), c.ClientIP())
	}
}

// RequestCounter 按路由模板与状态码计数
func (m *Middleware) RequestCounter() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		c.Next(ctx)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(c.Response.StatusCode())).Inc()
	}
}
