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

package model

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// limiter RPM 令牌桶 + 并发信号量；WithTools 派生的模型共享同一 limiter
type limiter struct {
	requests  *rate.Limiter
	semaphore chan struct{}
}

func (l *limiter) acquire(ctx context.Context) (func(), error) {
	if l.requests != nil {
		if err := l.requests.Wait(ctx); err != nil {
			return nil, fmt.Errorf("request rate limit wait failed: %w", err)
		}
	}
	if l.semaphore == nil {
		return func() {}, nil
	}
	select {
	case l.semaphore <- struct{}{}:
		return func() { <-l.semaphore }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type rateLimitedModel struct {
	inner einomodel.ToolCallingChatModel
	lim   *limiter
}

// RateLimited 包装 ChatModel，调用前等待配额；rpm<=0 不限速率，maxConcurrent<=0 不限并发
func RateLimited(m einomodel.ToolCallingChatModel, rpm float64, maxConcurrent int) einomodel.ToolCallingChatModel {
	l := &limiter{}
	if rpm > 0 {
		burst := int(rpm / 60.0 * 2) // 2 秒的配额
		if burst < 1 {
			burst = 1
		}
		l.requests = rate.NewLimiter(rate.Limit(rpm/60.0), burst)
	}
	if maxConcurrent > 0 {
		l.semaphore = make(chan struct{}, maxConcurrent)
	}
	return &rateLimitedModel{inner: m, lim: l}
}

func (m *rateLimitedModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	release, err := m.lim.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return m.inner.Generate(ctx, input, opts...)
}

func (m *rateLimitedModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	release, err := m.lim.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return m.inner.Stream(ctx, input, opts...)
}

func (m *rateLimitedModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	inner, err := m.inner.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &rateLimitedModel{inner: inner, lim: m.lim}, nil
}
