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

// Package model 按配置构造 eino ChatModel
package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"

	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
)

// Constructor 某个 provider 的 ChatModel 构造函数
type Constructor func(ctx context.Context, cfg config.LLMConfig) (einomodel.ToolCallingChatModel, error)

// provider 注册表，便于测试或扩展时替换实现
var (
	providers  = map[string]Constructor{"openai": newOpenAI}
	registryMu sync.RWMutex
)

// RegisterProvider 注册 provider 实现，同名覆盖
func RegisterProvider(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	providers[name] = c
}

// Providers 已注册的 provider
func Providers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(providers))
	for name := range providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// NewChatModel 按配置创建 ChatModel；provider 为空视为 openai（含任意 OpenAI 兼容 base_url）。
// 配置了 requests_per_minute 或 max_concurrent 时外包一层限流。
func NewChatModel(ctx context.Context, cfg config.LLMConfig) (einomodel.ToolCallingChatModel, error) {
	name := cfg.Provider
	if name == "" {
		name = "openai"
	}
	registryMu.RLock()
	c, ok := providers[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidArg, "LLM provider %q not registered", name)
	}
	if cfg.Model == "" {
		return nil, errors.Wrap(errors.ErrInvalidArg, "LLM model not configured")
	}
	m, err := c(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", name, err)
	}
	if cfg.RequestsPerMinute > 0 || cfg.MaxConcurrent > 0 {
		m = RateLimited(m, cfg.RequestsPerMinute, cfg.MaxConcurrent)
	}
	return m, nil
}

func parseTimeout(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrInvalidArg, "LLM timeout %q", s)
	}
	return d, nil
}
