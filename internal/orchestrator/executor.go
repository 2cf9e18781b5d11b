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

package orchestrator

import (
	"context"

	"tau-harness/internal/environment"
	"tau-harness/internal/message"
)

// Executor 执行规范形态的工具调用。工具自身的失败体现在 Response 中；
// 返回 error 仅表示执行通道失败（如远端传输），对本次对话是致命的。
type Executor interface {
	Execute(ctx context.Context, call message.ToolCall) (environment.Response, error)
}

// EnvExecutor 直接在本地 Environment 实例上执行
type EnvExecutor struct {
	Env *environment.Environment
}

// Execute 实现 Executor
func (e *EnvExecutor) Execute(ctx context.Context, call message.ToolCall) (environment.Response, error) {
	return e.Env.Respond(ctx, call), nil
}
