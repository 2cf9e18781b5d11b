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

package client

import (
	"context"
	"strings"

	"tau-harness/internal/environment"
	"tau-harness/internal/message"
	"tau-harness/internal/tool"
	"tau-harness/pkg/errors"
)

// RemoteExecutor 通过远端 session 执行工具调用
type RemoteExecutor struct {
	Client    *Client
	SessionID string
}

// Execute 传输失败返回错误；工具自身失败体现在 Response.Err 与 error 标记上
func (e *RemoteExecutor) Execute(ctx context.Context, call message.ToolCall) (environment.Response, error) {
	msg, err := e.Client.ExecuteTool(ctx, e.SessionID, call)
	if err != nil {
		return environment.Response{}, err
	}
	if msg.IsError() {
		return environment.Response{
			Message: msg,
			Result:  tool.ScalarResult(msg.Content()),
			Err:     errors.New(strings.TrimPrefix(msg.Content(), "Error: ")),
		}, nil
	}
	return environment.Response{Message: msg, Result: tool.ResultFromContent(msg.Content())}, nil
}
