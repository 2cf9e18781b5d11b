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
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"tau-harness/internal/message"
	"tau-harness/internal/tool"
	"tau-harness/pkg/errors"
)

// Endpoint 由工具描述派生的单工具端点，属于某个 session 的分发表
type Endpoint struct {
	session   *Session
	requestor message.Requestor
	desc      *tool.Descriptor
}

// EndpointInfo 端点列表项
type EndpointInfo struct {
	Requestor message.Requestor   `json:"requestor"`
	Name      string              `json:"name"`
	Schema    tool.FunctionSchema `json:"schema"`
}

// Descriptor 端点对应的工具描述
func (e *Endpoint) Descriptor() *tool.Descriptor { return e.desc }

// Invoke 以 JSON 对象作为参数执行工具，返回原始结果。
// 请求体形态不合法为 ErrInvalidArguments；执行失败原样返回（包装后的领域错误）。
// 不写入 Trajectory。
func (e *Endpoint) Invoke(ctx context.Context, body []byte) (any, error) {
	args := map[string]any{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &args); err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidArguments, "%s: request body must be a JSON object", e.desc.Name())
		}
	}
	if _, err := e.desc.Validate(args); err != nil {
		return nil, err
	}

	s := e.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.Wrapf(errors.ErrUnknownSession, "session %s", s.ID)
	}
	raw, err := s.env.MakeToolCall(context.WithoutCancel(ctx), e.requestor, e.desc.Name(), args)
	if err != nil {
		return nil, err
	}
	res, err := tool.NewResult(raw)
	if err != nil {
		return nil, err
	}
	return res.Raw(), nil
}

// Endpoint 在请求时查找 session 分发表
func (r *Registry) Endpoint(id string, requestor message.Requestor, name string) (*Endpoint, error) {
	s, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	ep, ok := s.endpoints[requestor.OrDefault()][name]
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnknownTool, "tool %q", name)
	}
	return ep, nil
}

// Endpoints 列出 session 的全部单工具端点
func (r *Registry) Endpoints(id string) ([]EndpointInfo, error) {
	s, err := r.acquire(id)
	if err != nil {
		return nil, err
	}
	defer s.mu.Unlock()
	var out []EndpointInfo
	for req, table := range s.endpoints {
		for name, ep := range table {
			out = append(out, EndpointInfo{Requestor: req, Name: name, Schema: ep.desc.FunctionSchema()})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Requestor != out[j].Requestor {
			return out[i].Requestor < out[j].Requestor
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
