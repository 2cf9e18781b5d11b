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
	"fmt"

	"github.com/google/uuid"

	"tau-harness/internal/agent"
	"tau-harness/internal/message"
	"tau-harness/pkg/config"
	"tau-harness/pkg/errors"
)

// ArgMapper 将某个 agent 工具的原生参数转为规范参数
type ArgMapper func(agentTool string, args map[string]any) (map[string]any, error)

// Mapping agent 原生工具名 -> Environment 规范名，以及参数转换
type Mapping struct {
	Tools map[string]string
	Args  ArgMapper
}

// IdentityMapping 每个名字映射到自身，参数原样传递
func IdentityMapping(names []string) Mapping {
	tools := make(map[string]string, len(names))
	for _, n := range names {
		tools[n] = n
	}
	return Mapping{Tools: tools}
}

// MappingFromConfig 由 YAML 改名表构造映射：canonical 中未被覆盖的工具映射到自身，
// 参数按 args 表重命名，未列出的参数原样保留
func MappingFromConfig(cfg config.ToolMappingConfig, canonical []string) Mapping {
	m := IdentityMapping(canonical)
	for native, canon := range cfg.Tools {
		m.Tools[native] = canon
	}
	if len(cfg.Args) == 0 {
		return m
	}
	renames := cfg.Args
	m.Args = func(agentTool string, args map[string]any) (map[string]any, error) {
		table, ok := renames[agentTool]
		if !ok {
			return args, nil
		}
		out := make(map[string]any, len(args))
		for k, v := range args {
			name := k
			if canon, ok := table[k]; ok {
				name = canon
			}
			if _, dup := out[name]; dup {
				return nil, fmt.Errorf("argument %q of %s maps onto an existing argument", k, agentTool)
			}
			out[name] = v
		}
		return out, nil
	}
	return m
}

// Translate 原生调用 -> 规范调用。未映射的工具名为 ErrUnknownTool；ID 为空时生成。
func (m Mapping) Translate(call agent.NativeCall) (message.ToolCall, error) {
	canon, ok := m.Tools[call.Name]
	if !ok {
		return message.ToolCall{}, errors.Wrapf(errors.ErrUnknownTool, "agent tool %q has no mapping", call.Name)
	}
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if m.Args != nil {
		mapped, err := m.Args(call.Name, args)
		if err != nil {
			return message.ToolCall{}, errors.Wrapf(errors.ErrInvalidArg, "map arguments of %s: %v", call.Name, err)
		}
		args = mapped
	}
	id := call.ID
	if id == "" {
		id = "call_" + uuid.New().String()
	}
	return message.ToolCall{ID: id, Name: canon, Arguments: args, Requestor: message.RequestorAssistant}, nil
}
