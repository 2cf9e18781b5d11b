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

// Package errors 提供 harness 统一错误分类与包装辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 通用哨兵错误
var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidArg = errors.New("invalid argument")
	ErrInternal   = errors.New("internal error")
)

// 错误分类：配置类（UnknownDomain/UnknownTool/Descriptor）为致命错误；
// UnknownSession 调用方可恢复；工具执行类在 Environment 边界转为 error ToolMessage
var (
	ErrUnknownDomain    = errors.New("unknown domain")
	ErrUnknownSession   = errors.New("unknown session")
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid arguments")
	ErrInitialization   = errors.New("initialization error")
	ErrDescriptor       = errors.New("descriptor error")
	ErrReplay           = errors.New("replay error")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is 同标准库 errors.Is
func Is(err, target error) bool { return errors.Is(err, target) }

// As 同标准库 errors.As
func As(err error, target any) bool { return errors.As(err, target) }

// New 同标准库 errors.New
func New(text string) error { return errors.New(text) }

// kinds 顺序即匹配优先级：回放错误同时属于初始化错误，需先判定
var kinds = []struct {
	err  error
	name string
}{
	{ErrUnknownSession, "unknown_session"},
	{ErrUnknownDomain, "unknown_domain"},
	{ErrUnknownTool, "unknown_tool"},
	{ErrReplay, "replay_error"},
	{ErrInitialization, "initialization_error"},
	{ErrInvalidArguments, "invalid_arguments"},
	{ErrDescriptor, "descriptor_error"},
	{ErrNotFound, "not_found"},
	{ErrInvalidArg, "invalid_argument"},
}

// Kind 返回错误的分类名，用于 HTTP 错误体与 metrics label；nil 返回空串
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// FromKind 是 Kind 的逆映射，供客户端把错误体还原为哨兵错误
func FromKind(kind string) error {
	for _, k := range kinds {
		if k.name == kind {
			return k.err
		}
	}
	return ErrInternal
}
