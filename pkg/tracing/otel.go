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

// Package tracing 封装 OpenTelemetry：tracer 初始化与 harness 常用 span
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tau-harness"

// OTelConfig OpenTelemetry 配置
type OTelConfig struct {
	ServiceName    string
	ExportEndpoint string
	Insecure       bool
}

// InitTracer 初始化 OpenTelemetry tracer，返回的 shutdown 在进程退出前调用
func InitTracer(ctx context.Context, config OTelConfig) (func(context.Context) error, error) {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.ExportEndpoint),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// StartConversationSpan 一段对话（一个 task 的一次模拟）
func StartConversationSpan(ctx context.Context, domain, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "conversation.run",
		trace.WithAttributes(
			attribute.String("task.domain", domain),
			attribute.String("task.id", taskID),
		),
	)
}

// StartTurnSpan 一个 agent 回合
func StartTurnSpan(ctx context.Context, turn int, state string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "conversation.turn",
		trace.WithAttributes(
			attribute.Int("turn.index", turn),
			attribute.String("turn.state", state),
		),
	)
}

// StartToolSpan 一次工具执行
func StartToolSpan(ctx context.Context, sessionID, toolName string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "tool.execute",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("tool.name", toolName),
		),
	)
}
