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

package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"tau-harness/internal/api/http"
	"tau-harness/internal/api/http/middleware"
	"tau-harness/internal/app"
	"tau-harness/internal/runtime/session"
	"tau-harness/pkg/log"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App Environment 注册表服务（装配 Registry、Handler、Middleware 与 Router）
type App struct {
	config       *app.Bootstrap
	registry     *session.Registry
	router       *http.Router
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil || bootstrap.Catalog == nil {
		return nil, fmt.Errorf("bootstrap 未初始化")
	}
	cfg := bootstrap.Config
	reg := session.NewRegistry(bootstrap.Catalog,
		session.WithAllowedDomains(cfg.Registry.Domains...),
		session.WithMaxSessions(cfg.Registry.MaxSessions),
		session.WithLogger(bootstrap.Logger.WithComponent("registry").Logger),
	)
	var mwOpts []middleware.Option
	if cfg.API.RateLimit.Enable {
		mwOpts = append(mwOpts, middleware.WithRateLimit(cfg.API.RateLimit.QPS, cfg.API.RateLimit.Burst))
	}
	router := http.NewRouter(http.NewHandler(reg), middleware.NewMiddleware(mwOpts...))
	return &App{config: bootstrap, registry: reg, router: router}, nil
}

// Registry 服务持有的注册表
func (a *App) Registry() *session.Registry { return a.registry }

// Addr 监听地址，如 ":8080"
func (a *App) Addr() string {
	return fmt.Sprintf("%s:%d", a.config.Config.API.Host, a.config.Config.API.Port)
}

// Run 启动 HTTP 服务并阻塞至关闭
func (a *App) Run(addr string) error {
	cfg := a.config.Config
	a.config.Logger.Info("registry 服务启动", "addr", addr, "domains", a.registry.Domains())

	// 使用 Hertz slog 扩展，与 bootstrap 日志配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	levelVar.Set(log.ParseLevel(cfg.Log.Level))
	hlog.SetLogger(hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	))

	// 可选：启用链路追踪（OpenTelemetry）
	tracing := cfg.Monitoring.Tracing
	endpoint := tracing.ExportEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if tracing.Enable && endpoint != "" {
		opts := []provider.Option{
			provider.WithServiceName(tracing.ServiceName),
			provider.WithExportEndpoint(endpoint),
		}
		if tracing.Insecure {
			opts = append(opts, provider.WithInsecure())
		}
		a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
		tracerOpt, tcfg := hertztracing.NewServerTracer()
		a.hertz = a.router.Build(addr, tracerOpt)
		a.hertz.Use(hertztracing.ServerMiddleware(tcfg))
		a.config.Logger.Info("链路追踪已启用", "service_name", tracing.ServiceName, "endpoint", endpoint)
	} else {
		a.hertz = a.router.Build(addr)
	}
	return a.hertz.Run()
}

// Shutdown 优雅关闭：先停止接收请求，再释放全部 Environment 实例
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	var err error
	if a.hertz != nil {
		err = a.hertz.Shutdown(ctx)
	}
	a.registry.Close()
	return err
}

// ShutdownTimeout 解析 api.shutdown_timeout，无效时为 30s
func (a *App) ShutdownTimeout() time.Duration {
	return parseDuration(a.config.Config.API.ShutdownTimeout, 30*time.Second)
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
