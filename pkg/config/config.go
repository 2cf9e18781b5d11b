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

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// 默认值
const (
	DefaultMaxTurns    = 15
	DefaultMaxErrors   = 10
	DefaultGreeting    = "Hello! How can I help you today?"
	DefaultConcurrency = 1
	DefaultPort        = 8080
)

// Config 应用配置结构体
type Config struct {
	API          APIConfig          `mapstructure:"api"`
	Registry     RegistryConfig     `mapstructure:"registry"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Eval         EvalConfig         `mapstructure:"eval"`
	Model        ModelConfig        `mapstructure:"model"`
	RunStore     RunStoreConfig     `mapstructure:"runstore"`
	Log          LogConfig          `mapstructure:"log"`
	Monitoring   MonitoringConfig   `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port            int             `mapstructure:"port"`
	Host            string          `mapstructure:"host"`
	Timeout         string          `mapstructure:"timeout"`
	ShutdownTimeout string          `mapstructure:"shutdown_timeout"` // 如 "30s"
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig HTTP 入口令牌桶限流
type RateLimitConfig struct {
	Enable bool    `mapstructure:"enable"`
	QPS    float64 `mapstructure:"qps"`
	Burst  int     `mapstructure:"burst"`
}

// RegistryConfig Environment 实例注册表配置
type RegistryConfig struct {
	Domains     []string `mapstructure:"domains"`      // 允许启动的 domain；空表示 catalog 中全部
	MaxSessions int      `mapstructure:"max_sessions"` // 0 表示不限
}

// OrchestratorConfig 对话编排配置
type OrchestratorConfig struct {
	MaxTurns     int                          `mapstructure:"max_turns"`
	MaxErrors    int                          `mapstructure:"max_errors"`
	Greeting     string                       `mapstructure:"greeting"`
	ToolMappings map[string]ToolMappingConfig `mapstructure:"tool_mappings"` // domain -> 映射表
}

// ToolMappingConfig agent 侧工具名/参数名到 Environment 规范名的映射
type ToolMappingConfig struct {
	Tools map[string]string            `mapstructure:"tools"` // agent 工具名 -> 规范工具名
	Args  map[string]map[string]string `mapstructure:"args"`  // agent 工具名 -> (agent 参数名 -> 规范参数名)
}

// EvalConfig 评测 runner 配置
type EvalConfig struct {
	Domain      string   `mapstructure:"domain"`
	TaskIDs     []string `mapstructure:"task_ids"`
	TasksFile   string   `mapstructure:"tasks_file"`
	Concurrency int      `mapstructure:"concurrency"`
	RemoteURL   string   `mapstructure:"remote_url"` // 非空时通过 registry HTTP 接口执行工具
	Timeout     string   `mapstructure:"timeout"`
}

// ModelConfig agent 与 user simulator 的模型配置
type ModelConfig struct {
	Agent LLMConfig `mapstructure:"agent"`
	User  LLMConfig `mapstructure:"user"`
}

// LLMConfig OpenAI 兼容模型配置
type LLMConfig struct {
	Provider    string   `mapstructure:"provider"`
	Model       string   `mapstructure:"model"`
	APIKey      string   `mapstructure:"api_key"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float32 `mapstructure:"temperature"`
	Timeout     string   `mapstructure:"timeout"`

	// RequestsPerMinute 与 MaxConcurrent 为 0 时不限流
	RequestsPerMinute float64 `mapstructure:"requests_per_minute"`
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
}

// RunStoreConfig 模拟结果存储配置
type RunStoreConfig struct {
	Type     string         `mapstructure:"type"` // memory | redis | postgres
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PostgresConfig Postgres 连接配置
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	setDefaults(&config)
	return &config, nil
}

// Default 无配置文件时的默认配置
func Default() *Config {
	var config Config
	setDefaults(&config)
	return &config
}

func setDefaults(c *Config) {
	if c.API.Port == 0 {
		c.API.Port = DefaultPort
	}
	if c.API.ShutdownTimeout == "" {
		c.API.ShutdownTimeout = "30s"
	}
	if c.API.RateLimit.Enable {
		if c.API.RateLimit.QPS <= 0 {
			c.API.RateLimit.QPS = 100
		}
		if c.API.RateLimit.Burst <= 0 {
			c.API.RateLimit.Burst = int(c.API.RateLimit.QPS)
		}
	}
	if c.Orchestrator.MaxTurns <= 0 {
		c.Orchestrator.MaxTurns = DefaultMaxTurns
	}
	if c.Orchestrator.MaxErrors <= 0 {
		c.Orchestrator.MaxErrors = DefaultMaxErrors
	}
	if c.Orchestrator.Greeting == "" {
		c.Orchestrator.Greeting = DefaultGreeting
	}
	if c.Eval.Concurrency <= 0 {
		c.Eval.Concurrency = DefaultConcurrency
	}
	if c.RunStore.Type == "" {
		c.RunStore.Type = "memory"
	}
	if c.RunStore.Redis.KeyPrefix == "" {
		c.RunStore.Redis.KeyPrefix = "tau"
	}
	if c.Monitoring.Tracing.ServiceName == "" {
		c.Monitoring.Tracing.ServiceName = "tau-harness"
	}
}

// replaceEnvVars 替换配置中 ${VAR} 形式的环境变量
func replaceEnvVars(config *Config) {
	for _, s := range []*string{
		&config.Model.Agent.APIKey, &config.Model.Agent.BaseURL,
		&config.Model.User.APIKey, &config.Model.User.BaseURL,
		&config.RunStore.Redis.Password, &config.RunStore.Postgres.DSN,
	} {
		*s = expandEnv(*s)
	}
}

func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return s
	}
	if val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(s, "${"), "}")); val != "" {
		return val
	}
	return s
}

// LoadAPIConfig 加载 API 配置（configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadEvalConfig 加载评测配置（configs/eval.yaml）
func LoadEvalConfig() (*Config, error) {
	return LoadConfig("configs/eval.yaml")
}
