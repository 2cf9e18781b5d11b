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

package app

import (
	"fmt"

	"tau-harness/internal/domain/mock"
	"tau-harness/internal/environment"
	"tau-harness/internal/task"
	"tau-harness/pkg/config"
	"tau-harness/pkg/log"
)

// DomainRegistrar 向目录注册一个领域及其内置任务集
type DomainRegistrar func(*environment.Catalog) error

// BuiltinDomains 编译进二进制的领域
var BuiltinDomains = map[string]DomainRegistrar{
	mock.Domain: mock.Register,
}

// Bootstrap 统一初始化：供 api 与 cli 复用
type Bootstrap struct {
	Config  *config.Config
	Logger  *log.Logger
	Catalog *environment.Catalog
}

// NewBootstrap 根据配置创建 Logger 与领域目录；cfg 为 nil 时使用默认配置
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.SetDefault()

	catalog, err := NewCatalog(cfg)
	if err != nil {
		return nil, err
	}
	return &Bootstrap{Config: cfg, Logger: logger, Catalog: catalog}, nil
}

// Close 释放 Bootstrap 持有的资源（日志文件）
func (b *Bootstrap) Close() error {
	return b.Logger.Close()
}

// NewCatalog 注册全部内置领域；配置了 eval.tasks_file 时将其任务追加到 eval.domain
func NewCatalog(cfg *config.Config) (*environment.Catalog, error) {
	c := environment.NewCatalog()
	for name, register := range BuiltinDomains {
		if err := register(c); err != nil {
			return nil, fmt.Errorf("注册领域 %s 失败: %w", name, err)
		}
	}
	if cfg != nil && cfg.Eval.TasksFile != "" {
		tasks, err := task.LoadTasks(cfg.Eval.TasksFile)
		if err != nil {
			return nil, err
		}
		if err := c.RegisterTasks(cfg.Eval.Domain, tasks); err != nil {
			return nil, err
		}
	}
	return c, nil
}
