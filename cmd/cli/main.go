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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"tau-harness/internal/runtime/runstore"
	"tau-harness/pkg/config"
)

// cli 命令共享的依赖；测试中替换 newStore 与输出
type cli struct {
	configPath string
	apiURL     string
	out        io.Writer
	newStore   func(ctx context.Context, cfg config.RunStoreConfig) (runstore.Store, error)
}

func main() {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
	}
	c := &cli{out: os.Stdout, newStore: runstore.New}
	if err := newRootCmd(c).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "tau",
		Short:         "Run and score conversational agent benchmarks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(c.out)
	root.PersistentFlags().StringVar(&c.configPath, "config", "configs/eval.yaml", "Config file; defaults apply when it does not exist")
	root.PersistentFlags().StringVar(&c.apiURL, "url", apiBaseURL(), "Registry base URL")

	root.AddCommand(c.runCmd())
	root.AddCommand(c.tasksCmd())
	root.AddCommand(c.toolsCmd())
	root.AddCommand(c.sessionCmd())
	root.AddCommand(c.replayCmd())
	return root
}

func apiBaseURL() string {
	if u := os.Getenv("TAU_API_URL"); u != "" {
		return u
	}
	return "http://localhost:8080"
}

// loadConfig 配置文件不存在时使用默认配置
func (c *cli) loadConfig() (*config.Config, error) {
	if _, err := os.Stat(c.configPath); errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return config.LoadConfig(c.configPath)
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
