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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 API 与评测 runner 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		SessionsActive, SessionsStarted,
		ToolCallsTotal, ToolDuration,
		ConversationsTotal, ConversationTurns,
		RewardHistogram, HTTPRequestsTotal,
	)
}

// SessionsActive 当前存活的 Environment session 数
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "tau_sessions_active",
		Help: "当前存活的 session 数",
	},
)

// SessionsStarted 已启动 session 总数（按 domain）
var SessionsStarted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tau_sessions_started_total",
		Help: "已启动 session 总数",
	},
	[]string{"domain"},
)

// ToolCallsTotal 工具调用总数（按结果）
var ToolCallsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tau_tool_calls_total",
		Help: "工具调用总数",
	},
	[]string{"domain", "tool", "outcome"}, // ok | error
)

// ToolDuration 工具调用耗时（秒）
var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tau_tool_duration_seconds",
		Help:    "工具调用耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"domain", "tool"},
)

// ConversationsTotal 对话结束总数（按终止原因）
var ConversationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tau_conversations_total",
		Help: "对话结束总数",
	},
	[]string{"termination"},
)

// ConversationTurns 每段对话消耗的 agent 回合数
var ConversationTurns = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "tau_conversation_turns",
		Help:    "每段对话的 agent 回合数",
		Buckets: prometheus.LinearBuckets(1, 2, 10),
	},
)

// RewardHistogram 评测 reward 分布
var RewardHistogram = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "tau_reward",
		Help:    "评测 reward 分布",
		Buckets: []float64{0, 0.25, 0.5, 0.75, 1},
	},
)

// HTTPRequestsTotal HTTP 请求数（按路由与状态码）
var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tau_http_requests_total",
		Help: "HTTP 请求总数",
	},
	[]string{"route", "code"},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
