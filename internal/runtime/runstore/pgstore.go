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

package runstore

import (
	"context"
	"encoding/json"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tau-harness/pkg/errors"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS simulation_runs (
	id          TEXT PRIMARY KEY,
	task_id     TEXT NOT NULL,
	domain      TEXT NOT NULL,
	termination TEXT NOT NULL,
	reward      DOUBLE PRECISION NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	payload     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS simulation_runs_task_idx ON simulation_runs (task_id, started_at)`

// pgStore PostgreSQL 实现：simulation_runs 表，payload 为完整 JSON
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接并建表
func NewPostgresStore(ctx context.Context, dsn string) (Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createRunsTable); err != nil {
		pool.Close()
		return nil, err
	}
	return &pgStore{pool: pool}, nil
}

func (s *pgStore) Save(ctx context.Context, run *SimulationRun) error {
	if run == nil || run.ID == "" {
		return errors.Wrap(errors.ErrInvalidArg, "run id is required")
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO simulation_runs (id, task_id, domain, termination, reward, started_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET task_id = EXCLUDED.task_id, domain = EXCLUDED.domain,
		   termination = EXCLUDED.termination, reward = EXCLUDED.reward,
		   started_at = EXCLUDED.started_at, payload = EXCLUDED.payload`,
		run.ID, run.TaskID, run.Domain, run.TerminationReason, run.Reward, run.StartedAt, payload)
	return err
}

func (s *pgStore) Get(ctx context.Context, id string) (*SimulationRun, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM simulation_runs WHERE id = $1`, id).Scan(&payload)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, err
	}
	return decodeRun(payload)
}

func (s *pgStore) List(ctx context.Context, taskID string) ([]*SimulationRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM simulation_runs WHERE $1::text = '' OR task_id = $1 ORDER BY started_at, id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*SimulationRun
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		run, err := decodeRun(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Close 关闭连接池
func (s *pgStore) Close() error {
	s.pool.Close()
	return nil
}
