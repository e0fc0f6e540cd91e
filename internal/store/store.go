// Package store persists assembled vehicles and sync run history in
// PostgreSQL.
//
// Attribute groups are stored as JSONB columns so a record always has every
// group present. The store upserts by primary key only; it never joins or
// opens transactions for the pipeline.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/evsync/internal/config"
	"github.com/JonMunkholm/evsync/internal/core"
)

// ErrNotStored is returned by Update when no row has the record's id.
var ErrNotStored = errors.New("vehicle does not exist in store")

// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)?$`)

// Open creates a connection pool from cfg and verifies it with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store implements core.Store and core.RunRecorder on a pgx pool.
type Store struct {
	pool  *pgxpool.Pool
	sb    sq.StatementBuilderType
	table string
}

// New returns a Store writing vehicles to table.
func New(pool *pgxpool.Pool, table string) (*Store, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid vehicle table name %q", table)
	}
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &Store{
		pool:  pool,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		table: table,
	}, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListIDs returns every stored vehicle id in one query.
func (s *Store) ListIDs(ctx context.Context) (map[string]struct{}, error) {
	sqlStr, args, err := s.sb.Select("id").From(s.table).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s ids: %w", s.table, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", s.table, err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s ids: %w", s.table, err)
	}
	return ids, nil
}

// Insert adds a new vehicle.
func (s *Store) Insert(ctx context.Context, rec core.Record) error {
	q, err := s.insertQuery(rec)
	if err != nil {
		return err
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("duplicate key: vehicle %s already stored: %w", rec.ID, err)
		}
		return err
	}
	return nil
}

// Update overwrites every column of an existing vehicle.
func (s *Store) Update(ctx context.Context, rec core.Record) error {
	q, err := s.updateQuery(rec)
	if err != nil {
		return err
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}

	ct, err := s.pool.Exec(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotStored
	}
	return nil
}

func (s *Store) insertQuery(rec core.Record) (sq.InsertBuilder, error) {
	cols, err := recordColumns(rec)
	if err != nil {
		return sq.InsertBuilder{}, err
	}
	cols["id"] = rec.ID
	return s.sb.Insert(s.table).SetMap(cols), nil
}

func (s *Store) updateQuery(rec core.Record) (sq.UpdateBuilder, error) {
	cols, err := recordColumns(rec)
	if err != nil {
		return sq.UpdateBuilder{}, err
	}
	cols["updated_at"] = sq.Expr("now()")
	return s.sb.Update(s.table).SetMap(cols).Where(sq.Eq{"id": rec.ID}), nil
}

// recordColumns maps a record to column values, encoding each attribute
// group and list as JSON. The id column is left to the caller.
func recordColumns(rec core.Record) (map[string]any, error) {
	cols := map[string]any{
		"brand":                rec.Brand,
		"model":                rec.Model,
		"year":                 rec.Year,
		"type":                 rec.Type,
		"range_km":             rec.Range,
		"battery_capacity_kwh": rec.BatteryCapacity,
		"heat_pump":            string(rec.HeatPump),
		"v2l":                  string(rec.V2L),
	}

	groups := map[string]any{
		"charging_profile":     rec.ChargingProfile,
		"performance":          rec.Performance,
		"dimensions":           rec.Dimensions,
		"efficiency":           rec.Efficiency,
		"comfort":              rec.Comfort,
		"price":                rec.Price,
		"regional_status":      rec.RegionalStatus,
		"environmental_impact": rec.EnvironmentalImpact,
		"warranty":             rec.Warranty,
		"images":               rec.Images,
		"features":             rec.Features,
	}
	for col, v := range groups {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s for %s: %w", col, rec.ID, err)
		}
		cols[col] = string(b)
	}
	return cols, nil
}

// RecordRun stores one sync run summary.
func (s *Store) RecordRun(ctx context.Context, run core.RunSummary) error {
	sqlStr, args, err := s.sb.Insert("sync_runs").SetMap(map[string]any{
		"id":            run.ID,
		"action":        string(run.Command),
		"vehicle_id":    run.VehicleID,
		"success":       run.Success,
		"message":       run.Message,
		"added_count":   run.Added,
		"updated_count": run.Updated,
		"skipped_count": run.Skipped,
		"failed_count":  run.Failed,
		"warning_count": run.Warnings,
		"started_at":    run.StartedAt,
		"duration_ms":   run.DurationMs,
		"ip_address":    run.IPAddress,
		"user_agent":    run.UserAgent,
	}).ToSql()
	if err != nil {
		return err
	}

	if _, err := s.pool.Exec(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("record sync run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the latest runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]core.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	sqlStr, args, err := s.sb.
		Select(
			"id::text", "action", "vehicle_id", "success", "message",
			"added_count", "updated_count", "skipped_count", "failed_count", "warning_count",
			"started_at", "duration_ms", "ip_address", "user_agent",
		).
		From("sync_runs").
		OrderBy("started_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]core.RunSummary, 0, limit)
	for rows.Next() {
		var (
			r       core.RunSummary
			action  string
			started time.Time
		)
		if err := rows.Scan(
			&r.ID, &action, &r.VehicleID, &r.Success, &r.Message,
			&r.Added, &r.Updated, &r.Skipped, &r.Failed, &r.Warnings,
			&started, &r.DurationMs, &r.IPAddress, &r.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		r.Command = core.Command(action)
		r.StartedAt = started
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sync runs: %w", err)
	}
	return runs, nil
}
