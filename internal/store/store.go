// Package store persists metric samples and login events to a relational
// database. Every write opens its own short-lived connection, executes one
// parameterized insert, and closes again; a dropped write is never retried.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/secsuite/hostwatch/internal/model"
)

// Sink writes one record per call. It holds no open connection between
// calls, so the two poll loops never share database state in-process.
type Sink struct {
	driver string
	dsn    string
}

// New creates a sink for the given database/sql driver and DSN. An
// unregistered driver is a startup error; everything after startup degrades
// to logged, dropped writes.
func New(driver, dsn string) (*Sink, error) {
	if !slices.Contains(sql.Drivers(), driver) {
		return nil, fmt.Errorf("database driver %q is not available (have %v)", driver, sql.Drivers())
	}
	if dsn == "" {
		return nil, fmt.Errorf("empty database DSN")
	}
	return &Sink{driver: driver, dsn: dsn}, nil
}

// MySQLDSN builds a DSN for the mysql driver from discrete credentials.
func MySQLDSN(user, password, host, dbName string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = dbName
	return cfg.FormatDSN()
}

// SQLiteDSN builds a DSN for the sqlite driver from a database file path.
func SQLiteDSN(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func (s *Sink) open() (*sql.DB, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the two tables if they do not exist. Statements run
// one at a time; the mysql driver rejects multi-statement batches.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// InsertMetricSample appends one telemetry row.
func (s *Sink) InsertMetricSample(ctx context.Context, sample model.MetricSample) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		INSERT INTO metric_samples
		(ts, hostname, internal_ip, external_ip,
		 cpu_pct, mem_pct, disk_pct, load_avg,
		 latency_gateway_ms, latency_external_ms,
		 mem_used_mb, mem_free_mb, disk_used_mb, disk_free_mb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sample.Timestamp, sample.Hostname, sample.InternalIP, sample.ExternalIP,
		sample.CPUPct, sample.MemPct, sample.DiskPct, sample.LoadAvg,
		sample.LatencyGatewayMs, sample.LatencyExternalMs,
		sample.MemUsedMB, sample.MemFreeMB, sample.DiskUsedMB, sample.DiskFreeMB,
	)
	if err != nil {
		return fmt.Errorf("inserting metric sample: %w", err)
	}
	return nil
}

// InsertLoginEvent appends one login event row.
func (s *Sink) InsertLoginEvent(ctx context.Context, ev model.LoginEvent) error {
	db, err := s.open()
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, `
		INSERT INTO login_events (ts, log_entry) VALUES (?, ?)`,
		ev.Timestamp, ev.LogEntry,
	)
	if err != nil {
		return fmt.Errorf("inserting login event: %w", err)
	}
	return nil
}

// CountMetricSamples reports the number of persisted telemetry rows.
func (s *Sink) CountMetricSamples(ctx context.Context) (int64, error) {
	return s.count(ctx, "metric_samples")
}

// CountLoginEvents reports the number of persisted login event rows.
func (s *Sink) CountLoginEvents(ctx context.Context) (int64, error) {
	return s.count(ctx, "login_events")
}

func (s *Sink) count(ctx context.Context, table string) (int64, error) {
	db, err := s.open()
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting %s: %w", table, err)
	}
	return n, nil
}
