package store

// Portable DDL: the column types below carry the same meaning under both the
// sqlite and mysql drivers. Both tables are append-only; nothing in this
// process updates or deletes a row after insert.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS metric_samples (
		ts                  BIGINT NOT NULL,
		hostname            VARCHAR(255) NOT NULL,
		internal_ip         VARCHAR(64),
		external_ip         VARCHAR(64),
		cpu_pct             DOUBLE PRECISION NOT NULL,
		mem_pct             DOUBLE PRECISION NOT NULL,
		disk_pct            DOUBLE PRECISION NOT NULL,
		load_avg            DOUBLE PRECISION NOT NULL,
		latency_gateway_ms  DOUBLE PRECISION,
		latency_external_ms DOUBLE PRECISION,
		mem_used_mb         DOUBLE PRECISION NOT NULL,
		mem_free_mb         DOUBLE PRECISION NOT NULL,
		disk_used_mb        DOUBLE PRECISION NOT NULL,
		disk_free_mb        DOUBLE PRECISION NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS login_events (
		ts        BIGINT NOT NULL,
		log_entry TEXT NOT NULL
	)`,
}
