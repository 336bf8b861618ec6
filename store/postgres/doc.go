// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: BIGSERIAL submission sequencing, partial indexes backing the
// runnable scan and sweeps, embedded SQL migrations.
package postgres
