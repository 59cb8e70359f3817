package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/quorum/pkg/audit"
)

var errClosed = errors.New("storage closed")

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements audit.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, creates the schema and checks its
// version.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", config.Path, config.BusyTimeout.Milliseconds())
	if config.WALMode {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return s, nil
}

func (s *SQLiteStorage) initialize() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Append inserts e in a single statement and sets e.Sequence from the
// generated row id.
func (s *SQLiteStorage) Append(ctx context.Context, e *audit.Entry) error {
	var details []byte
	if len(e.Details) > 0 {
		var err error
		details, err = json.Marshal(e.Details)
		if err != nil {
			return audit.NewStorageError("sqlite", "marshal_details", err)
		}
	}

	res, err := s.db.ExecContext(ctx, insertEntry,
		e.ID,
		string(e.Action),
		e.ProposalID,
		e.EntityType,
		e.EntityID,
		e.Actor,
		nullString(details),
		e.ContentHash,
		e.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "append", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return audit.NewStorageError("sqlite", "last_insert_id", err)
	}
	e.Sequence = seq

	s.logger.Debug("audit entry stored",
		"id", e.ID,
		"seq", seq,
		"action", e.Action,
		"proposal_id", e.ProposalID,
	)
	return nil
}

// Query returns entries matching q in canonical order.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Entry, error) {
	if q == nil {
		q = &audit.Query{}
	}

	whereClause, args := buildWhereClause(q)

	sqlQuery := "SELECT " + selectColumns + " FROM audit_entries"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}
	order := "ASC"
	if q.Descending {
		order = "DESC"
	}
	if q.BySequence {
		sqlQuery += " ORDER BY seq " + order
	} else {
		sqlQuery += fmt.Sprintf(" ORDER BY recorded_at_ns %s, seq %s", order, order)
	}

	// SQLite requires LIMIT when OFFSET is present; -1 means no limit.
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		sqlQuery += " LIMIT ? OFFSET ?"
		args = append(args, limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	results := []*audit.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		results = append(results, e)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "iterate", err)
	}
	return results, nil
}

// Count returns the number of entries matching q.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	if q == nil {
		q = &audit.Query{}
	}

	whereClause, args := buildWhereClause(q)
	sqlQuery := "SELECT COUNT(*) FROM audit_entries"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return audit.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite audit storage closed")
	return nil
}

func buildWhereClause(q *audit.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if q.ProposalID != "" {
		conditions = append(conditions, "proposal_id = ?")
		args = append(args, q.ProposalID)
	}
	if q.Actor != "" {
		conditions = append(conditions, "actor = ?")
		args = append(args, q.Actor)
	}
	if q.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, q.EntityID)
	}
	if q.AfterSequence > 0 {
		conditions = append(conditions, "seq > ?")
		args = append(args, q.AfterSequence)
	}
	if q.StartTime != nil {
		conditions = append(conditions, "recorded_at_ns >= ?")
		args = append(args, q.StartTime.UTC().UnixNano())
	}
	if q.EndTime != nil {
		conditions = append(conditions, "recorded_at_ns <= ?")
		args = append(args, q.EndTime.UTC().UnixNano())
	}
	if len(q.Actions) > 0 {
		placeholders := make([]string, len(q.Actions))
		for i, a := range q.Actions {
			placeholders[i] = "?"
			args = append(args, string(a))
		}
		conditions = append(conditions, "action IN ("+strings.Join(placeholders, ", ")+")")
	}

	return strings.Join(conditions, " AND "), args
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*audit.Entry, error) {
	var (
		e       audit.Entry
		action  string
		details sql.NullString
		ns      int64
	)
	if err := row.Scan(
		&e.Sequence,
		&e.ID,
		&action,
		&e.ProposalID,
		&e.EntityType,
		&e.EntityID,
		&e.Actor,
		&details,
		&e.ContentHash,
		&ns,
	); err != nil {
		return nil, err
	}
	e.Action = audit.Action(action)
	e.Timestamp = time.Unix(0, ns).UTC()
	if details.Valid && details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &e.Details); err != nil {
			return nil, fmt.Errorf("decode details: %w", err)
		}
	}
	return &e, nil
}

func nullString(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
