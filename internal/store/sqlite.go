package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/catalyst/userkey/internal/core"
)

var _ core.KeyStore = (*SQLiteKeyStore)(nil)

// SQLiteKeyStore persists key records in SQLite. A unique index on
// (scope, value) plus delete-reports-rows-affected gives the per-key
// serialization the redemption path relies on.
type SQLiteKeyStore struct {
	db *sqlx.DB
}

// NewSQLiteKeyStore opens (and migrates) the database at path. Pass an
// empty path for an in-memory database.
func NewSQLiteKeyStore(path string) (*SQLiteKeyStore, error) {
	dsn := ":memory:?_journal_mode=WAL"
	if path != "" {
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open key database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &SQLiteKeyStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate key database: %w", err)
	}
	return s, nil
}

func (s *SQLiteKeyStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS user_keys (
			scope          TEXT NOT NULL,
			value          TEXT NOT NULL,
			subject_id     TEXT NOT NULL,
			ip_restriction TEXT NOT NULL DEFAULT '',
			valid_until    INTEGER NOT NULL,
			issued_at      INTEGER NOT NULL,
			PRIMARY KEY (scope, value)
		);
		CREATE INDEX IF NOT EXISTS idx_user_keys_subject ON user_keys (scope, subject_id);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteKeyStore) Close() error {
	return s.db.Close()
}

// keyRow maps 1:1 to the user_keys table columns.
type keyRow struct {
	Scope         string `db:"scope"`
	Value         string `db:"value"`
	SubjectID     string `db:"subject_id"`
	IPRestriction string `db:"ip_restriction"`
	ValidUntil    int64  `db:"valid_until"`
	IssuedAt      int64  `db:"issued_at"`
}

func (r keyRow) toRecord() core.KeyRecord {
	return core.KeyRecord{
		Scope:         r.Scope,
		Value:         r.Value,
		SubjectID:     r.SubjectID,
		IPRestriction: r.IPRestriction,
		ValidUntil:    time.Unix(r.ValidUntil, 0),
		IssuedAt:      time.Unix(r.IssuedAt, 0),
	}
}

func (s *SQLiteKeyStore) Insert(ctx context.Context, rec core.KeyRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_keys (scope, value, subject_id, ip_restriction, valid_until, issued_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Scope, rec.Value, rec.SubjectID, rec.IPRestriction,
		rec.ValidUntil.Unix(), rec.IssuedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert key: %w", err)
	}
	return nil
}

func (s *SQLiteKeyStore) FindByValue(ctx context.Context, scope, value string) (*core.KeyRecord, error) {
	var row keyRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM user_keys WHERE scope = ? AND value = ?`, scope, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("find key: %w", err)
	}
	rec := row.toRecord()
	return &rec, nil
}

func (s *SQLiteKeyStore) DeleteForSubject(ctx context.Context, scope, subjectID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_keys WHERE scope = ? AND subject_id = ?`, scope, subjectID)
	if err != nil {
		return 0, fmt.Errorf("delete keys: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteKeyStore) DeleteExpired(ctx context.Context, scope string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_keys WHERE scope = ? AND valid_until < ?`, scope, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired keys: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteKeyStore) ListActive(ctx context.Context, scope string) ([]core.KeyRecord, error) {
	var rows []keyRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM user_keys WHERE scope = ? AND valid_until > ? ORDER BY issued_at`,
		scope, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("list active keys: %w", err)
	}

	active := make([]core.KeyRecord, 0, len(rows))
	for _, row := range rows {
		active = append(active, row.toRecord())
	}
	return active, nil
}
