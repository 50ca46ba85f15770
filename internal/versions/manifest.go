package versions

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current manifest schema version. Bump this when the
// schema changes; a mismatched manifest must be deleted and is rebuilt from
// the media directory on the next open.
const schemaVersion = 1

// ErrSchemaMismatch indicates the manifest schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	sqliteConstraintCode    = 19
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const versionColumns = "seq, id, asset, filename, parent, operation, size_bytes, created_at"

// manifest persists registered versions in SQLite so lineage survives
// restarts. It is an index over the media directory, never the authority.
type manifest struct {
	db       *sql.DB
	path     string
	readOnly bool
}

var errNoSchema = errors.New("manifest schema not initialized")

func openManifest(ctx context.Context, path string) (*manifest, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure manifest directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps inserts strictly ordered behind the store mutex.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	m := &manifest{db: db, path: path}
	if err := m.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// openManifestReadOnly opens an existing manifest without ever writing to it.
// A missing file or an uninitialized database yields a nil manifest.
func openManifestReadOnly(ctx context.Context, path string) (*manifest, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	dsn := (&url.URL{
		Scheme:   "file",
		Path:     path,
		RawQuery: "mode=ro&_pragma=busy_timeout(5000)&_pragma=query_only(1)",
	}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	m := &manifest{db: db, path: path, readOnly: true}
	if err := m.initSchema(ctx); err != nil {
		_ = db.Close()
		if errors.Is(err, errNoSchema) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (m *manifest) close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return m.db.Close()
}

func (m *manifest) initSchema(ctx context.Context) error {
	var tableExists int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		if m.readOnly {
			return errNoSchema
		}
		return m.createSchema(ctx)
	}

	var version int
	if err := m.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: manifest %s has version %d, expected %d (delete it to rebuild from disk)",
			ErrSchemaMismatch, m.path, version, schemaVersion)
	}
	return nil
}

func (m *manifest) createSchema(ctx context.Context) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (m *manifest) load(ctx context.Context) ([]Version, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT "+versionColumns+" FROM versions ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}
	defer rows.Close()

	var out []Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (m *manifest) insert(ctx context.Context, v Version) error {
	return retryOnBusy(ctx, func() error {
		_, err := m.db.ExecContext(ctx,
			"INSERT INTO versions ("+versionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			v.Seq, v.ID, v.Asset, v.Filename,
			nullableString(v.Parent), nullableString(v.Operation),
			v.SizeBytes, v.CreatedAt.UTC().Format(time.RFC3339Nano),
		)
		return err
	})
}

func (m *manifest) remove(ctx context.Context, filenames []string) error {
	if len(filenames) == 0 {
		return nil
	}
	query := "DELETE FROM versions WHERE filename IN (" + makePlaceholders(len(filenames)) + ")"
	args := make([]any, len(filenames))
	for i, name := range filenames {
		args[i] = name
	}
	return retryOnBusy(ctx, func() error {
		_, err := m.db.ExecContext(ctx, query, args...)
		return err
	})
}

func scanVersion(scanner interface{ Scan(dest ...any) error }) (Version, error) {
	var (
		v          Version
		parent     sql.NullString
		operation  sql.NullString
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&v.Seq, &v.ID, &v.Asset, &v.Filename, &parent, &operation, &v.SizeBytes, &createdRaw); err != nil {
		return Version{}, err
	}
	v.Parent = parent.String
	v.Operation = operation.String
	if created, err := time.Parse(time.RFC3339Nano, createdRaw.String); err == nil {
		v.CreatedAt = created
	}
	return v, nil
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code(), true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code&0xff == sqliteConstraintCode {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
