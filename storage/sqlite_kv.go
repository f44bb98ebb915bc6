package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteKV stores keys in a single SQLite database, <dataDir>/pchat.db.
type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(dataDir string) (*SQLiteKV, error) {
	return openSQLiteKV(filepath.Join(dataDir, "pchat.db"))
}

func openSQLiteKV(dsn string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc's driver serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	kv := &SQLiteKV{db: db}
	if err := kv.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return kv, nil
}

func (kv *SQLiteKV) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	`
	if _, err := kv.db.Exec(schema); err != nil {
		return err
	}

	if err := kv.migrateSchema(); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// migrateSchema adds columns introduced after the first release.
func (kv *SQLiteKV) migrateSchema() error {
	hasUpdatedAt, err := kv.columnExists("kv", "updated_at")
	if err != nil {
		return fmt.Errorf("failed to check for updated_at column: %w", err)
	}
	if !hasUpdatedAt {
		if _, err := kv.db.Exec(`ALTER TABLE kv ADD COLUMN updated_at DATETIME`); err != nil {
			return fmt.Errorf("failed to add updated_at column: %w", err)
		}
	}
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info
func (kv *SQLiteKV) columnExists(tableName, columnName string) (bool, error) {
	rows, err := kv.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid          int
			name         string
			dataType     string
			notNull      int
			defaultValue any
			pk           int
		)
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &defaultValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}
	return false, rows.Err()
}

func (kv *SQLiteKV) Get(key string) ([]byte, error) {
	var value []byte
	err := kv.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (kv *SQLiteKV) Put(key string, value []byte) error {
	_, err := kv.db.Exec(`
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (kv *SQLiteKV) Delete(key string) error {
	if _, err := kv.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (kv *SQLiteKV) Keys(prefix string) ([]string, error) {
	rows, err := kv.db.Query(`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (kv *SQLiteKV) Close() error {
	if kv.db != nil {
		return kv.db.Close()
	}
	return nil
}
