package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"serp-go/pkg/logger"
)

// SQLiteFileName is the database file created inside Config.DataDir
const SQLiteFileName = "serp.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStorage keeps values in a single-table SQLite database, optionally
// AES encrypted like FileStorage
type SQLiteStorage struct {
	db        *sql.DB
	encryptor *AESEncryptor
	log       *logger.Logger
}

func NewSQLiteStorage(config Config, passphrase string) (*SQLiteStorage, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(config.DataDir, SQLiteFileName)
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	store := &SQLiteStorage{
		db:  db,
		log: logger.GetLogger().WithField("component", "sqlite_storage"),
	}

	if config.EncryptData {
		encryptor, err := NewAESEncryptor(passphrase)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		store.encryptor = encryptor
	}

	store.log.WithFields(map[string]interface{}{
		"path":       path,
		"encryption": config.EncryptData,
	}).Info("SQLite storage initialized")

	return store, nil
}

func (s *SQLiteStorage) Save(ctx context.Context, key string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if s.encryptor != nil {
		if payload, err = s.encryptor.Encrypt(payload); err != nil {
			return fmt.Errorf("failed to encrypt data: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, payload, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Load(ctx context.Context, key string, dest interface{}) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to load %s: %w", key, err)
	}

	if s.encryptor != nil {
		if payload, err = s.encryptor.Decrypt(payload); err != nil {
			s.log.WithError(err).WithField("key", key).Error("Failed to decrypt data")
			return fmt.Errorf("failed to decrypt data: %w", err)
		}
	}
	return decodeJSON(payload, dest)
}

func (s *SQLiteStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStorage) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM kv WHERE key = ?)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return exists, nil
}

// Keys matches on substr rather than LIKE so '%' and '_' in keys need no escaping
func (s *SQLiteStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
