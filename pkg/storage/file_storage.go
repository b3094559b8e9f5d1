package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"serp-go/pkg/logger"
)

const (
	plainExt     = ".json"
	encryptedExt = ".enc"
)

// FileStorage writes one file per key under dataDir, optionally sealed with
// AES-GCM, with an optional LRU cache of decoded JSON in front of the disk.
// File names are key digests, so keys of any length and script are safe;
// the key itself is stored inside the record.
type FileStorage struct {
	dataDir   string
	encryptor *AESEncryptor
	cache     Cache
	log       *logger.Logger
	mu        sync.RWMutex
}

// NewFileStorage creates the data directory if needed. passphrase is only
// used when config.EncryptData is set.
func NewFileStorage(config Config, passphrase string) (*FileStorage, error) {
	if config.DataDir == "" {
		return nil, fmt.Errorf("data directory cannot be empty")
	}
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store := &FileStorage{
		dataDir: config.DataDir,
		log:     logger.GetLogger().WithField("component", "file_storage"),
	}

	if config.EncryptData {
		encryptor, err := NewAESEncryptor(passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		store.encryptor = encryptor
	}

	if config.CacheSize > 0 {
		store.cache = NewMemoryCache(config.CacheSize)
	}

	fields := map[string]interface{}{
		"data_dir":   config.DataDir,
		"encryption": config.EncryptData,
		"cache_size": config.CacheSize,
	}
	if store.encryptor != nil {
		fields["key_fingerprint"] = store.encryptor.KeyFingerprint()
	}
	store.log.WithFields(fields).Info("File storage initialized")

	return store, nil
}

// fileRecord is the on-disk layout of one key
type fileRecord struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

func (s *FileStorage) Save(ctx context.Context, key string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	payload, err := json.Marshal(fileRecord{Key: key, Value: jsonData})
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if s.encryptor != nil {
		payload, err = s.encryptor.Encrypt(payload)
		if err != nil {
			s.log.WithError(err).WithField("key", key).Error("Failed to encrypt data")
			return fmt.Errorf("failed to encrypt data: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	filePath := s.filePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write-then-rename so readers never see a partial file.
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, payload, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit file: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(key, jsonData)
	}

	s.log.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(payload),
	}).Debug("Data saved")
	return nil
}

func (s *FileStorage) Load(ctx context.Context, key string, dest interface{}) error {
	if s.cache != nil {
		if cached, found := s.cache.Get(key); found {
			return decodeJSON(cached, dest)
		}
	}

	// The read lock is held through the cache write-back so a concurrent
	// Save cannot be overwritten by the bytes read here.
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, err := s.readRecord(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		s.log.WithError(err).WithField("key", key).Error("Failed to read record")
		return err
	}
	if record.Key != key {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	if err := decodeJSON(record.Value, dest); err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Set(key, record.Value)
	}
	return nil
}

func (s *FileStorage) readRecord(path string) (*fileRecord, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	if s.encryptor != nil {
		payload, err = s.encryptor.Decrypt(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt data: %w", err)
		}
	}

	var record fileRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

func (s *FileStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if s.cache != nil {
		s.cache.Delete(key)
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.filePath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *FileStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ext := s.ext()
	keys := make([]string, 0)
	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}
		record, err := s.readRecord(path)
		if err != nil {
			s.log.WithError(err).WithField("file", d.Name()).Debug("Skipping unreadable record")
			return nil
		}
		if strings.HasPrefix(record.Key, prefix) {
			keys = append(keys, record.Key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	sort.Strings(keys)
	return keys, nil
}

// filePath names the file after the sha256 of the key, sharded by its first
// byte to keep directories small.
func (s *FileStorage) filePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.dataDir, name[:2], name+s.ext())
}

func (s *FileStorage) ext() string {
	if s.encryptor != nil {
		return encryptedExt
	}
	return plainExt
}

func decodeJSON(data []byte, dest interface{}) error {
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
