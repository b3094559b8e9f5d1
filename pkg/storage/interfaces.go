package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when a key has never been saved or was deleted
var ErrNotFound = errors.New("key not found")

type Config struct {
	DataDir     string `json:"data_dir"`
	CacheSize   int    `json:"cache_size"`
	EncryptData bool   `json:"encrypt_data"`
}

// Storage persists JSON-encodable values under string keys
type Storage interface {
	Save(ctx context.Context, key string, data interface{}) error
	Load(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Keys lists stored keys starting with prefix, in lexical order. Every
	// driver supports it so stored data can be enumerated for maintenance
	// and migration between drivers.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type Cache interface {
	Set(key string, value []byte)
	Get(key string) ([]byte, bool)
	Delete(key string)
	Clear()
}
