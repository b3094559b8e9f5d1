package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize          = 32 // AES-256
	pbkdf2Iterations = 100_000
)

// defaultSalt is fixed so the same passphrase decrypts data across restarts
var defaultSalt = []byte("serp-go-history-salt-v1")

// AESEncryptor seals values with AES-256-GCM. Each ciphertext is prefixed
// with its random nonce.
type AESEncryptor struct {
	aead cipher.AEAD
	key  []byte
}

// NewAESEncryptor derives an AES-256 key from passphrase with PBKDF2-SHA256
func NewAESEncryptor(passphrase string) (*AESEncryptor, error) {
	return NewAESEncryptorWithSalt(passphrase, defaultSalt)
}

func NewAESEncryptorWithSalt(passphrase string, salt []byte) (*AESEncryptor, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}

	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESEncryptor{aead: aead, key: key}, nil
}

func (e *AESEncryptor) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *AESEncryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// KeyFingerprint identifies the derived key in logs without revealing it
func (e *AESEncryptor) KeyFingerprint() string {
	hash := sha256.Sum256(e.key)
	return hex.EncodeToString(hash[:8])
}
