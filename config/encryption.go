package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// sealedExt marks a file whose contents went through a Sealer.
const sealedExt = ".enc"

var keyDerivationMessage = []byte("pchat-encryption-key-derivation-v1")

// Sealer holds the one AES-256-GCM key that protects credentials.toml and the
// OAuth token files. A nil *Sealer stores them in plain text.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the key from the SSH private key at keyPath by hashing its
// signature over a fixed message. passphrase is only read for encrypted keys.
func NewSealer(keyPath, passphrase string) (*Sealer, error) {
	signer, err := loadSigner(keyPath, passphrase)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(rand.Reader, keyDerivationMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	key := sha256.Sum256(sig.Blob)

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext as nonce || ciphertext || tag.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if s == nil {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal and fails on any modified byte.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if s == nil {
		return data, nil
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return nil, errors.New("ciphertext too short")
	}
	plaintext, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

// Path names the file a secret lives in: name as given in plain text, with
// ".enc" appended when sealed.
func (s *Sealer) Path(name string) string {
	if s == nil {
		return name
	}
	return name + sealedExt
}

// writeFile seals data into Path(name) with owner-only permissions.
func (s *Sealer) writeFile(name string, data []byte) error {
	sealed, err := s.Seal(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", filepath.Base(name), err)
	}
	if err := os.MkdirAll(filepath.Dir(name), 0700); err != nil {
		return err
	}
	return os.WriteFile(s.Path(name), sealed, 0600)
}

// readFile opens Path(name). A missing file returns an error satisfying
// os.IsNotExist.
func (s *Sealer) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		return nil, err
	}
	plaintext, err := s.Open(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt %s: %w", filepath.Base(name), err)
	}
	return plaintext, nil
}
