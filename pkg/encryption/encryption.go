// Package encryption provides at-rest page encryption as a
// storage.FileManager decorator, plus the key-derivation plumbing an
// operator-supplied passphrase needs to become an AES-256 key.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Key-derivation parameters. saltSize and keySize are fixed by the
// snapshot of derived configs already written to operators' key files;
// changing either invalidates existing passphrase-derived keys.
const (
	keySize          = 32
	saltSize         = 32
	pbkdf2Iterations = 100_000
)

// Algorithm selects the page cipher.
type Algorithm uint8

const (
	// AlgorithmAES256GCM authenticates as well as encrypts; a flipped
	// bit anywhere in the stored record fails the GCM open on read.
	AlgorithmAES256GCM Algorithm = iota
	// AlgorithmNone disables encryption. The decorator still reshapes
	// pages into its two-physical-page record format.
	AlgorithmNone
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmAES256GCM:
		return "AES-256-GCM"
	case AlgorithmNone:
		return "None"
	default:
		return "Unknown"
	}
}

// Config carries the cipher selection and key material. Key is the raw
// 32-byte AES key; Salt is retained when the key was derived from a
// passphrase so the same config can be re-derived at next startup.
type Config struct {
	Algorithm Algorithm
	Key       []byte
	Salt      []byte
}

// DefaultConfig returns a config with encryption disabled.
func DefaultConfig() *Config {
	return &Config{Algorithm: AlgorithmNone}
}

// NewConfigFromPassword derives a fresh key from password with PBKDF2
// over a newly generated random salt.
func NewConfigFromPassword(password string, algorithm Algorithm) (*Config, error) {
	if password == "" {
		return nil, fmt.Errorf("encryption: password must not be empty")
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("encryption: generate salt: %w", err)
	}

	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
	return &Config{Algorithm: algorithm, Key: key, Salt: salt}, nil
}

// NewConfigFromPasswordAndSalt re-derives the key a previous
// NewConfigFromPassword run produced, given the salt it stored.
func NewConfigFromPasswordAndSalt(password string, salt []byte, algorithm Algorithm) (*Config, error) {
	if password == "" {
		return nil, fmt.Errorf("encryption: password must not be empty")
	}
	if len(salt) != saltSize {
		return nil, fmt.Errorf("encryption: salt must be %d bytes, got %d", saltSize, len(salt))
	}
	key := pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, keySize, sha256.New)
	return &Config{Algorithm: algorithm, Key: key, Salt: salt}, nil
}

// NewConfigFromKey wraps an explicit 32-byte key.
func NewConfigFromKey(key []byte, algorithm Algorithm) (*Config, error) {
	if algorithm != AlgorithmNone && len(key) != keySize {
		return nil, fmt.Errorf("encryption: key must be %d bytes for AES-256, got %d", keySize, len(key))
	}
	return &Config{Algorithm: algorithm, Key: key}, nil
}

// Encryptor seals and opens page-sized records. The GCM AEAD is built
// once at construction; Encrypt and Decrypt are safe for concurrent use.
type Encryptor struct {
	config *Config
	aead   cipher.AEAD
}

// NewEncryptor validates config and prepares the cipher.
func NewEncryptor(config *Config) (*Encryptor, error) {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Encryptor{config: config}
	if config.Algorithm == AlgorithmNone {
		return e, nil
	}

	if len(config.Key) != keySize {
		return nil, fmt.Errorf("encryption: key must be %d bytes, got %d", keySize, len(config.Key))
	}
	block, err := aes.NewCipher(config.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryption: create GCM: %w", err)
	}
	e.aead = aead
	return e, nil
}

// Encrypt seals plaintext into [nonce][ciphertext+tag]. With
// AlgorithmNone the plaintext passes through untouched.
func (e *Encryptor) Encrypt(plaintext []byte) ([]byte, error) {
	if e.config.Algorithm == AlgorithmNone {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("encryption: generate nonce: %w", err)
	}
	return e.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a record produced by Encrypt. Authentication failure —
// wrong key, truncated record, modified bytes — is an error, never a
// silent garbage page.
func (e *Encryptor) Decrypt(ciphertext []byte) ([]byte, error) {
	if e.config.Algorithm == AlgorithmNone {
		return ciphertext, nil
	}

	nonceSize := e.aead.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("encryption: record shorter than nonce")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("encryption: open failed: %w", err)
	}
	return plaintext, nil
}
