package store

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dukerupert/herald/internal/model"
)

const (
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
	argonTime = 3
	argonMem  = 64 * 1024
	argonPar  = 4

	sealedPrefix = "sealed:"
	saltKey      = "token_salt"
)

// sealer encrypts push token values with AES-256-GCM.
type sealer struct {
	gcm cipher.AEAD
}

// deriveKey derives a 32-byte AES-256 key from a passphrase and salt using Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMem, argonPar, keySize)
}

func newSealer(passphrase string, salt []byte) (*sealer, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return &sealer{gcm: gcm}, nil
}

// seal returns "sealed:" + base64([12-byte nonce][ciphertext]).
func (s *sealer) seal(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// open reverses seal. Values written before sealing was enabled pass through.
func (s *sealer) open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed token: %w", err)
	}
	if len(data) < nonceSize {
		return "", errors.New("sealed token too small")
	}
	plaintext, err := s.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}
	return string(plaintext), nil
}

// tokenSalt loads the sealing salt, creating it on first use.
func (s *Store) tokenSalt(ctx context.Context) ([]byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.Transport("begin salt tx", err)
	}
	defer tx.Rollback()

	var salt []byte
	err = tx.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, saltKey).Scan(&salt)
	if err == nil {
		return salt, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, model.Transport("load token salt", err)
	}

	salt = make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO store_meta (key, value) VALUES (?, ?)`, saltKey, salt); err != nil {
		return nil, model.Transport("save token salt", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, model.Transport("commit salt tx", err)
	}
	return salt, nil
}

func (s *Store) sealToken(token string) (string, error) {
	if s.sealer == nil {
		return token, nil
	}
	return s.sealer.seal(token)
}

func (s *Store) openToken(value string) (string, error) {
	if s.sealer == nil {
		return value, nil
	}
	return s.sealer.open(value)
}
