// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var (
	// ErrDecryptionFailed indicates the decryption operation failed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidCiphertext indicates the ciphertext is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

const encryptionContext = "skylens-token-encryption"

// TokenEncryptor provides AES-GCM encryption for upstream Bluesky tokens
// held at rest in the session store. The configured master key is stretched
// with HKDF-SHA256 before use.
//
// A nil TokenEncryptor is valid and means encryption is disabled; all
// operations pass values through unchanged.
type TokenEncryptor struct {
	aead cipher.AEAD
}

// NewTokenEncryptor creates a token encryptor from a base64-encoded master
// key. An empty key returns (nil, nil): encryption disabled.
func NewTokenEncryptor(masterKey string) (*TokenEncryptor, error) {
	if masterKey == "" {
		return nil, nil
	}

	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, fmt.Errorf("decode master key: %w", err)
	}
	if len(key) < 16 {
		return nil, errors.New("master key must be at least 16 bytes")
	}

	derived, err := deriveKey(key, []byte(encryptionContext), 32)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM cipher: %w", err)
	}

	return &TokenEncryptor{aead: aead}, nil
}

// deriveKey derives a key using HKDF-SHA256.
func deriveKey(secret, context []byte, keyLen int) ([]byte, error) {
	reader := hkdf.New(sha256.New, secret, nil, context)
	key := make([]byte, keyLen)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// IsEnabled returns true if encryption is enabled.
func (e *TokenEncryptor) IsEnabled() bool {
	return e != nil && e.aead != nil
}

// Encrypt encrypts the plaintext and returns base64-encoded ciphertext with
// the nonce prepended. Empty strings pass through unchanged.
func (e *TokenEncryptor) Encrypt(plaintext string) (string, error) {
	if !e.IsEnabled() || plaintext == "" {
		return plaintext, nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts base64-encoded ciphertext produced by Encrypt.
func (e *TokenEncryptor) Decrypt(ciphertext string) (string, error) {
	if !e.IsEnabled() || ciphertext == "" {
		return ciphertext, nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: base64 decode failed", ErrInvalidCiphertext)
	}

	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize+1+e.aead.Overhead() {
		return "", fmt.Errorf("%w: data too short", ErrInvalidCiphertext)
	}

	plaintext, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrDecryptionFailed, err.Error())
	}
	return string(plaintext), nil
}

// EncryptSessionTokens returns a copy of the session with the upstream
// tokens encrypted for storage at rest.
func (e *TokenEncryptor) EncryptSessionTokens(session *Session) (*Session, error) {
	if !e.IsEnabled() {
		return session, nil
	}

	sealed := *session
	var err error
	if sealed.AccessJWT, err = e.Encrypt(session.AccessJWT); err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	if sealed.RefreshJWT, err = e.Encrypt(session.RefreshJWT); err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	return &sealed, nil
}

// DecryptSessionTokens reverses EncryptSessionTokens. Token values that look
// like raw JWTs are kept as-is so stores written before encryption was
// enabled stay readable.
func (e *TokenEncryptor) DecryptSessionTokens(session *Session) (*Session, error) {
	if !e.IsEnabled() {
		return session, nil
	}

	opened := *session
	access, err := e.Decrypt(session.AccessJWT)
	if err != nil {
		if !looksLikeJWT(session.AccessJWT) {
			return nil, fmt.Errorf("decrypt access token: %w", err)
		}
		access = session.AccessJWT
	}
	refresh, err := e.Decrypt(session.RefreshJWT)
	if err != nil {
		if !looksLikeJWT(session.RefreshJWT) {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
		refresh = session.RefreshJWT
	}
	opened.AccessJWT = access
	opened.RefreshJWT = refresh
	return &opened, nil
}

// looksLikeJWT checks for the header.payload.signature shape.
func looksLikeJWT(s string) bool {
	parts := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			parts++
		}
	}
	return parts == 2
}

// GenerateEncryptionKey generates a cryptographically secure encryption key,
// base64-encoded for configuration.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate random key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
