// SkyLens - Bluesky Follow Recommendations
// Copyright 2026 Tobias Fane (tobifane)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tobifane/skylens

package auth

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tobifane/skylens/internal/config"
)

// NewSessionStore builds the configured session store backend.
//
// "memory" keeps sessions in process and loses them on restart; "badger"
// persists them at security.session_store_path, encrypting the upstream
// tokens when an encryption key is configured.
func NewSessionStore(cfg *config.SecurityConfig) (SessionStore, error) {
	switch cfg.SessionStore {
	case "", "memory":
		return NewMemorySessionStore(), nil

	case "badger":
		if cfg.SessionStorePath == "" {
			return nil, fmt.Errorf("session store path is required for the badger backend")
		}

		encryptor, err := NewTokenEncryptor(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("session token encryption: %w", err)
		}

		opts := badger.DefaultOptions(cfg.SessionStorePath).
			WithLogger(nil)
		db, err := badger.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("open session database: %w", err)
		}
		return NewBadgerSessionStore(db, encryptor), nil

	default:
		return nil, fmt.Errorf("unknown session store backend %q", cfg.SessionStore)
	}
}
