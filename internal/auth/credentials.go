// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package auth

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcryptCost balances hash strength against login latency.
const bcryptCost = 12

// Credentials verifies the single configured admin account. The password is
// hashed once at startup so the plaintext never lives past initialization.
type Credentials struct {
	username     string
	passwordHash []byte
}

// NewCredentials hashes the configured admin password.
func NewCredentials(username, password string) (*Credentials, error) {
	if username == "" {
		return nil, fmt.Errorf("admin username is required")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("admin password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Credentials{username: username, passwordHash: hash}, nil
}

// Verify reports whether the supplied pair matches. The username comparison
// is constant-time and bcrypt's comparison is timing-safe, and both run
// unconditionally so a wrong username costs the same as a wrong password.
func (c *Credentials) Verify(username, password string) bool {
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(c.username)) == 1
	passwordMatch := bcrypt.CompareHashAndPassword(c.passwordHash, []byte(password)) == nil
	return usernameMatch && passwordMatch
}
