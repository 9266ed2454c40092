// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives: password digests, opaque
// session identifiers and session cookie signing.
//
// # Architecture
//
// This package isolates security-sensitive code from the domain logic. It is an
// Infrastructure service injected into the auth service via constructors.
package sec

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/sync/semaphore"
)

// # Digest Format

const (
	// DigestSeparator joins the derived key and the salt.
	DigestSeparator = "."

	// SaltBytes is the amount of randomness in a salt before hex encoding.
	SaltBytes = 16

	// KeyBytes is the length of the derived key.
	KeyBytes = 64
)

// ScryptParams are the scrypt cost parameters.
type ScryptParams struct {
	N int
	R int
	P int
}

// DefaultScryptParams matches the parameters existing digests were produced with.
var DefaultScryptParams = ScryptParams{N: 16384, R: 8, P: 1}

// # Hasher

// Hasher turns plaintext passwords into salted scrypt digests and verifies them.
//
// A digest is hex(key) + "." + hex(salt). The hex text of the salt, not its raw
// bytes, is fed to scrypt.
//
// # Concurrency
//
// Each derivation runs on its own goroutine and holds one slot of a weighted
// semaphore, so at most N derivations burn CPU at once regardless of how many
// requests are waiting. A caller whose context ends stops waiting; the
// derivation finishes in the background and releases its slot.
type Hasher struct {
	params ScryptParams
	slots  *semaphore.Weighted

	// compare must be a constant-time primitive.
	compare func(x, y []byte) int
}

// NewHasher builds a [Hasher] allowing at most concurrency parallel derivations.
func NewHasher(concurrency int, params ScryptParams) *Hasher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Hasher{
		params:  params,
		slots:   semaphore.NewWeighted(int64(concurrency)),
		compare: subtle.ConstantTimeCompare,
	}
}

// Hash generates a fresh salt and returns the digest of plaintext.
func (hasher *Hasher) Hash(context context.Context, plaintext string) (string, error) {
	saltBytes := make([]byte, SaltBytes)
	if _, err := rand.Read(saltBytes); err != nil {
		return "", fmt.Errorf("sec_hash_salt_failed: %w", err)
	}
	salt := hex.EncodeToString(saltBytes)

	key, err := hasher.derive(context, plaintext, salt)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(key) + DigestSeparator + salt, nil
}

// Verify reports whether plaintext matches digest.
//
// A malformed digest is a mismatch, not an error. The only errors returned are
// context cancellation and scrypt parameter failures.
func (hasher *Hasher) Verify(context context.Context, plaintext, digest string) (bool, error) {
	storedKey, salt, ok := splitDigest(digest)
	if !ok {
		return false, nil
	}

	candidateKey, err := hasher.derive(context, plaintext, salt)
	if err != nil {
		return false, err
	}

	return hasher.compare(storedKey, candidateKey) == 1, nil
}

// derive runs scrypt off the caller's goroutine under the concurrency bound.
func (hasher *Hasher) derive(context context.Context, plaintext, salt string) ([]byte, error) {
	if err := hasher.slots.Acquire(context, 1); err != nil {
		return nil, err
	}

	type outcome struct {
		key []byte
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		defer hasher.slots.Release(1)
		key, err := scrypt.Key([]byte(plaintext), []byte(salt), hasher.params.N, hasher.params.R, hasher.params.P, KeyBytes)
		done <- outcome{key: key, err: err}
	}()

	select {
	case <-context.Done():
		return nil, context.Err()
	case result := <-done:
		if result.err != nil {
			return nil, fmt.Errorf("sec_scrypt_failed: %w", result.err)
		}
		return result.key, nil
	}
}

// splitDigest decodes "hex(key).hex(salt)". The salt is returned as its hex text.
func splitDigest(digest string) (key []byte, salt string, ok bool) {
	keyHex, salt, found := strings.Cut(digest, DigestSeparator)
	if !found || strings.Contains(salt, DigestSeparator) {
		return nil, "", false
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil || len(key) != KeyBytes {
		return nil, "", false
	}

	saltBytes, err := hex.DecodeString(salt)
	if err != nil || len(saltBytes) != SaltBytes {
		return nil, "", false
	}

	return key, salt, true
}
