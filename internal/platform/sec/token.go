// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateSecureToken returns length bytes from crypto/rand, base64url encoded
// without padding. Used for session identifiers and unusable passwords.
func GenerateSecureToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", fmt.Errorf("sec_token_generation_failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}
