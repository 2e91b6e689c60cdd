// Cinelog - Film Social Cataloguing and Realtime Messaging
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinelog

package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

// Key builds a namespaced key of the form domain:subject[:qualifier...].
//
//	cache.Key("conversations", userID, "list") // conversations:alice:list
//	cache.Key("films", "603")                  // films:603
func Key(domain, subject string, qualifiers ...string) string {
	parts := make([]string, 0, 2+len(qualifiers))
	parts = append(parts, domain, subject)
	parts = append(parts, qualifiers...)
	return strings.Join(parts, ":")
}

// GenerateKey creates a cache key from the method name and parameters.
// Parameters are hashed so arbitrary query input yields a bounded key.
func GenerateKey(method string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Fallback to simple string key
		return fmt.Sprintf("%s:%v", method, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
