// Package resettoken issues and validates single-use password-reset tokens.
// Tokens are HMAC-signed JSON blobs bound to a user id; used tokens are held
// in memory until they would have expired anyway.
package resettoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

const defaultTokenExpiry = 30 * time.Minute

var (
	secret []byte
	store  = &tokenStore{
		tokens: make(map[string]time.Time),
	}
)

type tokenStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

type ResetToken struct {
	UserID    string `json:"uid"`
	ExpiresAt int64  `json:"exp"`
	Nonce     string `json:"nce"`
}

func SetSecret(s string) {
	secret = []byte(s)
}

func StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			cleanup()
		}
	}()
}

func Generate(userID string) string {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return ""
	}

	tok := ResetToken{
		UserID:    userID,
		ExpiresAt: time.Now().Add(defaultTokenExpiry).Unix(),
		Nonce:     hex.EncodeToString(nonce),
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return ""
	}

	encoded := base64.RawURLEncoding.EncodeToString(data)
	return encoded + "." + sign(data)
}

func Validate(tokenString string) (*ResetToken, error) {
	dataPart, sigPart, err := split(tokenString)
	if err != nil {
		return nil, err
	}

	decoded, err := base64.RawURLEncoding.DecodeString(dataPart)
	if err != nil {
		return nil, fmt.Errorf("invalid token encoding")
	}

	if !hmac.Equal([]byte(sign(decoded)), []byte(sigPart)) {
		return nil, fmt.Errorf("invalid token signature")
	}

	var tok ResetToken
	if err := json.Unmarshal(decoded, &tok); err != nil {
		return nil, fmt.Errorf("invalid token data")
	}

	if time.Now().Unix() > tok.ExpiresAt {
		return nil, fmt.Errorf("token expired")
	}

	if isUsed(tokenString) {
		return nil, fmt.Errorf("token already used")
	}

	return &tok, nil
}

// Consume validates the token and burns it in one step.
func Consume(tokenString string) (*ResetToken, error) {
	tok, err := Validate(tokenString)
	if err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	store.tokens[tokenString] = time.Now()

	return tok, nil
}

func isUsed(tokenString string) bool {
	store.mu.RLock()
	defer store.mu.RUnlock()
	_, exists := store.tokens[tokenString]
	return exists
}

func cleanup() {
	store.mu.Lock()
	defer store.mu.Unlock()
	threshold := time.Now().Add(-defaultTokenExpiry)
	for key, usedAt := range store.tokens {
		if usedAt.Before(threshold) {
			delete(store.tokens, key)
		}
	}
}

func sign(data []byte) string {
	key := secret
	if len(key) == 0 {
		key = []byte("dailyflo-reset-token-fallback")
	}
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func split(tokenString string) (string, string, error) {
	for i := len(tokenString) - 1; i >= 0; i-- {
		if tokenString[i] == '.' {
			if i == len(tokenString)-1 {
				break
			}
			return tokenString[:i], tokenString[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid token format")
}
