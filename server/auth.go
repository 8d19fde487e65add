package server

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "mirrordroid"
	keyringUser    = "server-token"
)

// LoadToken returns the server token stored in the OS keyring, or "" when none is stored.
func LoadToken() (string, error) {
	token, err := keyring.Get(keyringService, keyringUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read token from keyring: %w", err)
	}
	return token, nil
}

// EnsureToken returns the stored token, generating and storing one when needed.
func EnsureToken() (string, error) {
	token, err := LoadToken()
	if err != nil || token != "" {
		return token, err
	}
	return ResetToken()
}

// ResetToken stores a new random token and returns it.
func ResetToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if err := keyring.Set(keyringService, keyringUser, token); err != nil {
		return "", fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return token, nil
}

func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringUser)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

func requestToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	// browsers cannot set headers on WebSocket upgrades
	return r.URL.Query().Get("token")
}

// authMiddleware rejects requests without the bearer token. The banner
// and CORS preflight requests stay open.
func authMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		got := requestToken(r)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			sendJSONRPCError(w, nil, ErrCodeUnauthorized, errTitleUnauthorized, errMsgBadToken)
			return
		}

		next.ServeHTTP(w, r)
	})
}
