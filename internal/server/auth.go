package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing bearer token")
	ErrInvalidToken  = errors.New("invalid token")
)

// StaffAuth identifies staff sessions by bearer token. Tokens are configured
// as "name:token" or a bare token, which maps to the name "staff".
type StaffAuth struct {
	tokens map[string]string
}

func NewStaffAuth(entries []string) *StaffAuth {
	a := &StaffAuth{tokens: make(map[string]string)}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, token, ok := strings.Cut(entry, ":")
		if !ok {
			name, token = "staff", entry
		}
		if token = strings.TrimSpace(token); token != "" {
			a.tokens[token] = strings.TrimSpace(name)
		}
	}
	return a
}

// Authenticate returns the staff name for the request's credential. Browsers
// cannot set headers on websocket upgrades, so a "token" query parameter is
// accepted as well.
func (a *StaffAuth) Authenticate(r *http.Request) (string, error) {
	token, err := extractBearer(r)
	if errors.Is(err, ErrMissingBearer) {
		token = r.URL.Query().Get("token")
		if token == "" {
			return "", ErrMissingBearer
		}
	} else if err != nil {
		return "", err
	}

	for known, name := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			return name, nil
		}
	}
	return "", ErrInvalidToken
}

func extractBearer(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", ErrInvalidToken
	}
	return token, nil
}

type staffKey struct{}

func staffName(ctx context.Context) string {
	name, _ := ctx.Value(staffKey{}).(string)
	return name
}

func (a *StaffAuth) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="roomline"`)
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), staffKey{}, name)))
	}
}
