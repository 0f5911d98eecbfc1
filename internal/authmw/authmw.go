// Package authmw provides HTTP middleware for bearer token authentication.
package authmw

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
)

// Token is a named bearer credential, e.g. one per clinic front end.
type Token struct {
	Name   string
	Secret string
}

type principalKey struct{}

// ParseTokens parses "name=secret" pairs separated by commas.
// A bare secret is named "default".
func ParseTokens(s string) ([]Token, error) {
	var out []Token
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, secret, ok := strings.Cut(part, "=")
		if !ok {
			name, secret = "default", part
		}
		name, secret = strings.TrimSpace(name), strings.TrimSpace(secret)
		if name == "" || secret == "" {
			return nil, fmt.Errorf("api token %q: name and secret are required", part)
		}
		if seen[name] {
			return nil, fmt.Errorf("api token %q: duplicate name", name)
		}
		seen[name] = true
		out = append(out, Token{Name: name, Secret: secret})
	}
	return out, nil
}

// PrincipalFromContext returns the name of the token that authenticated the request.
func PrincipalFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(principalKey{}).(string)
	return name, ok
}

// BearerToken returns middleware that accepts a single token named "default".
func BearerToken(token string) func(http.Handler) http.Handler {
	return BearerTokens([]Token{{Name: "default", Secret: token}})
}

// BearerTokens returns middleware that validates the Authorization header
// against any of the given tokens. Every token is compared using constant-time
// equality, and the matching token's name is stored on the request context.
func BearerTokens(tokens []Token) func(http.Handler) http.Handler {
	secrets := make([][]byte, len(tokens))
	for i, t := range tokens {
		secrets[i] = []byte(t.Secret)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, `{"error":"missing or malformed authorization header"}`, http.StatusUnauthorized)
				return
			}

			got := []byte(auth[len("Bearer "):])

			match := -1
			for i, want := range secrets {
				if subtle.ConstantTimeCompare(got, want) == 1 && match < 0 && len(want) > 0 {
					match = i
				}
			}
			if match < 0 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), principalKey{}, tokens[match].Name)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
