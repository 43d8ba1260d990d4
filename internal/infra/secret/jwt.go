// Package secret loads the JWT signing/verification key once at startup
// and holds it in memory, mirroring original_source/server.py's
// set_jwt_secret_key at lifespan startup.
package secret

import (
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// localDummyToken is the static bearer value used for outbound calls when
// Settings.Env == "local", which disables outbound identity-token
// acquisition.
const localDummyToken = "local-dev-token"

// Store holds the JWT key loaded at startup. It is read-only after New and
// safe for concurrent use.
type Store struct {
	key   []byte
	local bool
}

// Load reads the secret from path once and returns a Store. local disables
// outbound identity-token acquisition in favor of a static dummy token.
func Load(path string, local bool) (*Store, error) {
	if local {
		return &Store{local: true}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load jwt secret from %s: %w", path, err)
	}
	key := []byte(strings.TrimSpace(string(data)))
	if len(key) == 0 {
		return nil, fmt.Errorf("jwt secret file %s is empty", path)
	}
	return &Store{key: key}, nil
}

// IsLocal reports whether this Store was loaded in local mode, where no
// signing key exists and inbound bearer verification cannot run.
func (s *Store) IsLocal() bool {
	return s.local
}

// VerifyBearer parses and validates an incoming Authorization header value
// ("Bearer <token>"), returning the token's claims on success.
func (s *Store) VerifyBearer(header string) (jwt.MapClaims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse bearer token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("bearer token is not valid")
	}
	return claims, nil
}

// OutboundToken returns the token the external HTTP clients present as
// their own service-to-service identity. In local mode this is a fixed
// dummy value; otherwise it is signed with the loaded key.
func (s *Store) OutboundToken() (string, error) {
	if s.local {
		return localDummyToken, nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "coordinator",
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign outbound token: %w", err)
	}
	return signed, nil
}
