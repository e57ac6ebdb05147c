package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cosintapp/cosint/internal/httpkit"
)

const defaultTTL = time.Hour

// JWKSVerifier validates tokens against the issuer's published key set.
// Keys are cached with a TTL; an unknown key ID triggers one refresh before
// the token is rejected, so key rotation does not strand live clients.
type JWKSVerifier struct {
	logger     *slog.Logger
	httpClient *http.Client
	jwksURL    string
	ttl        time.Duration

	mu        sync.Mutex
	keys      map[string]any
	fetchedAt time.Time
}

// NewJWKSVerifier creates a verifier for the given issuer base URL. ttl <= 0
// selects the default cache lifetime.
func NewJWKSVerifier(logger *slog.Logger, issuerURL string, ttl time.Duration) *JWKSVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &JWKSVerifier{
		logger:  logger.With("component", "auth"),
		jwksURL: strings.TrimRight(issuerURL, "/") + "/auth/v1/.well-known/jwks.json",
		ttl:     ttl,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(10 * time.Second),
		),
	}
}

// Verify checks the token signature, audience and expiry, returning the
// subject claim as the user ID.
func (v *JWKSVerifier) Verify(ctx context.Context, tokenString string) (string, error) {
	refreshed := false

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("token has no key ID")
		}
		key, err := v.keyForKid(ctx, kid, &refreshed)
		if err != nil {
			return nil, err
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"ES256", "HS256"}),
		jwt.WithAudience("authenticated"),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token verification failed", "error", err)
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}

// keyForKid resolves a key ID from the cache, refreshing the key set when
// the cache is stale or the kid is unknown. At most one refresh happens per
// verification.
func (v *JWKSVerifier) keyForKid(ctx context.Context, kid string, refreshed *bool) (any, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	stale := time.Since(v.fetchedAt) > v.ttl
	if v.keys == nil || stale {
		if err := v.fetchLocked(ctx); err != nil {
			return nil, err
		}
		*refreshed = true
	}

	if key, ok := v.keys[kid]; ok {
		return key, nil
	}

	if !*refreshed {
		if err := v.fetchLocked(ctx); err != nil {
			return nil, err
		}
		*refreshed = true
		if key, ok := v.keys[kid]; ok {
			return key, nil
		}
	}
	return nil, fmt.Errorf("unknown key ID %q", kid)
}

// fetchLocked downloads and parses the key set. Callers hold v.mu.
func (v *JWKSVerifier) fetchLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 2048)
		v.logger.Warn("jwks fetch failed", "status", resp.StatusCode, "body", body)
		return fmt.Errorf("jwks fetch returned %d", resp.StatusCode)
	}

	var doc struct {
		Keys []jsonWebKey `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, k := range doc.Keys {
		key, err := k.publicKey()
		if err != nil {
			v.logger.Warn("skipping unusable jwk", "kid", k.Kid, "kty", k.Kty, "error", err)
			continue
		}
		keys[k.Kid] = key
	}

	v.keys = keys
	v.fetchedAt = time.Now()
	v.logger.Debug("jwks refreshed", "keys", len(keys))
	return nil
}

type jsonWebKey struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
	K   string `json:"k"`
}

func (k jsonWebKey) publicKey() (any, error) {
	switch k.Kty {
	case "EC":
		if k.Crv != "P-256" {
			return nil, fmt.Errorf("unsupported curve %q", k.Crv)
		}
		x, err := base64.RawURLEncoding.DecodeString(k.X)
		if err != nil {
			return nil, fmt.Errorf("decode x: %w", err)
		}
		y, err := base64.RawURLEncoding.DecodeString(k.Y)
		if err != nil {
			return nil, fmt.Errorf("decode y: %w", err)
		}
		return &ecdsa.PublicKey{
			Curve: elliptic.P256(),
			X:     new(big.Int).SetBytes(x),
			Y:     new(big.Int).SetBytes(y),
		}, nil
	case "oct":
		secret, err := base64.RawURLEncoding.DecodeString(k.K)
		if err != nil {
			return nil, fmt.Errorf("decode k: %w", err)
		}
		return secret, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", k.Kty)
	}
}
