// AngelaMos | 2026
// jwt.go

package auth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/carterperez-dev/templates/go-auth-api/internal/config"
	"github.com/carterperez-dev/templates/go-auth-api/internal/core"
	"github.com/carterperez-dev/templates/go-auth-api/internal/user"
)

const tokenTypeAccess = "access"

// JWTManager issues and verifies access tokens. HS256 signs with a shared
// secret; ES256 signs with a PEM key pair and publishes the public half as JWKS.
type JWTManager struct {
	alg        jwa.SignatureAlgorithm
	signKey    jwk.Key
	verifyKey  jwk.Key
	publicJWKS jwk.Set
	config     config.JWTConfig
	now        func() time.Time
}

type JWTOption func(*JWTManager)

// WithClock replaces time.Now for validation of exp, nbf and iat.
func WithClock(now func() time.Time) JWTOption {
	return func(m *JWTManager) {
		m.now = now
	}
}

func NewJWTManager(cfg config.JWTConfig, opts ...JWTOption) (*JWTManager, error) {
	m := &JWTManager{config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	switch cfg.Algorithm {
	case config.AlgorithmHS256, "":
		err = m.loadSecret(cfg.Secret)
	case config.AlgorithmES256:
		err = m.loadKeyPair(cfg.PrivateKeyPath)
	default:
		err = fmt.Errorf("unsupported algorithm %q", cfg.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *JWTManager) loadSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("jwt secret is empty")
	}

	key, err := jwk.Import([]byte(secret))
	if err != nil {
		return fmt.Errorf("import secret: %w", err)
	}

	m.alg = jwa.HS256()
	m.signKey = key
	m.verifyKey = key
	return nil
}

func (m *JWTManager) loadKeyPair(privateKeyPath string) error {
	privateKeyPEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return fmt.Errorf("read private key: %w", err)
	}

	privateKey, err := jwk.ParseKey(privateKeyPEM, jwk.WithPEM(true))
	if err != nil {
		return fmt.Errorf("parse private key: %w", err)
	}

	if setErr := privateKey.Set(jwk.AlgorithmKey, jwa.ES256()); setErr != nil {
		return fmt.Errorf("set algorithm: %w", setErr)
	}

	keyID := uuid.New().String()[:8]
	if setErr := privateKey.Set(jwk.KeyIDKey, keyID); setErr != nil {
		return fmt.Errorf("set key id: %w", setErr)
	}

	publicKey, err := privateKey.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	if setErr := publicKey.Set(jwk.KeyUsageKey, "sig"); setErr != nil {
		return fmt.Errorf("set key usage: %w", setErr)
	}

	publicJWKS := jwk.NewSet()
	if addErr := publicJWKS.AddKey(publicKey); addErr != nil {
		return fmt.Errorf("add key to set: %w", addErr)
	}

	m.alg = jwa.ES256()
	m.signKey = privateKey
	m.verifyKey = publicKey
	m.publicJWKS = publicJWKS
	return nil
}

// GenerateKeyPair writes a fresh P-256 key pair as PEM files.
func GenerateKeyPair(privateKeyPath, publicKeyPath string) error {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	jwkPrivate, err := jwk.Import(privateKey)
	if err != nil {
		return fmt.Errorf("import private key: %w", err)
	}

	privatePEM, err := jwk.Pem(jwkPrivate)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}

	if writeErr := os.WriteFile(privateKeyPath, privatePEM, 0o600); writeErr != nil {
		return fmt.Errorf("write private key: %w", writeErr)
	}

	jwkPublic, err := jwkPrivate.PublicKey()
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}

	publicPEM, err := jwk.Pem(jwkPublic)
	if err != nil {
		return fmt.Errorf("encode public key: %w", err)
	}

	//nolint:gosec // G306: public key is meant to be readable
	if writeErr := os.WriteFile(publicKeyPath, publicPEM, 0o644); writeErr != nil {
		return fmt.Errorf("write public key: %w", writeErr)
	}

	return nil
}

type Claims struct {
	Subject   string
	TokenID   string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issue signs a token for subject that expires at issuedAt plus the configured TTL.
func (m *JWTManager) Issue(
	payload user.LoginPayload,
	subject string,
	issuedAt time.Time,
) (user.AuthToken, error) {
	issuedAt = issuedAt.UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(m.config.AccessTokenExpire)

	token, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(m.config.Issuer).
		Audience([]string{m.config.Audience}).
		Subject(subject).
		IssuedAt(issuedAt).
		NotBefore(issuedAt).
		Expiration(expiresAt).
		Claim("type", tokenTypeAccess).
		Claim("email", payload.Email).
		Claim("role", payload.Role).
		Claim("profile", payload.Profile).
		Build()
	if err != nil {
		return user.AuthToken{}, fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(m.alg, m.signKey))
	if err != nil {
		return user.AuthToken{}, fmt.Errorf("sign token: %w", err)
	}

	return user.AuthToken{
		AccessToken: string(signed),
		GeneratedAt: issuedAt,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify checks signature, expiry, issuer and audience. Errors wrap exactly one
// of core.ErrTokenInvalid, core.ErrTokenExpired or core.ErrTokenClaimMismatch.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(m.alg, m.verifyKey),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(m.now)),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
	)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", classifyParseError(err))
	}

	if typ, err := stringClaim(token, "type"); err != nil || typ != tokenTypeAccess {
		return nil, fmt.Errorf("verify token: not an access token: %w", core.ErrTokenInvalid)
	}

	subject, ok := token.Subject()
	if !ok || subject == "" {
		return nil, fmt.Errorf("verify token: missing subject: %w", core.ErrTokenInvalid)
	}

	claims := &Claims{Subject: subject}
	claims.TokenID, _ = token.JwtID()
	claims.IssuedAt, _ = token.IssuedAt()
	claims.ExpiresAt, _ = token.Expiration()

	if claims.Email, err = stringClaim(token, "email"); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if claims.Role, err = stringClaim(token, "role"); err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	return claims, nil
}

func stringClaim(token jwt.Token, name string) (string, error) {
	var v string
	if err := token.Get(name, &v); err != nil {
		return "", fmt.Errorf("missing %s claim: %w", name, core.ErrTokenInvalid)
	}
	return v, nil
}

// classifyParseError maps jwx validation failures onto the core token
// sentinels. jwx reports failed claims as `"<claim>" not satisfied`.
func classifyParseError(err error) error {
	msg := err.Error()
	failed := func(claim string) bool {
		return strings.Contains(msg, `"`+claim+`"`) && strings.Contains(msg, "not satisfied")
	}

	switch {
	case failed("exp"):
		return core.ErrTokenExpired
	case failed("iss"), failed("aud"):
		return core.ErrTokenClaimMismatch
	default:
		return core.ErrTokenInvalid
	}
}

// JWKSHandler serves the public key set. HS256 has nothing to publish.
func (m *JWTManager) JWKSHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.publicJWKS == nil {
			core.NotFound(w, "key set")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age=3600")

		if err := json.NewEncoder(w).Encode(m.publicJWKS); err != nil {
			core.InternalServerError(w, err)
			return
		}
	}
}

func (m *JWTManager) Algorithm() string {
	return m.alg.String()
}

func (m *JWTManager) KeyID() string {
	var kid string
	//nolint:errcheck // HS256 keys carry no key id
	_ = m.signKey.Get(jwk.KeyIDKey, &kid)
	return kid
}

func (m *JWTManager) TTL() time.Duration {
	return m.config.AccessTokenExpire
}
