package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrNoKeySource is returned when neither a JWKS URL nor a shared secret is configured
var ErrNoKeySource = errors.New("no JWKS URL or shared secret configured")

// TokenVerifier verifies bearer tokens issued by the auth service
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*models.JWTClaims, error)
}

// Verifier verifies JWT tokens against a JWKS endpoint or an HS256 secret
type Verifier struct {
	jwksManager *JWKSManager
	jwksURL     string
	secret      []byte
	issuer      string
}

var _ TokenVerifier = (*Verifier)(nil)

// VerifierConfig selects the key source. JWKSURL wins when both are set.
type VerifierConfig struct {
	JWKSURL string
	Secret  string
	Issuer  string
}

// NewVerifier creates a new JWT verifier
func NewVerifier(jwksManager *JWKSManager, cfg VerifierConfig) (*Verifier, error) {
	if cfg.JWKSURL == "" && cfg.Secret == "" {
		return nil, ErrNoKeySource
	}
	if jwksManager == nil {
		jwksManager = NewJWKSManager(nil, 0)
	}
	return &Verifier{
		jwksManager: jwksManager,
		jwksURL:     cfg.JWKSURL,
		secret:      []byte(cfg.Secret),
		issuer:      cfg.Issuer,
	}, nil
}

// Verify verifies a JWT token and extracts claims
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParseOption{jwt.WithValidate(true)}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	if v.jwksURL != "" {
		keys, err := v.keySet(ctx, tokenString)
		if err != nil {
			return nil, err
		}
		opts = append(opts, jwt.WithKeySet(keys))
	} else {
		opts = append(opts, jwt.WithKey(jwa.HS256, v.secret))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	if token.Subject() == "" {
		return nil, errors.New("token missing subject claim")
	}

	claims := &models.JWTClaims{
		Sub: token.Subject(),
		Iss: token.Issuer(),
	}
	if exp := token.Expiration(); !exp.IsZero() {
		claims.Exp = exp.Unix()
	}
	if iat := token.IssuedAt(); !iat.IsZero() {
		claims.Iat = iat.Unix()
	}
	claims.Email = stringClaim(token, "email")
	claims.Name = stringClaim(token, "name")
	claims.Role = stringClaim(token, "role")

	return claims, nil
}

// keySet returns the cached JWKS, refetching it once when the token names a
// key ID the cached set does not hold (the issuer rotated its keys)
func (v *Verifier) keySet(ctx context.Context, tokenString string) (jwk.Set, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	kid := tokenKeyID(tokenString)
	if kid == "" {
		return keys, nil
	}
	if _, ok := keys.LookupKeyID(kid); ok {
		return keys, nil
	}

	v.jwksManager.Invalidate(v.jwksURL)
	keys, err = v.jwksManager.GetJWKS(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh JWKS: %w", err)
	}
	return keys, nil
}

func tokenKeyID(tokenString string) string {
	msg, err := jws.Parse([]byte(tokenString))
	if err != nil || len(msg.Signatures()) == 0 {
		return ""
	}
	return msg.Signatures()[0].ProtectedHeaders().KeyID()
}

func stringClaim(token jwt.Token, key string) string {
	v, ok := token.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
