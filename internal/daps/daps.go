// Package daps validates DAPS-issued bearer tokens. The token subject is the
// identity of the calling connector.
package daps

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "clearinghouse/pkg/domain-errors"
)

// Claims are the claims read from a DAPS token. Older DAPS deployments put
// the connector identity in referringConnector rather than sub.
type Claims struct {
	ReferringConnector string `json:"referringConnector,omitempty"`
	jwt.RegisteredClaims
}

// Config selects the verification key and the expected issuer and audience.
// Empty Issuer or Audience disables that check.
type Config struct {
	Secret        string
	PublicKeyFile string
	Issuer        string
	Audience      string
}

// Validator verifies token signatures and registered claims.
type Validator struct {
	method  jwt.SigningMethod
	key     any
	options []jwt.ParserOption
}

// NewValidator builds a Validator for an HMAC secret or an RSA public key
// in PEM form.
func NewValidator(cfg Config) (*Validator, error) {
	v := &Validator{}
	switch {
	case cfg.Secret != "" && cfg.PublicKeyFile != "":
		return nil, errors.New("daps: configure either a secret or a public key, not both")
	case cfg.Secret != "":
		v.method = jwt.SigningMethodHS256
		v.key = []byte(cfg.Secret)
	case cfg.PublicKeyFile != "":
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("daps: read public key: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
		if err != nil {
			return nil, fmt.Errorf("daps: parse public key: %w", err)
		}
		v.method = jwt.SigningMethodRS256
		v.key = key
	default:
		return nil, errors.New("daps: no verification key configured")
	}

	v.options = []jwt.ParserOption{
		jwt.WithValidMethods([]string{v.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		v.options = append(v.options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		v.options = append(v.options, jwt.WithAudience(cfg.Audience))
	}
	return v, nil
}

func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.key, nil
	}, v.options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Subject validates tokenString and returns the connector identity it
// carries.
func (v *Validator) Subject(tokenString string) (string, error) {
	claims, err := v.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	switch {
	case claims.Subject != "":
		return claims.Subject, nil
	case claims.ReferringConnector != "":
		return claims.ReferringConnector, nil
	}
	return "", dErrors.New(dErrors.CodeUnauthorized, "token has no subject")
}

// Issuer signs HS256 tokens. It stands in for a DAPS in development setups
// and tests.
type Issuer struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewIssuer(secret, issuer, audience string) *Issuer {
	return &Issuer{
		signingKey: []byte(secret),
		issuer:     issuer,
		audience:   audience,
	}
}

func (i *Issuer) Issue(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
		},
	}
	if i.audience != "" {
		claims.Audience = jwt.ClaimStrings{i.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
