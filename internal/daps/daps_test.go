package daps

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "clearinghouse/pkg/domain-errors"
)

const (
	testSecret   = "test-signing-key-with-enough-bytes"
	testIssuer   = "https://daps.example"
	testAudience = "idsc:IDS_CONNECTORS_ALL"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(Config{Secret: testSecret, Issuer: testIssuer, Audience: testAudience})
	require.NoError(t, err)
	return v
}

func Test_Subject(t *testing.T) {
	v := newValidator(t)
	token, err := NewIssuer(testSecret, testIssuer, testAudience).Issue("connector-a", time.Hour)
	require.NoError(t, err)

	subject, err := v.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "connector-a", subject)
}

func Test_SubjectRejections(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{"garbage", func(*testing.T) string { return "invalid-token-string" }},
		{"expired", func(t *testing.T) string {
			token, err := NewIssuer(testSecret, testIssuer, testAudience).Issue("connector-a", -time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"wrong secret", func(t *testing.T) string {
			token, err := NewIssuer("another-secret-entirely", testIssuer, testAudience).Issue("connector-a", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"wrong issuer", func(t *testing.T) string {
			token, err := NewIssuer(testSecret, "https://rogue.example", testAudience).Issue("connector-a", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"wrong audience", func(t *testing.T) string {
			token, err := NewIssuer(testSecret, testIssuer, "someone-else").Issue("connector-a", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"no subject", func(t *testing.T) string {
			token, err := NewIssuer(testSecret, testIssuer, testAudience).Issue("", time.Hour)
			require.NoError(t, err)
			return token
		}},
		{"alg none", func(t *testing.T) string {
			token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
				"sub": "connector-a",
				"exp": time.Now().Add(time.Hour).Unix(),
			}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			require.NoError(t, err)
			return token
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Subject(tt.token(t))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}

func Test_ReferringConnectorFallback(t *testing.T) {
	v := newValidator(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ReferringConnector: "http://connector-b.example/",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	subject, err := v.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "http://connector-b.example/", subject)
}

func Test_RSAPublicKeyFile(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "daps.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewValidator(Config{PublicKeyFile: path})
	require.NoError(t, err)

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Subject:   "connector-rsa",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(key)
	require.NoError(t, err)

	subject, err := v.Subject(token)
	require.NoError(t, err)
	assert.Equal(t, "connector-rsa", subject)

	t.Run("HMAC token signed with the public key is rejected", func(t *testing.T) {
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "connector-rsa",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}).SignedString(der)
		require.NoError(t, err)
		_, err = v.Subject(forged)
		assert.Error(t, err)
	})
}

func Test_NewValidatorConfig(t *testing.T) {
	_, err := NewValidator(Config{})
	assert.Error(t, err)
	_, err = NewValidator(Config{Secret: "s", PublicKeyFile: "/nonexistent"})
	assert.Error(t, err)
	_, err = NewValidator(Config{PublicKeyFile: filepath.Join(t.TempDir(), "missing.pem")})
	assert.Error(t, err)
}
