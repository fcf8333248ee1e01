package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIssuer = "https://auth.example.test/realms/checkin"

func newTestVerifier(t *testing.T) (*oidc.IDTokenVerifier, *rsa.PrivateKey) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	return oidc.NewVerifier(testIssuer, keySet, &oidc.Config{SkipClientIDCheck: true}), key
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":                testIssuer,
		"sub":                "7f1c2d",
		"preferred_username": "door1",
		"iat":                time.Now().Unix(),
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
}

func guardEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GuardID(r.Context())))
	})
}

func TestMiddleware(t *testing.T) {
	verifier, key := newTestVerifier(t)
	_, otherKey := newTestVerifier(t)
	handler := Middleware(verifier)(guardEcho())

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	subjectOnly := validClaims()
	delete(subjectOnly, "preferred_username")

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid token", header: "Bearer " + signToken(t, key, validClaims()), wantStatus: http.StatusOK, wantBody: "door1"},
		{name: "subject fallback", header: "Bearer " + signToken(t, key, subjectOnly), wantStatus: http.StatusOK, wantBody: "7f1c2d"},
		{name: "lowercase scheme", header: "bearer " + signToken(t, key, validClaims()), wantStatus: http.StatusOK, wantBody: "door1"},
		{name: "missing header", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signToken(t, key, expired), wantStatus: http.StatusUnauthorized},
		{name: "foreign signature", header: "Bearer " + signToken(t, otherKey, validClaims()), wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestGuardID_WithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GuardID(req.Context()))
}

func TestGuardFromJWT(t *testing.T) {
	_, key := newTestVerifier(t)

	guard, err := GuardFromJWT(signToken(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "door1", guard)

	claims := validClaims()
	claims["preferred_username"] = "  "
	guard, err = GuardFromJWT(signToken(t, key, claims))
	require.NoError(t, err)
	assert.Equal(t, "7f1c2d", guard)

	_, err = GuardFromJWT("")
	assert.Error(t, err)
	_, err = GuardFromJWT("not.a.jwt")
	assert.Error(t, err)

	_, err = GuardFromJWT(signToken(t, key, jwt.MapClaims{"iss": testIssuer}))
	assert.Error(t, err)
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer abc.def.ghi")
	token, err := ExtractTokenFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	req.Header.Set("Authorization", "Bearer a b")
	_, err = ExtractTokenFromRequest(req)
	assert.Error(t, err)
}
