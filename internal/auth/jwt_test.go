package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cr3t-password")
	require.NoError(t, err)
	require.NotEqual(t, "s3cr3t-password", hash)

	require.NoError(t, CheckPassword(hash, "s3cr3t-password"))
	require.Error(t, CheckPassword(hash, "s3cr3t-passwordX"))
	require.Error(t, CheckPassword("not-a-hash", "s3cr3t-password"))
}

func TestTokenCarriesUserAndNormalizedEmail(t *testing.T) {
	m := NewJWTManager("test-secret", 5*time.Minute)
	id := bson.NewObjectID()

	token, expiresAt, err := m.GenerateToken(id, "  Ada.Lovelace@Example.COM ")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(5*time.Minute), expiresAt, 5*time.Second)

	claims, err := m.VerifyToken(token)
	require.NoError(t, err)
	require.Equal(t, id.Hex(), claims.UserID)
	require.Equal(t, "ada.lovelace@example.com", claims.Email)
	require.Equal(t, id.Hex(), claims.Subject)

	got, err := claims.ObjectID()
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestClaimsObjectIDRejectsBadSubject(t *testing.T) {
	_, err := (&Claims{UserID: "not-hex"}).ObjectID()
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = (&Claims{}).ObjectID()
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestKeyRotation(t *testing.T) {
	keys := map[string]string{"k1": "secret-one", "k2": "secret-two"}
	current := NewJWTManagerFromKeys(keys, "k2", 5*time.Minute)
	previous := NewJWTManagerFromKeys(keys, "k1", 5*time.Minute)
	id := bson.NewObjectID()

	fresh, _, err := current.GenerateToken(id, "rot@example.com")
	require.NoError(t, err)
	require.Equal(t, "k2", headerKid(t, fresh))

	// tokens issued before the rotation still verify
	old, _, err := previous.GenerateToken(id, "rot@example.com")
	require.NoError(t, err)
	require.Equal(t, "k1", headerKid(t, old))

	for _, token := range []string{fresh, old} {
		claims, err := current.VerifyToken(token)
		require.NoError(t, err)
		require.Equal(t, id.Hex(), claims.UserID)
	}

	// once k1 is retired its tokens stop verifying
	retired := NewJWTManagerFromKeys(map[string]string{"k2": "secret-two"}, "k2", 5*time.Minute)
	_, err = retired.VerifyToken(old)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	m := NewJWTManager("test-secret", time.Minute)
	id := bson.NewObjectID()

	expired, _, err := NewJWTManager("test-secret", -time.Minute).GenerateToken(id, "a@example.com")
	require.NoError(t, err)
	foreign, _, err := NewJWTManagerFromKeys(map[string]string{"k9": "other"}, "k9", time.Minute).GenerateToken(id, "a@example.com")
	require.NoError(t, err)
	otherSecret, _, err := NewJWTManager("other-secret", time.Minute).GenerateToken(id, "a@example.com")
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"unknown kid":  foreign,
		"other secret": otherSecret,
		"garbage":      "not.a.jwt",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := m.VerifyToken(token)
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestClaimsContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	require.False(t, ok)

	claims := &Claims{UserID: bson.NewObjectID().Hex()}
	got, ok := FromContext(NewContext(context.Background(), claims))
	require.True(t, ok)
	require.Same(t, claims, got)
}

func headerKid(t *testing.T, token string) string {
	t.Helper()
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	require.NoError(t, err)
	kid, _ := parsed.Header["kid"].(string)
	return kid
}
