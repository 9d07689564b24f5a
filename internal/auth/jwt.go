// Package auth issues and verifies access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/socialchat/internal/normalize"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and validates JWT tokens used by the API.
type JWTManager struct {
	keys      map[string][]byte // kid -> HMAC secret; "" is the single-key setup
	activeKid string            // kid used to sign new tokens
	duration  time.Duration     // how long tokens are valid
}

// Claims is the custom JWT payload (user id + email).
type Claims struct {
	UserID               string `json:"user_id"` // MongoDB ObjectID as hex
	Email                string `json:"email"`
	jwt.RegisteredClaims        // Subject, ExpiresAt, IssuedAt
}

// ObjectID returns the subject user id.
func (c *Claims) ObjectID() (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(c.UserID)
	if err != nil {
		return bson.NilObjectID, fmt.Errorf("%w: bad user id", ErrInvalidToken)
	}
	return id, nil
}

// NewJWTManager returns a JWTManager signing with a single secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:     map[string][]byte{"": []byte(secretKey)},
		duration: duration,
	}
}

// NewJWTManagerFromKeys returns a JWTManager that signs with keys[activeKid] and
// verifies tokens signed by any key in keys, selected by the kid header.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	m := &JWTManager{keys: make(map[string][]byte, len(keys)), activeKid: activeKid, duration: duration}
	for kid, secret := range keys {
		m.keys[kid] = []byte(secret)
	}
	return m
}

// GenerateToken issues a signed JWT token for a user.
func (m *JWTManager) GenerateToken(userID bson.ObjectID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)

	claims := &Claims{
		UserID: userID.Hex(),
		Email:  normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.Hex(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("signing key %q not configured", m.activeKid)
	}

	// HS256 (HMAC with SHA-256); the kid header lets rotated keys keep verifying
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC; rejects alg switching to none or asymmetric keys
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		kid, _ := token.Header["kid"].(string)
		secret, ok := m.keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown key id %q", kid)
		}
		return secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.ObjectID(); err != nil {
		return nil, err
	}

	return claims, nil
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	// constant-time comparison
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
