// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/merkato/internal/config"
	"github.com/tomtom215/merkato/internal/models"
)

const testSecret = "this_is_a_very_long_secret_key_for_testing_purposes_12345"

func newTestTokens(t *testing.T, ttl time.Duration) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(&config.SecurityConfig{JWTSecret: testSecret, TokenTTL: ttl})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	return m
}

func testUser(role models.Role) *models.User {
	return &models.User{
		ID:         primitive.NewObjectID(),
		Name:       "Almaz Tesfaye",
		Email:      "almaz@example.et",
		Role:       role,
		IsActive:   true,
		IsApproved: true,
	}
}

// ===================================================================================================
// Tokens
// ===================================================================================================

func TestNewTokenManager(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		wantErr bool
	}{
		{"valid secret", testSecret, false},
		{"empty secret", "", true},
		{"short secret", "too-short", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTokenManager(&config.SecurityConfig{JWTSecret: tt.secret})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTokenManager() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssueAndParse(t *testing.T) {
	m := newTestTokens(t, time.Hour)
	for _, role := range models.Roles {
		t.Run(string(role), func(t *testing.T) {
			u := testUser(role)
			token, issued, err := m.Issue(u)
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}
			claims, err := m.Parse(token)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			if claims.UserID != u.ID.Hex() || claims.Email != u.Email || claims.Role != role {
				t.Errorf("claims = %+v", claims)
			}
			if claims.ID == "" || claims.ID != issued.ID {
				t.Errorf("jti = %q, issued %q", claims.ID, issued.ID)
			}
			id, err := claims.ObjectID()
			if err != nil || id != u.ID {
				t.Errorf("ObjectID() = %v, %v", id, err)
			}
		})
	}
}

func TestTokensHaveUniqueIDs(t *testing.T) {
	m := newTestTokens(t, time.Hour)
	u := testUser(models.RoleCustomer)
	_, a, _ := m.Issue(u)
	_, b, _ := m.Issue(u)
	if a.ID == b.ID {
		t.Error("two tokens share a jti")
	}
}

func TestParseRejects(t *testing.T) {
	m := newTestTokens(t, time.Hour)
	good, _, err := m.Issue(testUser(models.RoleSeller))
	if err != nil {
		t.Fatal(err)
	}

	other, err := NewTokenManager(&config.SecurityConfig{JWTSecret: strings.Repeat("x", 40)})
	if err != nil {
		t.Fatal(err)
	}
	foreign, _, _ := other.Issue(testUser(models.RoleAdmin))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "x", Role: models.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.token", ErrInvalidToken},
		{"tampered", tamper(good), ErrInvalidToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Parse(tt.token); !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

// tamper flips one character inside the signature.
func tamper(token string) string {
	i := strings.LastIndex(token, ".") + 5
	c := byte('A')
	if token[i] == 'A' {
		c = 'B'
	}
	return token[:i] + string(c) + token[i+1:]
}

func TestParseExpired(t *testing.T) {
	m := newTestTokens(t, time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, claims, err := m.Issue(testUser(models.RoleCustomer))
	if err != nil {
		t.Fatal(err)
	}
	m.now = time.Now

	if claims.Remaining(time.Now()) != 0 {
		t.Error("expired token should have no remaining lifetime")
	}
	if _, err := m.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Parse(expired) error = %v", err)
	}
}

// ===================================================================================================
// Passwords
// ===================================================================================================

func TestHasher(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct-horse" {
		t.Fatal("hash equals password")
	}
	if err := h.Check(hash, "correct-horse"); err != nil {
		t.Errorf("Check(correct) = %v", err)
	}
	if err := h.Check(hash, "wrong-horse"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Check(wrong) = %v, want ErrPasswordMismatch", err)
	}
	if err := h.Check("not-a-hash", "x"); err == nil || errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Check(bad hash) = %v, want non-mismatch error", err)
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, bcrypt.DefaultCost},
		{1, bcrypt.MinCost},
		{12, 12},
		{99, bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := NewHasher(tt.in).cost; got != tt.want {
			t.Errorf("NewHasher(%d).cost = %d, want %d", tt.in, got, tt.want)
		}
	}
}

// ===================================================================================================
// Revocation
// ===================================================================================================

func newTestRevocations(t *testing.T) *RevocationStore {
	t.Helper()
	s, err := OpenRevocationStore("")
	if err != nil {
		t.Fatalf("OpenRevocationStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRevocationStore(t *testing.T) {
	ctx := context.Background()
	s := newTestRevocations(t)

	if revoked, err := s.IsRevoked(ctx, "jti-1"); err != nil || revoked {
		t.Fatalf("IsRevoked(before) = %v, %v", revoked, err)
	}
	if err := s.Revoke(ctx, "jti-1", time.Hour); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if revoked, err := s.IsRevoked(ctx, "jti-1"); err != nil || !revoked {
		t.Errorf("IsRevoked(after) = %v, %v", revoked, err)
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-2"); revoked {
		t.Error("unrelated jti reported revoked")
	}

	// Already-expired tokens are not stored.
	if err := s.Revoke(ctx, "jti-3", 0); err != nil {
		t.Fatal(err)
	}
	if n, err := s.Count(); err != nil || n != 1 {
		t.Errorf("Count() = %d, %v, want 1", n, err)
	}
}

func TestRevocationStoreClosed(t *testing.T) {
	s, err := OpenRevocationStore("")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if _, err := s.IsRevoked(context.Background(), "x"); !errors.Is(err, ErrRevocationStoreClosed) {
		t.Errorf("IsRevoked after close = %v", err)
	}
}

func TestRevocationStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenRevocationStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Revoke(ctx, "persisted", time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenRevocationStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if revoked, err := s.IsRevoked(ctx, "persisted"); err != nil || !revoked {
		t.Errorf("revocation lost across restart: %v, %v", revoked, err)
	}
}
