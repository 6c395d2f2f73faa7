// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, issuer, subject string, entitlements []string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"iss":   issuer,
		"sub":   subject,
		"name":  "Alice Example",
		"email": "alice@x",
	}
	if entitlements != nil {
		claims["eduperson_entitlement"] = entitlements
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestParseToken(t *testing.T) {
	issuers := []string{"https://iam.example/realms/main"}
	vos := []string{"vo.a", "vo.b"}

	token := signedToken(t, "https://iam.example/realms/main", "alice@x", []string{
		"urn:mace:egi.eu:group:vo.a:role=member#aai.egi.eu",
		"urn:mace:egi.eu:group:vo.other:role=member#aai.egi.eu",
	})

	user, err := ParseToken(token, issuers, vos)
	require.NoError(t, err)
	assert.Equal(t, "alice@x", user.Subject)
	assert.Equal(t, "Alice Example", user.Name)
	assert.Equal(t, "alice@x", user.Email)
	assert.Equal(t, []string{"vo.a"}, user.VOs)
	assert.True(t, user.MemberOf("vo.a"))
	assert.False(t, user.MemberOf("vo.other"))
}

func TestParseToken_UntrustedIssuer(t *testing.T) {
	token := signedToken(t, "https://rogue.example", "alice@x", []string{
		"urn:mace:egi.eu:group:vo.a#aai.egi.eu",
	})
	_, err := ParseToken(token, []string{"https://iam.example/realms/main"}, []string{"vo.a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issuer")
}

func TestParseToken_NoVOMembership(t *testing.T) {
	token := signedToken(t, "https://iam.example", "alice@x", []string{
		"urn:mace:egi.eu:group:vo.other#aai.egi.eu",
	})
	_, err := ParseToken(token, []string{"https://iam.example"}, []string{"vo.a"})
	require.Error(t, err)
}

func TestParseToken_Malformed(t *testing.T) {
	_, err := ParseToken("not-a-jwt", []string{"https://iam.example"}, []string{"vo.a"})
	require.Error(t, err)
}

func TestParseEntitlement(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"urn:mace:egi.eu:group:vo.a:role=member#aai.egi.eu", "vo.a"},
		{"urn:mace:egi.eu:group:vo.a#aai.egi.eu", "vo.a"},
		{"urn:mace:egi.eu:group:vo.a", "vo.a"},
		{"urn:something:else", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseEntitlement(tt.in))
	}
}
