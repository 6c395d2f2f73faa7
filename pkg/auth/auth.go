// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package auth

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

const (
	// ContextKeyUser is where the middleware stashes the caller identity.
	ContextKeyUser = "auth_user"

	entitlementPrefix = "urn:mace:egi.eu:group:"
)

// UserInfo is the verified claim set the rest of the service trusts. The
// OIDC layer in front of PAPI has already validated the token signature;
// here we only project claims and enforce membership.
type UserInfo struct {
	Subject string
	Name    string
	Email   string
	Issuer  string
	VOs     []string
}

func (u UserInfo) MemberOf(vo string) bool {
	for _, member := range u.VOs {
		if member == vo {
			return true
		}
	}
	return false
}

type rawClaims struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Entitlements []string `json:"eduperson_entitlement"`
	jwt.RegisteredClaims
}

// ParseToken projects a bearer token into UserInfo. The issuer must be one
// of the configured OIDC providers and the entitlements must resolve to at
// least one allow-listed VO.
func ParseToken(token string, issuers []string, allowedVOs []string) (*UserInfo, error) {
	claims := &rawClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, errors.NewAuthFailed("malformed bearer token").WithError(err)
	}

	trusted := false
	for _, issuer := range issuers {
		if claims.Issuer == issuer {
			trusted = true
			break
		}
	}
	if !trusted {
		return nil, errors.NewAuthFailed("token issuer is not a configured OIDC provider")
	}
	if claims.Subject == "" {
		return nil, errors.NewAuthFailed("token carries no subject")
	}

	user := &UserInfo{
		Subject: claims.Subject,
		Name:    claims.Name,
		Email:   claims.Email,
		Issuer:  claims.Issuer,
	}
	for _, entitlement := range claims.Entitlements {
		vo := parseEntitlement(entitlement)
		if vo == "" {
			continue
		}
		for _, allowed := range allowedVOs {
			if vo == allowed && !user.MemberOf(vo) {
				user.VOs = append(user.VOs, vo)
			}
		}
	}
	if len(user.VOs) == 0 {
		return nil, errors.NewForbidden("token holds no membership in any allowed virtual organization")
	}
	return user, nil
}

// parseEntitlement extracts the VO name from an AARC-G002 entitlement URN,
// e.g. urn:mace:egi.eu:group:vo.a:role=member#aai.egi.eu -> vo.a.
func parseEntitlement(entitlement string) string {
	if !strings.HasPrefix(entitlement, entitlementPrefix) {
		return ""
	}
	rest := strings.TrimPrefix(entitlement, entitlementPrefix)
	if idx := strings.IndexAny(rest, ":#"); idx >= 0 {
		rest = rest[:idx]
	}
	return rest
}

// UserFromContext returns the authenticated caller, or an AuthFailed error
// when the middleware never ran (unauthenticated route calling into an
// authenticated helper).
func UserFromContext(c *gin.Context) (*UserInfo, error) {
	value, ok := c.Get(ContextKeyUser)
	if !ok {
		return nil, errors.NewAuthFailed("no authenticated user in request context")
	}
	user, ok := value.(*UserInfo)
	if !ok {
		return nil, errors.NewInternalError("malformed user in request context")
	}
	return user, nil
}
