package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// JWTValidator verifies HS256 tokens issued elsewhere. The subject comes from "sub" and roles
// from "role" (string) or "roles" (list).
type JWTValidator struct {
	secret []byte
	parser *jwt.Parser
}

func NewJWTValidator(secret string) (*JWTValidator, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &JWTValidator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

func (v *JWTValidator) Validate(_ context.Context, token string) (Identity, bool) {
	claims := jwt.MapClaims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, false
	}
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return Identity{}, false
	}
	return Identity{Subject: subject, Roles: rolesFromClaims(claims)}, true
}

func rolesFromClaims(claims jwt.MapClaims) []string {
	var raw []string
	switch v := claims["role"].(type) {
	case string:
		raw = append(raw, v)
	}
	switch v := claims["roles"].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = append(raw, strings.Fields(v)...)
	}
	return splitRoles(raw)
}
