package agent

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/kochimetro/inductiond/acl"
	"github.com/kochimetro/inductiond/structs"
)

const bearerPrefix = "Bearer "

// resolveIdentity verifies the bearer credential and returns the caller
// identity. With no auth secret configured authentication is disabled and
// every caller is management, mirroring an ACL-disabled agent.
func (s *HTTPServer) resolveIdentity(req *http.Request) (*acl.Identity, error) {
	secret := s.agent.config.AuthSecret
	if secret == "" {
		return acl.AnonymousAdmin, nil
	}

	header := req.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, structs.ErrUnauthenticated
	}

	token, err := jwt.Parse(strings.TrimPrefix(header, bearerPrefix),
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
	if err != nil || !token.Valid {
		return nil, structs.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, structs.ErrUnauthenticated
	}
	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, structs.ErrUnauthenticated
	}
	role, _ := claims["role"].(string)
	if !acl.ValidRole(role) {
		return nil, structs.ErrUnauthenticated
	}

	return &acl.Identity{Subject: subject, Role: role}, nil
}

// MintToken issues a bearer token for the given subject and role. Used by
// operator tooling and tests; production deployments may instead bring
// tokens from an external issuer sharing the secret.
func MintToken(secret, subject, role string, ttl time.Duration) (string, error) {
	if !acl.ValidRole(role) {
		return "", fmt.Errorf("invalid role %q", role)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
