package rpc

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tokensale/crypto"
)

// requireAdmin validates the Bearer JWT on an admin call and returns the
// authenticated account taken from the token subject.
func (s *Server) requireAdmin(r *http.Request) ([20]byte, *RPCError) {
	var zero [20]byte
	if strings.TrimSpace(s.cfg.JWTSecret) == "" {
		return zero, &RPCError{Code: codeUnauthorized, Message: "admin API not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return zero, &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return zero, &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" {
		return zero, &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return zero, &RPCError{Code: codeUnauthorized, Message: "invalid admin credentials", Data: err.Error()}
	}

	subject, err := crypto.DecodeAddress(strings.TrimSpace(claims.Subject))
	if err != nil {
		return zero, &RPCError{Code: codeUnauthorized, Message: "token subject is not a valid account", Data: err.Error()}
	}
	return subject.Raw(), nil
}

// NewAdminToken mints a signed bearer token for the given account. Intended
// for operator tooling and tests.
func NewAdminToken(secret string, subject crypto.Address, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
