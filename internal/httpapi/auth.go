package httpapi

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"kasirinaja/salecore/internal/domain"
)

// TokenManager signs and verifies the bearer tokens that carry a cashier and
// the tenant they sell for. Issuing tokens to people is out of scope here;
// cmd/gentoken mints them for terminals.
type TokenManager struct {
	secret   []byte
	tokenTTL time.Duration
}

type tenantClaims struct {
	jwtlib.RegisteredClaims
	TenantID string `json:"tenant_id"`
}

func NewTokenManager(secret string, tokenTTL time.Duration) (*TokenManager, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 characters")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &TokenManager{secret: []byte(secret), tokenTTL: tokenTTL}, nil
}

func (m *TokenManager) Sign(cashier string, tenantID string) (string, time.Time, error) {
	cashier = strings.TrimSpace(cashier)
	tenantID = strings.TrimSpace(tenantID)
	if cashier == "" || tenantID == "" {
		return "", time.Time{}, errors.New("cashier and tenant are required")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(m.tokenTTL)
	claims := tenantClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   cashier,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "kasirinaja",
		},
		TenantID: tenantID,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (m *TokenManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &tenantClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	if strings.TrimSpace(claims.TenantID) == "" {
		return domain.Actor{}, errors.New("token carries no tenant")
	}
	return domain.Actor{Cashier: sub, TenantID: claims.TenantID}, nil
}
