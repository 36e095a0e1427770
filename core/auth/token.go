package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims represents the authorization claims transmitted via a JWT. The subject is the user ID.
type Claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID, valid for the configured TTL.
func (svc *Service) IssueToken(userID string) (string, error) {
	now := nowFunc()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    svc.conf.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(svc.conf.TokenTTL)),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.conf.SecretKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// VerifyToken checks the signature & expiry of token. It fails with ErrTokenExpired or ErrTokenInvalid.
func (svc *Service) VerifyToken(token string) (*Claims, error) {
	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) { return svc.conf.SecretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(nowFunc),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil, !parsed.Valid, claims.Subject == "":
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ExpiresAtTime returns the expiry of a verified token.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}
