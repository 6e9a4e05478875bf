// Package auth validates the bearer tokens that identify accounts. Token
// issuance belongs to the external identity provider; this service only
// needs the shared HS256 key to verify what the provider minted. Issue
// exists for tests and local development.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	id "vitae/pkg/domain"
	dErrors "vitae/pkg/domain-errors"
)

// Claims is the JWT payload. The account UUID rides in a private claim;
// everything else is registered claims.
type Claims struct {
	Account string `json:"account"`
	jwt.RegisteredClaims
}

// Identity is the validated caller identity handed to the middleware.
type Identity struct {
	Account id.AccountID
	TokenID string
}

// TokenService verifies (and for tests, mints) HS256 bearer tokens.
type TokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewTokenService(signingKey, issuer, audience string) *TokenService {
	return &TokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Issue mints a token for the account. Production deployments receive
// tokens from the identity provider instead.
func (s *TokenService) Issue(account id.AccountID, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Account: account.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks signature, expiry, and the account claim, and
// returns the caller identity.
func (s *TokenService) ValidateToken(tokenString string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	account, err := id.ParseAccountID(claims.Account)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no valid account")
	}

	return &Identity{Account: account, TokenID: claims.ID}, nil
}
