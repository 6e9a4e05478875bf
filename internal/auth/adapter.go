package auth

import (
	"vitae/internal/platform/middleware"
)

// MiddlewareAdapter exposes the token service through the middleware's
// validator interface.
type MiddlewareAdapter struct {
	service *TokenService
}

func NewMiddlewareAdapter(service *TokenService) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.Identity, error) {
	identity, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Identity{
		Account: identity.Account,
		TokenID: identity.TokenID,
	}, nil
}
