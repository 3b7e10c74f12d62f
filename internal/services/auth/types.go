package auth

import (
	"errors"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// ServiceClaims identify an upstream system calling the internal API.
type ServiceClaims struct {
	Subject   string
	Role      string
	ExpiresAt time.Time
}
