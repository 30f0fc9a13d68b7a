package common

import "errors"

// Token errors shared by the server auth package and its callers.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
