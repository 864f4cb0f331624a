package errs

import "errors"

var InvalidCredentials = errors.New("invalid credentials")

var (
	InternalError    = errors.New("internal error")
	GeneratingToken  = errors.New("error generating token")
	UsernameEmpty    = errors.New("username is required")
	InvalidToken     = errors.New("invalid token")
	PermissionDenied = errors.New("permission denied")
	StoreDisabled    = errors.New("store is not configured")
)
