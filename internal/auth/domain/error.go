package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrWeakPassword       = errors.New("weak password")
	ErrIncorrectPassword  = errors.New("incorrect password")
	ErrInvalidDisplayName = errors.New("invalid display name")
	ErrInvalidAvatar      = errors.New("invalid avatar")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrAlreadyVerified    = errors.New("account already verified")
	ErrInvalidVerifyToken = errors.New("invalid verify token")
	ErrAccountInactive    = errors.New("account not active")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
)
