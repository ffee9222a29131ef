package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*PublicUser, error)
	VerifyAccount(ctx context.Context, req VerifyRequest) (*PublicUser, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	RefreshToken(ctx context.Context, rawRefreshToken string) (*RefreshResult, error)
	Authenticate(ctx context.Context, rawAccessToken string) (*Principal, error)
	GetMe(ctx context.Context, userID snowflake.ID) (*PublicUser, error)
	UpdateMe(ctx context.Context, userID snowflake.ID, req UpdateMeRequest) (*PublicUser, error)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type VerifyRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResult struct {
	User                  PublicUser
	AccessToken           string
	AccessTokenExpiresAt  time.Time
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
}

type RefreshResult struct {
	AccessToken          string
	AccessTokenExpiresAt time.Time
}

// Principal is the identity carried by a valid access token.
type Principal struct {
	UserID snowflake.ID
	Email  string
}

// UpdateMeRequest changes either the password (both fields required) or the
// profile fields.
type UpdateMeRequest struct {
	DisplayName     *string `json:"displayName,omitempty"`
	Avatar          *string `json:"avatar,omitempty"`
	CurrentPassword string  `json:"current_password,omitempty"`
	NewPassword     string  `json:"new_password,omitempty"`
}
