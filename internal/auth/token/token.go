// Package token issues and validates the HS256 access and refresh tokens.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"go.uber.org/zap"
)

// Claims is shared by access and refresh tokens; they differ by secret.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

type Provider struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
	clock         clock.Clock
}

// NewProvider builds the provider from config. Outside production a missing
// secret is replaced by a random one, which invalidates tokens on restart.
func NewProvider(cfg config.Config, clk clock.Clock, log *zap.Logger) (*Provider, error) {
	access := strings.TrimSpace(cfg.Auth.AccessTokenSecret)
	refresh := strings.TrimSpace(cfg.Auth.RefreshTokenSecret)
	if access == "" || refresh == "" {
		if cfg.IsProduction() {
			return nil, errors.New("ACCESS_TOKEN_SECRET_SIGNATURE and REFRESH_TOKEN_SECRET_SIGNATURE are required")
		}
		log.Warn("token secrets not configured, using ephemeral secrets")
		if access == "" {
			access = randomSecret()
		}
		if refresh == "" {
			refresh = randomSecret()
		}
	}
	return New(access, refresh, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, cfg.Auth.Issuer, clk), nil
}

func New(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration, issuer string, clk clock.Clock) *Provider {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Provider{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        issuer,
		clock:         clk,
	}
}

func (p *Provider) IssueAccess(userID snowflake.ID, email string) (string, time.Time, error) {
	return p.issue(p.accessSecret, p.accessTTL, userID, email)
}

func (p *Provider) IssueRefresh(userID snowflake.ID, email string) (string, time.Time, error) {
	return p.issue(p.refreshSecret, p.refreshTTL, userID, email)
}

// ValidateAccess returns ErrTokenExpired for an expired but otherwise valid
// token and ErrInvalidToken for anything else.
func (p *Provider) ValidateAccess(raw string) (*authdomain.Principal, error) {
	return p.validate(p.accessSecret, raw)
}

func (p *Provider) ValidateRefresh(raw string) (*authdomain.Principal, error) {
	return p.validate(p.refreshSecret, raw)
}

func (p *Provider) issue(secret []byte, ttl time.Duration, userID snowflake.ID, email string) (string, time.Time, error) {
	now := p.clock.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        randomSecret()[:32],
			Subject:   userID.String(),
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (p *Provider) validate(secret []byte, raw string) (*authdomain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, authdomain.ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithTimeFunc(p.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, authdomain.ErrTokenExpired
		}
		return nil, authdomain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, authdomain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return nil, authdomain.ErrInvalidToken
	}
	return &authdomain.Principal{UserID: userID, Email: claims.Email}, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
