package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/auth/password"
	"github.com/smallbiznis/taskboard/internal/auth/token"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/notification/email"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	displayNameMinLen = 1
	displayNameMaxLen = 50
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Repo    domain.Repository
	GenID   *snowflake.Node
	Clock   clock.Clock
	Tokens  *token.Provider
	Email   email.Provider
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	repo    domain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	tokens  *token.Provider
	email   email.Provider
	metrics *obsmetrics.Metrics
	website string
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("auth.service"),
		repo:    p.Repo,
		genID:   p.GenID,
		clock:   p.Clock,
		tokens:  p.Tokens,
		email:   p.Email,
		metrics: p.Metrics,
		website: p.Cfg.WebsiteDomain,
	}
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PublicUser, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.repo.FindByEmail(ctx, addr); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	name := defaultDisplayName(addr)
	verifyToken := uuid.NewString()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        addr,
		PasswordHash: hashed,
		Username:     name,
		DisplayName:  name,
		Role:         domain.RoleClient,
		IsActive:     false,
		VerifyToken:  &verifyToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerification(ctx, user.Email, verifyToken)

	public := user.Public()
	return &public, nil
}

func (s *Service) sendVerification(ctx context.Context, addr, verifyToken string) {
	link := s.website + "/account/verification?" + url.Values{
		"email": []string{addr},
		"token": []string{verifyToken},
	}.Encode()

	err := s.email.SendTemplate(ctx, []string{addr}, email.TemplateVerifyAccount, map[string]any{
		"verification_link": link,
	})
	if err != nil {
		s.metrics.RecordNotificationError(ctx, "email")
		s.log.Warn("failed to send verification email", zap.Error(err))
	}
}

func (s *Service) VerifyAccount(ctx context.Context, req domain.VerifyRequest) (*domain.PublicUser, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	user, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		return nil, err
	}
	if user.IsActive {
		return nil, domain.ErrAlreadyVerified
	}
	if user.VerifyToken == nil || strings.TrimSpace(req.Token) != *user.VerifyToken {
		return nil, domain.ErrInvalidVerifyToken
	}

	updated, err := s.repo.UpdateFields(ctx, user.ID, map[string]any{
		"is_active":    true,
		"verify_token": nil,
		"updated_at":   s.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("account verified", zap.String("user_id", user.ID.String()))
	public := updated.Public()
	return &public, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	addr, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domain.ErrAccountInactive
	}

	access, accessExp, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:                  user.Public(),
		AccessToken:           access,
		AccessTokenExpiresAt:  accessExp,
		RefreshToken:          refresh,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

// RefreshToken issues a new access token. An expired refresh token is
// reported as invalid so the client signs in again.
func (s *Service) RefreshToken(ctx context.Context, rawRefreshToken string) (*domain.RefreshResult, error) {
	principal, err := s.tokens.ValidateRefresh(rawRefreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountInactive
	}

	access, exp, err := s.tokens.IssueAccess(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &domain.RefreshResult{AccessToken: access, AccessTokenExpiresAt: exp}, nil
}

func (s *Service) Authenticate(ctx context.Context, rawAccessToken string) (*domain.Principal, error) {
	return s.tokens.ValidateAccess(rawAccessToken)
}

func (s *Service) GetMe(ctx context.Context, userID snowflake.ID) (*domain.PublicUser, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

func (s *Service) UpdateMe(ctx context.Context, userID snowflake.ID, req domain.UpdateMeRequest) (*domain.PublicUser, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrAccountInactive
	}

	fields := map[string]any{}
	switch {
	case req.CurrentPassword != "" || req.NewPassword != "":
		if req.CurrentPassword == "" || req.NewPassword == "" {
			return nil, domain.ErrWeakPassword
		}
		if !password.Verify(req.CurrentPassword, user.PasswordHash) {
			return nil, domain.ErrIncorrectPassword
		}
		if err := password.Validate(req.NewPassword); err != nil {
			return nil, domain.ErrWeakPassword
		}
		hashed, err := password.Hash(req.NewPassword)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hashed
	default:
		if req.DisplayName != nil {
			name := strings.TrimSpace(*req.DisplayName)
			if n := utf8.RuneCountInString(name); n < displayNameMinLen || n > displayNameMaxLen {
				return nil, domain.ErrInvalidDisplayName
			}
			fields["display_name"] = name
		}
		if req.Avatar != nil {
			avatar := strings.TrimSpace(*req.Avatar)
			if avatar != "" {
				if parsed, err := url.Parse(avatar); err != nil || parsed.Host == "" {
					return nil, domain.ErrInvalidAvatar
				}
			}
			fields["avatar"] = avatar
		}
	}
	if len(fields) == 0 {
		public := user.Public()
		return &public, nil
	}
	fields["updated_at"] = s.clock.Now()

	updated, err := s.repo.UpdateFields(ctx, user.ID, fields)
	if err != nil {
		return nil, err
	}
	public := updated.Public()
	return &public, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(addr string) string {
	local, _, _ := strings.Cut(addr, "@")
	if local = strings.TrimSpace(local); local != "" {
		return local
	}
	return addr
}
