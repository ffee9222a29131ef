package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/invitation/domain"
	"github.com/smallbiznis/taskboard/internal/notification/email"
	"github.com/smallbiznis/taskboard/internal/notification/realtime"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const notifyTimeout = 5 * time.Second

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Cfg       config.Config
	Repo      domain.Repository
	Boards    boarddomain.Repository
	Users     authdomain.Repository
	Email     email.Provider
	Publisher realtime.Publisher
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	boards    boarddomain.Repository
	users     authdomain.Repository
	email     email.Provider
	publisher realtime.Publisher
	metrics   *obsmetrics.Metrics
	website   string
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("invitation.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		boards:    p.Boards,
		users:     p.Users,
		email:     p.Email,
		publisher: p.Publisher,
		metrics:   p.Metrics,
		website:   p.Cfg.WebsiteDomain,
	}
}

// CreateBoardInvitation reports a missing inviter, invitee or board with a
// single error. A board the inviter does not belong to counts as missing.
func (s *Service) CreateBoardInvitation(ctx context.Context, inviterID snowflake.ID, req domain.CreateBoardInvitationRequest) (*domain.InvitationView, error) {
	if inviterID == 0 || req.BoardID == 0 {
		return nil, domain.ErrInvalidInvitation
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(req.InviteeEmail))
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}

	inviter, err := s.lookupUser(s.users.FindByID(ctx, inviterID))
	if err != nil {
		return nil, err
	}
	invitee, err := s.lookupUser(s.users.FindByEmail(ctx, strings.ToLower(addr.Address)))
	if err != nil {
		return nil, err
	}
	board, err := s.boards.FindBoardForMember(ctx, req.BoardID, inviterID)
	if err != nil {
		return nil, err
	}
	if inviter == nil || invitee == nil || board == nil {
		return nil, domain.ErrReferenceNotFound
	}
	if inviter.ID == invitee.ID {
		return nil, domain.ErrSelfInvitation
	}

	now := s.clock.Now()
	invitation := &domain.Invitation{
		ID:        s.genID.Generate(),
		InviterID: inviter.ID,
		InviteeID: invitee.ID,
		Type:      domain.TypeBoardInvitation,
		BoardInvitation: domain.BoardInvitation{
			BoardID: board.ID,
			Status:  domain.StatusPending,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, invitation); err != nil {
		return nil, err
	}
	stored, err := s.repo.FindByID(ctx, invitation.ID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, domain.ErrInvitationNotFound
	}

	inviterPublic, inviteePublic := inviter.Public(), invitee.Public()
	view := &domain.InvitationView{
		Invitation: *stored,
		Board:      board,
		Inviter:    &inviterPublic,
		Invitee:    &inviteePublic,
	}

	s.metrics.RecordInvitationCreated(ctx, string(domain.TypeBoardInvitation))
	s.log.Info("board invitation created",
		zap.String("invitation_id", stored.ID.String()),
		zap.String("board_id", board.ID.String()),
	)
	s.notifyCreated(ctx, view)
	return view, nil
}

// lookupUser turns a not-found lookup into a nil user.
func (s *Service) lookupUser(user *authdomain.User, err error) (*authdomain.User, error) {
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) ListInvitations(ctx context.Context, userID snowflake.ID) ([]domain.InvitationView, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidInvitation
	}
	invitations, err := s.repo.ListByInvitee(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, invitations)
}

// enrich attaches boards and public users. Missing references stay nil.
func (s *Service) enrich(ctx context.Context, invitations []*domain.Invitation) ([]domain.InvitationView, error) {
	userIDs := make([]snowflake.ID, 0, len(invitations)*2)
	boardIDs := make([]snowflake.ID, 0, len(invitations))
	for _, inv := range invitations {
		userIDs = append(userIDs, inv.InviterID, inv.InviteeID)
		boardIDs = append(boardIDs, inv.BoardInvitation.BoardID)
	}

	users, err := s.users.FindByIDs(ctx, dedupe(userIDs))
	if err != nil {
		return nil, err
	}
	publicUsers := make(map[snowflake.ID]*authdomain.PublicUser, len(users))
	for _, user := range users {
		public := user.Public()
		publicUsers[user.ID] = &public
	}

	boards, err := s.boards.FindBoardsByIDs(ctx, dedupe(boardIDs))
	if err != nil {
		return nil, err
	}
	boardsByID := make(map[snowflake.ID]*boarddomain.Board, len(boards))
	for _, board := range boards {
		boardsByID[board.ID] = board
	}

	views := make([]domain.InvitationView, 0, len(invitations))
	for _, inv := range invitations {
		views = append(views, domain.InvitationView{
			Invitation: *inv,
			Board:      boardsByID[inv.BoardInvitation.BoardID],
			Inviter:    publicUsers[inv.InviterID],
			Invitee:    publicUsers[inv.InviteeID],
		})
	}
	return views, nil
}

// RespondToInvitation persists the new status and, on acceptance, adds the
// invitee to the board members in the same transaction. Only the invitee can
// respond; anyone else gets ErrInvitationNotFound.
func (s *Service) RespondToInvitation(ctx context.Context, userID snowflake.ID, req domain.RespondRequest) (*domain.InvitationView, error) {
	if req.Status != domain.StatusAccepted && req.Status != domain.StatusRejected {
		return nil, domain.ErrInvalidStatus
	}
	if userID == 0 || req.InvitationID == 0 {
		return nil, domain.ErrInvalidInvitation
	}

	var updated *domain.Invitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		boards := s.boards.WithTx(tx)

		invitation, err := repo.LockByID(ctx, req.InvitationID)
		if err != nil {
			return err
		}
		if invitation == nil || invitation.InviteeID != userID {
			return domain.ErrInvitationNotFound
		}

		board, err := boards.LockBoard(ctx, invitation.BoardInvitation.BoardID)
		if err != nil {
			return err
		}
		if board == nil {
			return domain.ErrBoardNotFound
		}

		if req.Status == domain.StatusAccepted && board.HasMember(userID) {
			return domain.ErrAlreadyMember
		}
		if invitation.BoardInvitation.Status.Terminal() {
			return domain.ErrAlreadyResponded
		}

		if updated, err = repo.UpdateStatus(ctx, invitation.ID, req.Status, s.clock.Now()); err != nil {
			return err
		}
		if updated == nil {
			return domain.ErrInvitationNotFound
		}

		if req.Status == domain.StatusAccepted {
			if _, err := boards.AddMember(ctx, board.ID, userID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	views, err := s.enrich(ctx, []*domain.Invitation{updated})
	if err != nil {
		return nil, err
	}
	view := &views[0]

	s.metrics.RecordInvitationResponse(ctx, string(req.Status))
	s.log.Info("board invitation answered",
		zap.String("invitation_id", updated.ID.String()),
		zap.String("status", string(req.Status)),
	)
	s.notifyResponded(ctx, view)
	return view, nil
}

func (s *Service) notifyCreated(ctx context.Context, view *domain.InvitationView) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	s.publish(ctx, realtime.EventInvitationCreated, view.InviteeID, view)

	if view.Invitee == nil || view.Board == nil {
		return
	}
	inviterName := ""
	if view.Inviter != nil {
		inviterName = view.Inviter.DisplayName
	}
	err := s.email.SendTemplate(ctx, []string{view.Invitee.Email}, email.TemplateBoardInvitation, map[string]any{
		"inviter_name":     inviterName,
		"board_title":      view.Board.Title,
		"invitations_link": s.website + "/invitations",
	})
	if err != nil {
		s.metrics.RecordNotificationError(ctx, "email")
		s.log.Warn("failed to send invitation email",
			zap.String("invitation_id", view.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) notifyResponded(ctx context.Context, view *domain.InvitationView) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	s.publish(ctx, realtime.EventInvitationResponded, view.InviterID, view)
}

func (s *Service) publish(ctx context.Context, eventType string, recipient snowflake.ID, view *domain.InvitationView) {
	event, err := realtime.NewEvent(eventType, recipient.String(), view, s.clock.Now())
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.metrics.RecordNotificationError(ctx, "realtime")
		s.log.Warn("failed to publish invitation event",
			zap.String("event", eventType),
			zap.String("invitation_id", view.ID.String()),
			zap.Error(err),
		)
	}
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
