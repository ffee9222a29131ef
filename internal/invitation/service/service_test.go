package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	authrepo "github.com/smallbiznis/taskboard/internal/auth/repository"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	boardrepo "github.com/smallbiznis/taskboard/internal/board/repository"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/invitation/domain"
	"github.com/smallbiznis/taskboard/internal/invitation/repository"
	"github.com/smallbiznis/taskboard/internal/notification/realtime"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type stubEmail struct {
	sent int
	err  error
}

func (s *stubEmail) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	return s.err
}

func (s *stubEmail) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]any) error {
	s.sent++
	return s.err
}

type failingPublisher struct{}

func (failingPublisher) Publish(ctx context.Context, event realtime.Event) error {
	return errors.New("broker down")
}

type fixture struct {
	conn   *gorm.DB
	svc    domain.Service
	repo   domain.Repository
	boards boarddomain.Repository
	users  authdomain.Repository
	hub    *realtime.Hub
	mail   *stubEmail
	node   *snowflake.Node
	clk    *clock.FakeClock
}

func newFixture(t *testing.T, publisher realtime.Publisher) *fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&authdomain.User{},
		&boarddomain.Board{},
		&domain.Invitation{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	hub := realtime.NewHub()
	if publisher == nil {
		publisher = realtime.NewLocalBroker(hub)
	}
	f := &fixture{
		conn:   conn,
		repo:   repository.Provide(conn),
		boards: boardrepo.Provide(conn),
		users:  authrepo.New(conn),
		hub:    hub,
		mail:   &stubEmail{},
		node:   node,
		clk:    clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
	}
	f.svc = New(Params{
		DB:        conn,
		Log:       zaptest.NewLogger(t),
		GenID:     node,
		Clock:     f.clk,
		Cfg:       config.Config{WebsiteDomain: "http://localhost:5173"},
		Repo:      f.repo,
		Boards:    f.boards,
		Users:     f.users,
		Email:     f.mail,
		Publisher: publisher,
	})
	return f
}

func (f *fixture) user(t *testing.T, email string) *authdomain.User {
	t.Helper()
	now := time.Now().UTC()
	user := &authdomain.User{
		ID:           f.node.Generate(),
		Email:        email,
		PasswordHash: "x",
		Username:     email,
		DisplayName:  email,
		Role:         authdomain.RoleClient,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *fixture) board(t *testing.T, ownerID snowflake.ID) *boarddomain.Board {
	t.Helper()
	now := time.Now().UTC()
	board := &boarddomain.Board{
		ID:             f.node.Generate(),
		Title:          "Roadmap",
		Slug:           "roadmap",
		Description:    "planning",
		Type:           boarddomain.BoardTypePrivate,
		ColumnOrderIDs: boarddomain.IDs{},
		OwnerIDs:       boarddomain.IDs{ownerID},
		MemberIDs:      boarddomain.IDs{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, f.boards.InsertBoard(context.Background(), board))
	return board
}

func (f *fixture) invite(t *testing.T, inviter *authdomain.User, board *boarddomain.Board, inviteeEmail string) *domain.InvitationView {
	t.Helper()
	view, err := f.svc.CreateBoardInvitation(context.Background(), inviter.ID, domain.CreateBoardInvitationRequest{
		BoardID:      board.ID,
		InviteeEmail: inviteeEmail,
	})
	require.NoError(t, err)
	return view
}

func TestCreateBoardInvitation(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)

	sub, _, err := f.hub.Subscribe(guest.ID.String())
	require.NoError(t, err)
	defer sub.Close()

	view := f.invite(t, owner, board, "Guest@Example.com")
	assert.Equal(t, domain.StatusPending, view.BoardInvitation.Status)
	assert.Equal(t, domain.TypeBoardInvitation, view.Type)
	assert.Equal(t, board.ID, view.Board.ID)
	assert.Equal(t, guest.ID, view.Invitee.ID)
	assert.Equal(t, owner.ID, view.Inviter.ID)
	assert.Equal(t, 1, f.mail.sent)

	select {
	case event := <-sub.Events():
		assert.Equal(t, realtime.EventInvitationCreated, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected realtime event for invitee")
	}

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.NotContains(t, decoded["invitee"], "PasswordHash")
	assert.Equal(t, "guest@example.com", decoded["invitee"].(map[string]any)["email"])

	// duplicate invitations are allowed
	second := f.invite(t, owner, board, "guest@example.com")
	assert.NotEqual(t, view.ID, second.ID)
}

func TestCreateBoardInvitationCombinedNotFound(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	f.user(t, "guest@example.com")
	outsider := f.user(t, "outsider@example.com")
	board := f.board(t, owner.ID)

	cases := map[string]struct {
		inviterID snowflake.ID
		boardID   snowflake.ID
		email     string
	}{
		"missing invitee": {owner.ID, board.ID, "nobody@example.com"},
		"missing board":   {owner.ID, snowflake.ID(123), "guest@example.com"},
		"missing inviter": {snowflake.ID(456), board.ID, "guest@example.com"},
		"foreign board":   {outsider.ID, board.ID, "guest@example.com"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.CreateBoardInvitation(context.Background(), tc.inviterID, domain.CreateBoardInvitationRequest{
				BoardID:      tc.boardID,
				InviteeEmail: tc.email,
			})
			assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
		})
	}

	_, err := f.svc.CreateBoardInvitation(context.Background(), owner.ID, domain.CreateBoardInvitationRequest{
		BoardID:      board.ID,
		InviteeEmail: "owner@example.com",
	})
	assert.ErrorIs(t, err, domain.ErrSelfInvitation)
}

func TestCreateBoardInvitationSurvivesNotificationFailures(t *testing.T) {
	f := newFixture(t, failingPublisher{})
	f.mail.err = errors.New("smtp down")
	owner := f.user(t, "owner@example.com")
	f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)

	view := f.invite(t, owner, board, "guest@example.com")
	assert.Equal(t, domain.StatusPending, view.BoardInvitation.Status)
}

func TestRespondAcceptedAddsMemberOnce(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)
	view := f.invite(t, owner, board, "guest@example.com")

	sub, _, err := f.hub.Subscribe(owner.ID.String())
	require.NoError(t, err)
	defer sub.Close()

	answered, err := f.svc.RespondToInvitation(context.Background(), guest.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusAccepted,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, answered.BoardInvitation.Status)

	stored, err := f.boards.FindBoard(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{guest.ID}, []snowflake.ID(stored.MemberIDs))

	select {
	case event := <-sub.Events():
		assert.Equal(t, realtime.EventInvitationResponded, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected realtime event for inviter")
	}

	// a second acceptance through a duplicate invitation conflicts
	again := f.invite(t, owner, board, "guest@example.com")
	_, err = f.svc.RespondToInvitation(context.Background(), guest.ID, domain.RespondRequest{
		InvitationID: again.ID,
		Status:       domain.StatusAccepted,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	stored, err = f.boards.FindBoard(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Len(t, stored.MemberIDs, 1)
}

func TestRespondStampsUpdatedAt(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)
	view := f.invite(t, owner, board, "guest@example.com")

	created, err := f.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, created)

	f.clk.Advance(90 * time.Minute)
	_, err = f.svc.RespondToInvitation(context.Background(), guest.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusRejected,
	})
	require.NoError(t, err)

	stored, err := f.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, stored.UpdatedAt.Equal(created.CreatedAt.Add(90*time.Minute)),
		"updatedAt %s", stored.UpdatedAt)
}

func TestRespondAcceptedWhenAlreadyOwnerConflicts(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	coOwner := f.user(t, "co@example.com")
	board := f.board(t, owner.ID)
	view := f.invite(t, owner, board, "co@example.com")

	_, err := f.boards.UpdateBoard(context.Background(), board.ID, map[string]any{
		"owner_ids": boarddomain.IDs{owner.ID, coOwner.ID},
	})
	require.NoError(t, err)

	_, err = f.svc.RespondToInvitation(context.Background(), coOwner.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusAccepted,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyMember)

	stored, err := f.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.BoardInvitation.Status)
}

func TestRespondRejectedIsTerminal(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)
	view := f.invite(t, owner, board, "guest@example.com")

	answered, err := f.svc.RespondToInvitation(context.Background(), guest.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusRejected,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, answered.BoardInvitation.Status)

	_, err = f.svc.RespondToInvitation(context.Background(), guest.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusAccepted,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyResponded)

	stored, err := f.boards.FindBoard(context.Background(), board.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.MemberIDs)
}

func TestRespondValidation(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)
	view := f.invite(t, owner, board, "guest@example.com")

	_, err := f.svc.RespondToInvitation(context.Background(), owner.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusPending,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.RespondToInvitation(context.Background(), owner.ID, domain.RespondRequest{
		InvitationID: view.ID,
		Status:       domain.StatusAccepted,
	})
	assert.ErrorIs(t, err, domain.ErrInvitationNotFound)

	_, err = f.svc.RespondToInvitation(context.Background(), owner.ID, domain.RespondRequest{
		InvitationID: snowflake.ID(99),
		Status:       domain.StatusRejected,
	})
	assert.ErrorIs(t, err, domain.ErrInvitationNotFound)
}

func TestListInvitationsDegradesMissingReferences(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.user(t, "owner@example.com")
	guest := f.user(t, "guest@example.com")
	board := f.board(t, owner.ID)
	f.invite(t, owner, board, "guest@example.com")

	require.NoError(t, f.conn.Model(&boarddomain.Board{}).Where("id = ?", board.ID).Update("destroyed", true).Error)
	require.NoError(t, f.conn.Model(&authdomain.User{}).Where("id = ?", owner.ID).Update("destroyed", true).Error)

	views, err := f.svc.ListInvitations(context.Background(), guest.ID)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Nil(t, views[0].Board)
	assert.Nil(t, views[0].Inviter)
	require.NotNil(t, views[0].Invitee)

	raw, err := json.Marshal(views[0])
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, map[string]any{}, decoded["board"])
	assert.Equal(t, map[string]any{}, decoded["inviter"])
	assert.Equal(t, "guest@example.com", decoded["invitee"].(map[string]any)["email"])

	other, err := f.svc.ListInvitations(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Empty(t, other)
}
