package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authrepo "github.com/smallbiznis/taskboard/internal/auth/repository"
	authservice "github.com/smallbiznis/taskboard/internal/auth/service"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	"github.com/smallbiznis/taskboard/internal/auth/token"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	boardrepo "github.com/smallbiznis/taskboard/internal/board/repository"
	boardservice "github.com/smallbiznis/taskboard/internal/board/service"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	invitationrepo "github.com/smallbiznis/taskboard/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/taskboard/internal/invitation/service"
	"github.com/smallbiznis/taskboard/internal/migration"
	"github.com/smallbiznis/taskboard/internal/notification/email"
	"github.com/smallbiznis/taskboard/internal/notification/realtime"
	"github.com/smallbiznis/taskboard/internal/reconcile"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

const testPassword = "s3cretpass"

type harness struct {
	t      *testing.T
	engine *gin.Engine
	conn   *gorm.DB
	clock  *clock.FakeClock
	hub    *realtime.Hub
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	clk := clock.NewFakeClock(time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC))
	cfg := config.Config{
		WebsiteDomain: "http://localhost:5173",
		Auth: config.AuthConfig{
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			Issuer:          "taskboard-test",
		},
	}

	users := authrepo.New(conn)
	boards := boardrepo.Provide(conn)
	invitations := invitationrepo.Provide(conn)
	hub := realtime.NewHub()
	mailer := &email.NoOpProvider{}

	authSvc := authservice.New(authservice.Params{
		Log:    log,
		Cfg:    cfg,
		Repo:   users,
		GenID:  node,
		Clock:  clk,
		Tokens: token.New("access-secret", "refresh-secret", cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, cfg.Auth.Issuer, clk),
		Email:  mailer,
	})
	boardSvc := boardservice.New(boardservice.Params{
		DB:     conn,
		Log:    log,
		GenID:  node,
		Repo:   boards,
		Clock:  clk,
		Limits: config.NewStaticLimits(config.DefaultBoardLimits()),
	})
	invitationSvc := invitationservice.New(invitationservice.Params{
		DB:        conn,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Cfg:       cfg,
		Repo:      invitations,
		Boards:    boards,
		Users:     users,
		Email:     mailer,
		Publisher: realtime.NewLocalBroker(hub),
	})
	reconciler := reconcile.New(reconcile.Params{
		DB:          conn,
		Log:         log,
		Clock:       clk,
		Cfg:         reconcile.Config{Interval: time.Minute},
		Boards:      boards,
		Invitations: invitations,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		Authsvc:       authSvc,
		Sessions:      session.NewManager(cfg),
		BoardSvc:      boardSvc,
		InvitationSvc: invitationSvc,
		Reconciler:    reconciler,
		Invitations:   hub,
	})

	return &harness{t: t, engine: engine, conn: conn, clock: clk, hub: hub}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *errorPayload   `json:"error"`
}

func (h *harness) do(method, path, accessToken string, body any) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

// signUp registers, verifies and logs in a user, returning its access token
// and id.
func (h *harness) signUp(emailAddr string) (string, string) {
	h.t.Helper()

	rec, _ := h.do(http.MethodPost, "/v1/users/register", "", gin.H{"email": emailAddr, "password": testPassword})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())

	user, err := authrepo.New(h.conn).FindByEmail(context.Background(), emailAddr)
	require.NoError(h.t, err)
	require.NotNil(h.t, user.VerifyToken)

	rec, _ = h.do(http.MethodPost, "/v1/users/verify", "", gin.H{"email": emailAddr, "token": *user.VerifyToken})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := h.do(http.MethodPost, "/v1/users/login", "", gin.H{"email": emailAddr, "password": testPassword})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			ID string `json:"_id"`
		} `json:"user"`
	}
	require.NoError(h.t, json.Unmarshal(env.Data, &login))
	return login.AccessToken, login.User.ID
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestUserLifecycle(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodPost, "/v1/users/register", "", gin.H{"email": "ana@example.com", "password": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Type)

	rec, _ = h.do(http.MethodPost, "/v1/users/register", "", gin.H{"email": "ana@example.com", "password": testPassword})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env = h.do(http.MethodPost, "/v1/users/register", "", gin.H{"email": "ana@example.com", "password": testPassword})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email already exists", env.Error.Message)

	rec, _ = h.do(http.MethodPost, "/v1/users/login", "", gin.H{"email": "ana@example.com", "password": testPassword})
	assert.Equal(t, http.StatusForbidden, rec.Code, "unverified accounts cannot log in")

	rec, _ = h.do(http.MethodPost, "/v1/users/verify", "", gin.H{"email": "ana@example.com", "token": "wrong"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	user, err := authrepo.New(h.conn).FindByEmail(context.Background(), "ana@example.com")
	require.NoError(t, err)
	rec, _ = h.do(http.MethodPost, "/v1/users/verify", "", gin.H{"email": "ana@example.com", "token": *user.VerifyToken})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodPost, "/v1/users/login", "", gin.H{"email": "ana@example.com", "password": "wrongpass1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = h.do(http.MethodPost, "/v1/users/login", "", gin.H{"email": "ana@example.com", "password": testPassword})
	require.Equal(t, http.StatusOK, rec.Code)

	var accessCookie *http.Cookie
	var refreshCookie *http.Cookie
	for _, cookie := range rec.Result().Cookies() {
		switch cookie.Name {
		case session.AccessTokenCookie:
			accessCookie = cookie
		case session.RefreshTokenCookie:
			refreshCookie = cookie
		}
	}
	require.NotNil(t, accessCookie)
	require.NotNil(t, refreshCookie)
	assert.True(t, accessCookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.AddCookie(accessCookie)
	me := httptest.NewRecorder()
	h.engine.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	var meEnv envelope
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &meEnv))
	profile := decode[map[string]any](t, meEnv.Data)
	assert.Equal(t, "ana@example.com", profile["email"])
	assert.Equal(t, "ana", profile["displayName"])
	assert.NotContains(t, profile, "PasswordHash")

	// access token expired: 410, refresh issues a new one
	h.clock.Advance(2 * time.Hour)
	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.AddCookie(accessCookie)
	expired := httptest.NewRecorder()
	h.engine.ServeHTTP(expired, req)
	assert.Equal(t, http.StatusGone, expired.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/users/refresh_token", nil)
	req.AddCookie(refreshCookie)
	refreshed := httptest.NewRecorder()
	h.engine.ServeHTTP(refreshed, req)
	require.Equal(t, http.StatusOK, refreshed.Code, refreshed.Body.String())
	var refreshEnv envelope
	require.NoError(t, json.Unmarshal(refreshed.Body.Bytes(), &refreshEnv))
	fresh := decode[map[string]any](t, refreshEnv.Data)
	newToken, _ := fresh["accessToken"].(string)
	require.NotEmpty(t, newToken)

	rec, _ = h.do(http.MethodGet, "/v1/users/me", newToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = h.do(http.MethodDelete, "/v1/users/logout", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	h := newHarness(t)

	rec, env := h.do(http.MethodGet, "/v1/boards", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", env.Error.Type)

	rec, _ = h.do(http.MethodGet, "/v1/boards", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBoardWorkflow(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.signUp("owner@example.com")
	outsiderToken, _ := h.signUp("outsider@example.com")

	rec, env := h.do(http.MethodPost, "/v1/boards", ownerToken, gin.H{"title": "ab", "description": "too short title", "type": "private"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "title", env.Error.Errors[0].Field)

	rec, env = h.do(http.MethodPost, "/v1/boards", ownerToken, gin.H{"title": "Launch Plan", "description": "go to market", "type": "private"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	board := decode[boarddomain.Board](t, env.Data)
	assert.Equal(t, "launch-plan", board.Slug)

	createColumn := func(title string) boarddomain.Column {
		rec, env := h.do(http.MethodPost, "/v1/columns", ownerToken, gin.H{"boardId": board.ID.String(), "title": title})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[boarddomain.Column](t, env.Data)
	}
	todo := createColumn("Todo")
	done := createColumn("Done")

	rec, env = h.do(http.MethodPost, "/v1/cards", ownerToken, gin.H{
		"boardId":  board.ID.String(),
		"columnId": todo.ID.String(),
		"title":    "Write copy",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decode[boarddomain.Card](t, env.Data)

	rec, env = h.do(http.MethodPut, "/v1/boards/supports/moving_card", ownerToken, gin.H{
		"currentCardId":    card.ID.String(),
		"prevColumnId":     todo.ID.String(),
		"prevCardOrderIds": []string{},
		"nextColumnId":     done.ID.String(),
		"nextCardOrderIds": []string{card.ID.String()},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decode[boarddomain.MoveCardResult](t, env.Data)
	assert.Equal(t, done.ID, moved.Card.ColumnID)

	rec, env = h.do(http.MethodPut, "/v1/boards/supports/moving_card", ownerToken, gin.H{
		"currentCardId":    card.ID.String(),
		"prevColumnId":     todo.ID.String(),
		"prevCardOrderIds": []string{card.ID.String()},
		"nextColumnId":     done.ID.String(),
		"nextCardOrderIds": []string{card.ID.String()},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_order", env.Error.Errors[0].Code)

	rec, env = h.do(http.MethodPut, "/v1/cards/"+card.ID.String(), ownerToken, gin.H{
		"commentToAdd": gin.H{"content": "ship it"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	commented := decode[boarddomain.Card](t, env.Data)
	require.Len(t, commented.Comments, 1)
	assert.Equal(t, "owner@example.com", commented.Comments[0].UserEmail)

	rec, env = h.do(http.MethodGet, "/v1/boards/"+board.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[boarddomain.BoardDetail](t, env.Data)
	require.Len(t, detail.Columns, 2)
	for _, column := range detail.Columns {
		if column.ID == done.ID {
			require.Len(t, column.Cards, 1)
			assert.Equal(t, card.ID, column.Cards[0].ID)
		} else {
			assert.Empty(t, column.Cards)
		}
	}

	missing, missingEnv := h.do(http.MethodGet, "/v1/boards/123456", ownerToken, nil)
	foreign, foreignEnv := h.do(http.MethodGet, "/v1/boards/"+board.ID.String(), outsiderToken, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, missing.Code, foreign.Code)
	assert.Equal(t, missingEnv.Error, foreignEnv.Error)

	rec, _ = h.do(http.MethodGet, "/v1/boards/not-an-id", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = h.do(http.MethodGet, "/v1/boards?page=1&itemsPerPage=5", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[boarddomain.ListBoardsResult](t, env.Data)
	assert.Equal(t, 1, list.TotalCount)

	rec, env = h.do(http.MethodPost, "/v1/boards/"+board.ID.String()+"/reconcile", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[reconcile.Report](t, env.Data)
	assert.Zero(t, report.Total())

	rec, env = h.do(http.MethodDelete, "/v1/columns/"+done.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	deleted := decode[boarddomain.DeleteColumnResult](t, env.Data)
	assert.Equal(t, int64(1), deleted.DeletedCards)
}

func TestInvitationWorkflow(t *testing.T) {
	h := newHarness(t)
	ownerToken, _ := h.signUp("owner@example.com")
	guestToken, _ := h.signUp("guest@example.com")

	_, env := h.do(http.MethodPost, "/v1/boards", ownerToken, gin.H{"title": "Team Board", "description": "shared work", "type": "public"})
	board := decode[boarddomain.Board](t, env.Data)

	rec, env := h.do(http.MethodPost, "/v1/invitations/board", ownerToken, gin.H{"boardId": board.ID.String(), "inviteeEmail": "nobody@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Board, invitee or inviter not found", env.Error.Message)

	rec, env = h.do(http.MethodPost, "/v1/invitations/board", ownerToken, gin.H{"boardId": board.ID.String(), "inviteeEmail": "guest@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, env.Data)
	invitationID, _ := created["_id"].(string)
	require.NotEmpty(t, invitationID)

	rec, env = h.do(http.MethodGet, "/v1/invitations", guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[[]map[string]any](t, env.Data)
	require.Len(t, listed, 1)
	assert.Equal(t, "Team Board", listed[0]["board"].(map[string]any)["title"])

	rec, _ = h.do(http.MethodPut, "/v1/invitations/board/"+invitationID, ownerToken, gin.H{"status": "ACCEPTED"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "only the invitee can answer")

	rec, env = h.do(http.MethodPut, "/v1/invitations/board/"+invitationID, guestToken, gin.H{"status": "ACCEPTED"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	answered := decode[map[string]any](t, env.Data)
	assert.Equal(t, "ACCEPTED", answered["boardInvitation"].(map[string]any)["status"])

	rec, _ = h.do(http.MethodGet, "/v1/boards/"+board.ID.String(), guestToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code, "accepted invitees see the board")

	rec, env = h.do(http.MethodPut, "/v1/invitations/board/"+invitationID, guestToken, gin.H{"status": "ACCEPTED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", env.Error.Type)
}

func TestStreamInvitations(t *testing.T) {
	h := newHarness(t)
	guestToken, guestID := h.signUp("guest@example.com")

	srv := httptest.NewServer(h.engine)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/invitations/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+guestToken)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "retry: 2000\n", line)

	event, err := realtime.NewEvent(realtime.EventInvitationCreated, guestID, gin.H{"_id": "1"}, h.clock.Now())
	require.NoError(t, err)
	h.hub.Deliver(event)

	for {
		line, err = reader.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, "event: ") {
			break
		}
	}
	assert.Equal(t, "event: invitation.created\n", line)
}

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{boarddomain.ErrInvalidOrder, http.StatusBadRequest, "validation_error"},
		{boarddomain.ErrBoardNotFound, http.StatusNotFound, "not_found"},
		{ErrTooManyRequests, http.StatusTooManyRequests, "too_many_requests"},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
		{assert.AnError, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, payload.Type, tc.err.Error())
	}

	kind, code := classifyErrorForLog(boarddomain.ErrInvalidTitle)
	assert.Equal(t, "client", kind)
	assert.Equal(t, "invalid_title", code)
}
