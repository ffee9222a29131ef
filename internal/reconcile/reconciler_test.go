package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	boardrepo "github.com/smallbiznis/taskboard/internal/board/repository"
	"github.com/smallbiznis/taskboard/internal/clock"
	invitationdomain "github.com/smallbiznis/taskboard/internal/invitation/domain"
	invitationrepo "github.com/smallbiznis/taskboard/internal/invitation/repository"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	owner    snowflake.ID = 1
	invitee  snowflake.ID = 77
	outsider snowflake.ID = 99

	boardID snowflake.ID = 10
	col1    snowflake.ID = 21
	col2    snowflake.ID = 22
	deadCol snowflake.ID = 23

	card1      snowflake.ID = 31
	card2      snowflake.ID = 32
	orphanCard snowflake.ID = 33
	card4      snowflake.ID = 34
	ghostCard  snowflake.ID = 888
)

var now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	boards      boarddomain.Repository
	invitations invitationdomain.Repository
}

func newReconciler(t *testing.T, locker *Locker) (*Reconciler, *fixture) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&boarddomain.Board{},
		&boarddomain.Column{},
		&boarddomain.Card{},
		&invitationdomain.Invitation{},
	))

	f := &fixture{
		boards:      boardrepo.Provide(conn),
		invitations: invitationrepo.Provide(conn),
	}
	r := New(Params{
		DB:          conn,
		Log:         zaptest.NewLogger(t),
		Clock:       clock.NewFakeClock(now),
		Cfg:         Config{Enabled: true, Interval: time.Minute, BatchSize: 1},
		Boards:      f.boards,
		Invitations: f.invitations,
		Locker:      locker,
		RunMetrics:  obsmetrics.NewReconcileMetrics(prometheus.NewRegistry(), obsmetrics.Config{}),
	})
	return r, f
}

// seedDrifted builds a board whose arrays disagree with its rows.
func (f *fixture) seedDrifted(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.boards.InsertBoard(ctx, &boarddomain.Board{
		ID:             boardID,
		Title:          "Drifted",
		Slug:           "drifted",
		Description:    "needs repair",
		Type:           boarddomain.BoardTypePrivate,
		ColumnOrderIDs: boarddomain.IDs{deadCol, col1, col1},
		OwnerIDs:       boarddomain.IDs{owner},
		MemberIDs:      boarddomain.IDs{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}))
	for _, c := range []struct {
		id    snowflake.ID
		order boarddomain.IDs
	}{
		{col1, boarddomain.IDs{card2, card1, ghostCard}},
		{col2, boarddomain.IDs{card2}},
	} {
		require.NoError(t, f.boards.InsertColumn(ctx, &boarddomain.Column{
			ID:           c.id,
			BoardID:      boardID,
			Title:        "Column",
			CardOrderIDs: c.order,
			CreatedAt:    now,
			UpdatedAt:    now,
		}))
	}
	for _, c := range []struct {
		id, column snowflake.ID
	}{
		{card1, col1},
		{card2, col2},
		{orphanCard, deadCol},
		{card4, col2},
	} {
		require.NoError(t, f.boards.InsertCard(ctx, &boarddomain.Card{
			ID:        c.id,
			BoardID:   boardID,
			ColumnID:  c.column,
			Title:     "Card",
			MemberIDs: boarddomain.IDs{},
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}
	for i, status := range []invitationdomain.Status{
		invitationdomain.StatusAccepted,
		invitationdomain.StatusAccepted,
		invitationdomain.StatusRejected,
	} {
		inviteeID := invitee
		if i == 2 {
			inviteeID = outsider
		}
		require.NoError(t, f.invitations.Insert(ctx, &invitationdomain.Invitation{
			ID:        snowflake.ID(500 + i),
			InviterID: owner,
			InviteeID: inviteeID,
			Type:      invitationdomain.TypeBoardInvitation,
			BoardInvitation: invitationdomain.BoardInvitation{
				BoardID: boardID,
				Status:  status,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}))
	}
}

func TestReconcileBoardRepairsDrift(t *testing.T) {
	r, f := newReconciler(t, nil)
	f.seedDrifted(t)
	ctx := context.Background()

	report, err := r.ReconcileBoard(ctx, owner, boardID)
	require.NoError(t, err)
	assert.Equal(t, 3, report.ColumnOrderRepairs)
	assert.Equal(t, 3, report.CardOrderRepairs)
	assert.Equal(t, 1, report.OrphanCards)
	assert.Equal(t, 1, report.MembersAdded)
	assert.Equal(t, 1, report.BoardsRepaired)

	board, err := f.boards.FindBoard(ctx, boardID)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{col1, col2}, []snowflake.ID(board.ColumnOrderIDs))
	assert.Equal(t, []snowflake.ID{invitee}, []snowflake.ID(board.MemberIDs))

	first, err := f.boards.FindColumn(ctx, col1)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{card1}, []snowflake.ID(first.CardOrderIDs))

	second, err := f.boards.FindColumn(ctx, col2)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{card2, card4}, []snowflake.ID(second.CardOrderIDs))

	orphan, err := f.boards.FindCard(ctx, orphanCard)
	require.NoError(t, err)
	assert.Nil(t, orphan)

	again, err := r.ReconcileBoard(ctx, owner, boardID)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
	assert.Zero(t, again.BoardsRepaired)
}

func TestReconcileBoardHidesForeignBoards(t *testing.T) {
	r, f := newReconciler(t, nil)
	f.seedDrifted(t)

	_, err := r.ReconcileBoard(context.Background(), outsider, boardID)
	assert.ErrorIs(t, err, boarddomain.ErrBoardNotFound)

	_, err = r.ReconcileBoard(context.Background(), owner, snowflake.ID(4040))
	assert.ErrorIs(t, err, boarddomain.ErrBoardNotFound)
}

func TestRunOnceWalksAllBoards(t *testing.T) {
	r, f := newReconciler(t, nil)
	f.seedDrifted(t)
	ctx := context.Background()

	require.NoError(t, f.boards.InsertBoard(ctx, &boarddomain.Board{
		ID:             boardID + 100,
		Title:          "Clean",
		Slug:           "clean",
		Description:    "already consistent",
		Type:           boarddomain.BoardTypePublic,
		ColumnOrderIDs: boarddomain.IDs{},
		OwnerIDs:       boarddomain.IDs{owner},
		MemberIDs:      boarddomain.IDs{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}))

	report, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.BoardsScanned)
	assert.Equal(t, 1, report.BoardsRepaired)
	assert.Equal(t, 8, report.Total())
}

func TestRunOnceSkipsWhileLockHeld(t *testing.T) {
	mr, client := newRedis(t)
	r, f := newReconciler(t, NewLocker(client))
	f.seedDrifted(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(lockKey, "other-replica"))

	report, err := r.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, report.Skipped)

	board, err := f.boards.FindBoard(ctx, boardID)
	require.NoError(t, err)
	assert.Len(t, board.ColumnOrderIDs, 3)

	mr.Del(lockKey)

	report, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 1, report.BoardsRepaired)
	assert.False(t, mr.Exists(lockKey))
}

func TestRepairOrder(t *testing.T) {
	order, repairs := repairOrder([]snowflake.ID{3, 1, 3, 9}, []snowflake.ID{1, 2, 3}, nil)
	assert.Equal(t, []snowflake.ID{3, 1, 2}, order)
	assert.Equal(t, 3, repairs)

	order, repairs = repairOrder([]snowflake.ID{1, 2}, []snowflake.ID{1, 2}, nil)
	assert.Equal(t, []snowflake.ID{1, 2}, order)
	assert.Zero(t, repairs)

	belongs := func(id snowflake.ID) bool { return id != 2 }
	order, repairs = repairOrder([]snowflake.ID{2, 1}, []snowflake.ID{1}, belongs)
	assert.Equal(t, []snowflake.ID{1}, order)
	assert.Equal(t, 1, repairs)
}
