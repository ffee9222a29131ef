// Package reconcile repairs board order arrays and memberships that drifted
// from the rows they reference.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	invitationdomain "github.com/smallbiznis/taskboard/internal/invitation/domain"
	obslogger "github.com/smallbiznis/taskboard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/taskboard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	lockKey          = "taskboard:reconcile:lock"
	defaultBatchSize = 100
	defaultInterval  = 10 * time.Minute

	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

type Config struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:  cfg.ReconcileEnabled,
		Interval: cfg.ReconcileInterval,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	return c
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Cfg         Config
	Boards      boarddomain.Repository
	Invitations invitationdomain.Repository
	Locker      *Locker                      `optional:"true"`
	Metrics     *obsmetrics.Metrics          `optional:"true"`
	RunMetrics  *obsmetrics.ReconcileMetrics `optional:"true"`
}

type Reconciler struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	cfg         Config
	boards      boarddomain.Repository
	invitations invitationdomain.Repository
	locker      *Locker
	metrics     *obsmetrics.Metrics
	runMetrics  *obsmetrics.ReconcileMetrics
}

func New(p Params) *Reconciler {
	return &Reconciler{
		db:          p.DB,
		log:         p.Log.Named("reconcile"),
		clock:       p.Clock,
		cfg:         p.Cfg.withDefaults(),
		boards:      p.Boards,
		invitations: p.Invitations,
		locker:      p.Locker,
		metrics:     p.Metrics,
		runMetrics:  p.RunMetrics,
	}
}

// RunForever reconciles every board once per interval until ctx is done.
func (r *Reconciler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := r.RunOnce(ctx); err != nil {
			r.log.Warn("reconcile run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce walks all live boards in id order. When a Locker is configured the
// run is skipped while another replica holds the lock.
func (r *Reconciler) RunOnce(ctx context.Context) (*Report, error) {
	start := r.clock.Now()
	r.runMetrics.IncRun(TriggerScheduled)

	if r.locker != nil {
		token, ok, err := r.locker.TryLock(ctx, lockKey, r.cfg.Interval)
		if err != nil {
			err = fmt.Errorf("%w: %v", obsmetrics.ErrLockUnavailable, err)
			r.runMetrics.IncError(TriggerScheduled, err)
			return nil, err
		}
		if !ok {
			r.runMetrics.IncLockSkipped()
			r.log.Debug("reconcile lock held elsewhere, skipping run")
			return &Report{Skipped: true}, nil
		}
		defer func() {
			if err := r.locker.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
				r.log.Warn("failed to release reconcile lock", zap.Error(err))
			}
		}()
	}

	total := &Report{}
	var runErr error
	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			runErr = errors.Join(runErr, err)
			break
		}
		boards, err := r.boards.ListBoardsAfter(ctx, afterID, r.cfg.BatchSize)
		if err != nil {
			runErr = errors.Join(runErr, err)
			break
		}
		if len(boards) == 0 {
			break
		}
		for _, board := range boards {
			report, err := r.reconcileBoard(ctx, board.ID)
			if err != nil {
				r.log.Warn("board reconcile failed",
					zap.String("board_id", board.ID.String()),
					zap.Error(err),
				)
				runErr = errors.Join(runErr, err)
				continue
			}
			total.merge(report)
		}
		afterID = boards[len(boards)-1].ID
	}

	r.record(ctx, TriggerScheduled, total, start, runErr)
	return total, runErr
}

// ReconcileBoard repairs a single board on behalf of one of its members.
// Outsiders get ErrBoardNotFound.
func (r *Reconciler) ReconcileBoard(ctx context.Context, userID, boardID snowflake.ID) (*Report, error) {
	if userID == 0 {
		return nil, boarddomain.ErrInvalidUser
	}
	if boardID == 0 {
		return nil, boarddomain.ErrInvalidBoard
	}
	board, err := r.boards.FindBoardForMember(ctx, boardID, userID)
	if err != nil {
		return nil, err
	}
	if board == nil {
		return nil, boarddomain.ErrBoardNotFound
	}

	start := r.clock.Now()
	r.runMetrics.IncRun(TriggerManual)
	report, err := r.reconcileBoard(ctx, board.ID)
	if err != nil {
		r.record(ctx, TriggerManual, &Report{}, start, err)
		return nil, err
	}
	r.record(ctx, TriggerManual, report, start, nil)
	return report, nil
}

func (r *Reconciler) record(ctx context.Context, trigger string, report *Report, start time.Time, err error) {
	r.runMetrics.ObserveDuration(trigger, r.clock.Now().Sub(start))
	r.runMetrics.IncError(trigger, err)
	for kind, count := range report.byKind() {
		r.runMetrics.AddRepairs(kind, count)
		r.metrics.RecordReconcileRepairs(ctx, kind, count)
	}
	if report.Total() > 0 || err != nil {
		obslogger.WithContext(ctx, r.log).Info("reconcile finished",
			zap.String("trigger", trigger),
			zap.Object("report", report),
			zap.Error(err),
		)
	}
}

// reconcileBoard locks the board and rewrites its arrays from the live rows.
func (r *Reconciler) reconcileBoard(ctx context.Context, boardID snowflake.ID) (*Report, error) {
	report := &Report{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		boards := r.boards.WithTx(tx)
		invitations := r.invitations.WithTx(tx)

		board, err := boards.LockBoard(ctx, boardID)
		if err != nil {
			return err
		}
		if board == nil {
			return nil
		}
		report.BoardsScanned = 1

		columns, err := boards.ListColumnsByBoard(ctx, board.ID)
		if err != nil {
			return err
		}
		cards, err := boards.ListCardsByBoard(ctx, board.ID)
		if err != nil {
			return err
		}
		now := r.clock.Now()

		columnIDs := make([]snowflake.ID, 0, len(columns))
		for _, column := range columns {
			columnIDs = append(columnIDs, column.ID)
		}
		if order, repairs := repairOrder(board.ColumnOrderIDs, columnIDs, nil); repairs > 0 {
			if _, err := boards.UpdateBoard(ctx, board.ID, map[string]any{
				"column_order_ids": boarddomain.IDs(order),
				"updated_at":       now,
			}); err != nil {
				return err
			}
			report.ColumnOrderRepairs += repairs
		}

		liveColumns := make(map[snowflake.ID]struct{}, len(columns))
		for _, id := range columnIDs {
			liveColumns[id] = struct{}{}
		}
		cardsByColumn := make(map[snowflake.ID][]snowflake.ID, len(columns))
		cardColumn := make(map[snowflake.ID]snowflake.ID, len(cards))
		for _, card := range cards {
			if _, ok := liveColumns[card.ColumnID]; !ok {
				if _, err := boards.UpdateCard(ctx, card.ID, map[string]any{
					"destroyed":  true,
					"updated_at": now,
				}); err != nil {
					return err
				}
				report.OrphanCards++
				continue
			}
			cardsByColumn[card.ColumnID] = append(cardsByColumn[card.ColumnID], card.ID)
			cardColumn[card.ID] = card.ColumnID
		}

		for _, column := range columns {
			belongs := func(id snowflake.ID) bool { return cardColumn[id] == column.ID }
			order, repairs := repairOrder(column.CardOrderIDs, cardsByColumn[column.ID], belongs)
			if repairs == 0 {
				continue
			}
			if _, err := boards.UpdateColumn(ctx, column.ID, map[string]any{
				"card_order_ids": boarddomain.IDs(order),
				"updated_at":     now,
			}); err != nil {
				return err
			}
			report.CardOrderRepairs += repairs
		}

		accepted, err := invitations.ListAccepted(ctx, board.ID)
		if err != nil {
			return err
		}
		for _, invitation := range accepted {
			if board.HasMember(invitation.InviteeID) {
				continue
			}
			added, err := boards.AddMember(ctx, board.ID, invitation.InviteeID)
			if err != nil {
				return err
			}
			if added {
				board.MemberIDs = append(board.MemberIDs, invitation.InviteeID)
				report.MembersAdded++
			}
		}

		if report.Total() > 0 {
			report.BoardsRepaired = 1
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile board %s: %w", boardID, err)
	}
	return report, nil
}

// repairOrder keeps the entries of current that are live (and accepted by
// belongs when given), drops duplicates, then appends live ids missing from
// the order. It returns the new order and the number of entries changed.
func repairOrder(current []snowflake.ID, live []snowflake.ID, belongs func(snowflake.ID) bool) ([]snowflake.ID, int) {
	liveSet := make(map[snowflake.ID]struct{}, len(live))
	for _, id := range live {
		liveSet[id] = struct{}{}
	}

	order := make([]snowflake.ID, 0, len(live))
	seen := make(map[snowflake.ID]struct{}, len(current))
	repairs := 0
	for _, id := range current {
		_, isLive := liveSet[id]
		_, dup := seen[id]
		if !isLive || dup || (belongs != nil && !belongs(id)) {
			repairs++
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
	}
	for _, id := range live {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		order = append(order, id)
		repairs++
	}
	return order, repairs
}
