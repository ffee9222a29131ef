package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct {
	db      *gorm.DB
	boards  repository.Repository[boarddomain.Board]
	columns repository.Repository[boarddomain.Column]
	cards   repository.Repository[boarddomain.Card]
}

func Provide(db *gorm.DB) boarddomain.Repository {
	return &repo{
		db:      db,
		boards:  repository.ProvideStore[boarddomain.Board](db),
		columns: repository.ProvideStore[boarddomain.Column](db),
		cards:   repository.ProvideStore[boarddomain.Card](db),
	}
}

func (r *repo) WithTx(tx *gorm.DB) boarddomain.Repository {
	return &repo{
		db:      tx,
		boards:  r.boards.WithTrx(tx),
		columns: r.columns.WithTrx(tx),
		cards:   r.cards.WithTrx(tx),
	}
}

// memberOf matches boards whose owner or member set contains userID. Ids are
// stored as JSON strings.
func memberOf(userID snowflake.ID) clause.Expression {
	return clause.Or(
		datatypes.JSONArrayQuery("owner_ids").Contains(userID.String()),
		datatypes.JSONArrayQuery("member_ids").Contains(userID.String()),
	)
}

func (r *repo) InsertBoard(ctx context.Context, board *boarddomain.Board) error {
	return r.boards.Insert(ctx, board)
}

func (r *repo) FindBoard(ctx context.Context, id snowflake.ID) (*boarddomain.Board, error) {
	return r.boards.FindOne(ctx, nil, option.Equals("id", id), option.Alive())
}

func (r *repo) FindBoardForMember(ctx context.Context, id, userID snowflake.ID) (*boarddomain.Board, error) {
	return r.boards.FindOne(ctx, nil, option.Equals("id", id),
		option.Alive(),
		option.WhereExpr(memberOf(userID)),
	)
}

func (r *repo) FindBoardsByIDs(ctx context.Context, ids []snowflake.ID) ([]*boarddomain.Board, error) {
	if len(ids) == 0 {
		return []*boarddomain.Board{}, nil
	}
	return r.boards.FindMany(ctx, nil, option.Alive(), option.Where("id IN ?", ids))
}

func (r *repo) ListBoardsForMember(ctx context.Context, userID snowflake.ID) ([]*boarddomain.Board, error) {
	return r.boards.FindMany(ctx, nil,
		option.Alive(),
		option.WhereExpr(memberOf(userID)),
		option.OrderBy("id ASC"),
	)
}

func (r *repo) ListBoardsAfter(ctx context.Context, afterID snowflake.ID, limit int) ([]*boarddomain.Board, error) {
	return r.boards.FindMany(ctx, nil,
		option.Alive(),
		option.Where("id > ?", afterID),
		option.OrderBy("id ASC"),
		option.Limit(limit),
	)
}

func (r *repo) UpdateBoard(ctx context.Context, id snowflake.ID, patch map[string]any) (*boarddomain.Board, error) {
	return r.boards.UpdateOne(ctx, id, patch)
}

func (r *repo) LockBoard(ctx context.Context, id snowflake.ID) (*boarddomain.Board, error) {
	return r.boards.FindOne(ctx, nil, option.Equals("id", id), option.Alive(), option.ForUpdate())
}

func (r *repo) AppendColumnOrderID(ctx context.Context, boardID, columnID snowflake.ID) (*boarddomain.Board, error) {
	return updateLocked(ctx, r.db, boardID, func(b *boarddomain.Board) (map[string]any, bool) {
		next, changed := boarddomain.AppendID(b.ColumnOrderIDs, columnID)
		b.ColumnOrderIDs = next
		return map[string]any{"column_order_ids": b.ColumnOrderIDs}, changed
	})
}

func (r *repo) PullColumnOrderID(ctx context.Context, boardID, columnID snowflake.ID) (*boarddomain.Board, error) {
	return updateLocked(ctx, r.db, boardID, func(b *boarddomain.Board) (map[string]any, bool) {
		next, changed := boarddomain.RemoveID(b.ColumnOrderIDs, columnID)
		b.ColumnOrderIDs = next
		return map[string]any{"column_order_ids": b.ColumnOrderIDs}, changed
	})
}

func (r *repo) AddMember(ctx context.Context, boardID, userID snowflake.ID) (bool, error) {
	var added bool
	board, err := updateLocked(ctx, r.db, boardID, func(b *boarddomain.Board) (map[string]any, bool) {
		next, changed := boarddomain.AppendID(b.MemberIDs, userID)
		b.MemberIDs = next
		added = changed
		return map[string]any{"member_ids": b.MemberIDs}, changed
	})
	if err != nil {
		return false, err
	}
	if board == nil {
		return false, boarddomain.ErrBoardNotFound
	}
	return added, nil
}

func (r *repo) InsertColumn(ctx context.Context, column *boarddomain.Column) error {
	return r.columns.Insert(ctx, column)
}

func (r *repo) FindColumn(ctx context.Context, id snowflake.ID) (*boarddomain.Column, error) {
	return r.columns.FindOne(ctx, nil, option.Equals("id", id), option.Alive())
}

func (r *repo) LockColumn(ctx context.Context, id snowflake.ID) (*boarddomain.Column, error) {
	return r.columns.FindOne(ctx, nil, option.Equals("id", id), option.Alive(), option.ForUpdate())
}

func (r *repo) ListColumnsByBoard(ctx context.Context, boardID snowflake.ID) ([]*boarddomain.Column, error) {
	return r.columns.FindMany(ctx, nil, option.Equals("board_id", boardID), option.Alive(), option.OrderBy("id ASC"))
}

func (r *repo) UpdateColumn(ctx context.Context, id snowflake.ID, patch map[string]any) (*boarddomain.Column, error) {
	return r.columns.UpdateOne(ctx, id, patch)
}

func (r *repo) DeleteColumn(ctx context.Context, id snowflake.ID) (int64, error) {
	return r.columns.DeleteOne(ctx, id)
}

func (r *repo) AppendCardOrderID(ctx context.Context, columnID, cardID snowflake.ID) (*boarddomain.Column, error) {
	return updateLocked(ctx, r.db, columnID, func(c *boarddomain.Column) (map[string]any, bool) {
		next, changed := boarddomain.AppendID(c.CardOrderIDs, cardID)
		c.CardOrderIDs = next
		return map[string]any{"card_order_ids": c.CardOrderIDs}, changed
	})
}

func (r *repo) InsertCard(ctx context.Context, card *boarddomain.Card) error {
	return r.cards.Insert(ctx, card)
}

func (r *repo) FindCard(ctx context.Context, id snowflake.ID) (*boarddomain.Card, error) {
	return r.cards.FindOne(ctx, nil, option.Equals("id", id), option.Alive())
}

func (r *repo) LockCard(ctx context.Context, id snowflake.ID) (*boarddomain.Card, error) {
	return r.cards.FindOne(ctx, nil, option.Equals("id", id), option.Alive(), option.ForUpdate())
}

func (r *repo) ListCardsByBoard(ctx context.Context, boardID snowflake.ID) ([]*boarddomain.Card, error) {
	return r.cards.FindMany(ctx, nil, option.Equals("board_id", boardID), option.Alive(), option.OrderBy("id ASC"))
}

func (r *repo) UpdateCard(ctx context.Context, id snowflake.ID, patch map[string]any) (*boarddomain.Card, error) {
	return r.cards.UpdateOne(ctx, id, patch)
}

func (r *repo) DeleteCardsByColumn(ctx context.Context, columnID snowflake.ID) (int64, error) {
	return r.cards.DeleteMany(ctx, option.Where("column_id = ?", columnID))
}

// updateLocked reads the live row under a row lock, lets mutate edit it and
// writes the returned patch when mutate reports a change. It returns nil when
// the row does not exist.
func updateLocked[T any](ctx context.Context, db *gorm.DB, id snowflake.ID, mutate func(*T) (map[string]any, bool)) (*T, error) {
	var out *T
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row T
		stmt := option.ForUpdate().Apply(tx.Where("id = ? AND destroyed = ?", id, false))
		if err := stmt.Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		patch, changed := mutate(&row)
		if changed {
			if err := tx.Model(new(T)).Where("id = ?", id).Updates(patch).Error; err != nil {
				return err
			}
		}
		out = &row
		return nil
	})
	return out, err
}
