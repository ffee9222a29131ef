package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence gateway for boards, columns and cards. Find
// methods return nil without error when nothing matches and never return
// destroyed rows. Append/Pull/Add methods are idempotent set operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	InsertBoard(ctx context.Context, board *Board) error
	FindBoard(ctx context.Context, id snowflake.ID) (*Board, error)
	FindBoardForMember(ctx context.Context, id, userID snowflake.ID) (*Board, error)
	FindBoardsByIDs(ctx context.Context, ids []snowflake.ID) ([]*Board, error)
	ListBoardsForMember(ctx context.Context, userID snowflake.ID) ([]*Board, error)
	ListBoardsAfter(ctx context.Context, afterID snowflake.ID, limit int) ([]*Board, error)
	UpdateBoard(ctx context.Context, id snowflake.ID, patch map[string]any) (*Board, error)
	LockBoard(ctx context.Context, id snowflake.ID) (*Board, error)
	AppendColumnOrderID(ctx context.Context, boardID, columnID snowflake.ID) (*Board, error)
	PullColumnOrderID(ctx context.Context, boardID, columnID snowflake.ID) (*Board, error)
	AddMember(ctx context.Context, boardID, userID snowflake.ID) (bool, error)

	InsertColumn(ctx context.Context, column *Column) error
	FindColumn(ctx context.Context, id snowflake.ID) (*Column, error)
	LockColumn(ctx context.Context, id snowflake.ID) (*Column, error)
	ListColumnsByBoard(ctx context.Context, boardID snowflake.ID) ([]*Column, error)
	UpdateColumn(ctx context.Context, id snowflake.ID, patch map[string]any) (*Column, error)
	DeleteColumn(ctx context.Context, id snowflake.ID) (int64, error)
	AppendCardOrderID(ctx context.Context, columnID, cardID snowflake.ID) (*Column, error)

	InsertCard(ctx context.Context, card *Card) error
	FindCard(ctx context.Context, id snowflake.ID) (*Card, error)
	LockCard(ctx context.Context, id snowflake.ID) (*Card, error)
	ListCardsByBoard(ctx context.Context, boardID snowflake.ID) ([]*Card, error)
	UpdateCard(ctx context.Context, id snowflake.ID, patch map[string]any) (*Card, error)
	DeleteCardsByColumn(ctx context.Context, columnID snowflake.ID) (int64, error)
}
