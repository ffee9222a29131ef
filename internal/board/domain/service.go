package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/db/pagination"
)

type CreateBoardRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        BoardType `json:"type"`
}

// UpdateBoardRequest carries the optional board fields. ColumnOrderIDs must be
// a permutation of the current order.
type UpdateBoardRequest struct {
	Title          *string         `json:"title,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Type           *BoardType      `json:"type,omitempty"`
	ColumnOrderIDs *[]snowflake.ID `json:"columnOrderIds,omitempty"`
}

type ListBoardsResult struct {
	Boards     []*Board            `json:"boards"`
	TotalCount int                 `json:"totalBoards"`
	PageInfo   pagination.PageInfo `json:"pageInfo"`
}

type CreateColumnRequest struct {
	BoardID snowflake.ID `json:"boardId"`
	Title   string       `json:"title"`
}

type UpdateColumnRequest struct {
	Title        *string         `json:"title,omitempty"`
	CardOrderIDs *[]snowflake.ID `json:"cardOrderIds,omitempty"`
}

type DeleteColumnResult struct {
	DeletedColumns int64 `json:"deletedColumns"`
	DeletedCards   int64 `json:"deletedCards"`
}

type CreateCardRequest struct {
	BoardID     snowflake.ID `json:"boardId"`
	ColumnID    snowflake.ID `json:"columnId"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
}

// CommentAuthor is the public profile copied into a comment.
type CommentAuthor struct {
	UserID      snowflake.ID
	Email       string
	DisplayName string
	Avatar      string
}

type NewComment struct {
	Author  CommentAuthor
	Content string
}

type CardMemberChange struct {
	UserID snowflake.ID     `json:"userId"`
	Action CardMemberAction `json:"action"`
}

type UpdateCardRequest struct {
	Title        *string           `json:"title,omitempty"`
	Description  *string           `json:"description,omitempty"`
	Cover        *string           `json:"cover,omitempty"`
	Comment      *NewComment       `json:"-"`
	MemberChange *CardMemberChange `json:"incomingMemberInfo,omitempty"`
}

// MoveCardRequest moves a card between (or within) columns. The order arrays
// are the complete new orders of both columns.
type MoveCardRequest struct {
	CardID           snowflake.ID   `json:"currentCardId"`
	PrevColumnID     snowflake.ID   `json:"prevColumnId"`
	PrevCardOrderIDs []snowflake.ID `json:"prevCardOrderIds"`
	NextColumnID     snowflake.ID   `json:"nextColumnId"`
	NextCardOrderIDs []snowflake.ID `json:"nextCardOrderIds"`
}

type MoveCardResult struct {
	Card       *Card   `json:"card"`
	PrevColumn *Column `json:"prevColumn"`
	NextColumn *Column `json:"nextColumn"`
}

type Service interface {
	CreateBoard(ctx context.Context, userID snowflake.ID, req CreateBoardRequest) (*Board, error)
	GetBoardDetail(ctx context.Context, userID, boardID snowflake.ID) (*BoardDetail, error)
	ListBoards(ctx context.Context, userID snowflake.ID, page pagination.Pagination) (*ListBoardsResult, error)
	UpdateBoard(ctx context.Context, userID, boardID snowflake.ID, req UpdateBoardRequest) (*Board, error)

	CreateColumn(ctx context.Context, userID snowflake.ID, req CreateColumnRequest) (*Column, error)
	UpdateColumn(ctx context.Context, userID, columnID snowflake.ID, req UpdateColumnRequest) (*Column, error)
	DeleteColumn(ctx context.Context, userID, columnID snowflake.ID) (*DeleteColumnResult, error)

	CreateCard(ctx context.Context, userID snowflake.ID, req CreateCardRequest) (*Card, error)
	UpdateCard(ctx context.Context, userID, cardID snowflake.ID, req UpdateCardRequest) (*Card, error)
	MoveCard(ctx context.Context, userID snowflake.ID, req MoveCardRequest) (*MoveCardResult, error)
}
