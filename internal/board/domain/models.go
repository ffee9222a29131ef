// Package domain contains the board, column and card models and the
// contracts of the board service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type BoardType string

const (
	BoardTypePublic  BoardType = "public"
	BoardTypePrivate BoardType = "private"
)

func (t BoardType) Valid() bool {
	return t == BoardTypePublic || t == BoardTypePrivate
}

type CardMemberAction string

const (
	CardMemberAdd    CardMemberAction = "ADD"
	CardMemberRemove CardMemberAction = "REMOVE"
)

// IDs is an ordered list of identities stored as a JSON array.
type IDs = datatypes.JSONSlice[snowflake.ID]

// Board is the root of a board's column/card tree. ColumnOrderIDs lists the
// live columns of the board in display order.
type Board struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"_id"`
	Title          string       `gorm:"type:text;not null" json:"title"`
	Slug           string       `gorm:"type:text;not null;index" json:"slug"`
	Description    string       `gorm:"type:text;not null" json:"description"`
	Type           BoardType    `gorm:"type:text;not null" json:"type"`
	ColumnOrderIDs IDs          `gorm:"column:column_order_ids;not null" json:"columnOrderIds"`
	OwnerIDs       IDs          `gorm:"column:owner_ids;not null" json:"ownerIds"`
	MemberIDs      IDs          `gorm:"column:member_ids;not null" json:"memberIds"`
	Destroyed      bool         `gorm:"not null;default:false;index" json:"_destroy"`
	CreatedAt      time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Board) TableName() string { return "boards" }

// HasMember reports whether userID is an owner or member of the board.
func (b Board) HasMember(userID snowflake.ID) bool {
	return ContainsID(b.OwnerIDs, userID) || ContainsID(b.MemberIDs, userID)
}

// Column holds an ordered list of card identities.
type Column struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"_id"`
	BoardID      snowflake.ID `gorm:"column:board_id;not null;index" json:"boardId"`
	Title        string       `gorm:"type:text;not null" json:"title"`
	CardOrderIDs IDs          `gorm:"column:card_order_ids;not null" json:"cardOrderIds"`
	Destroyed    bool         `gorm:"not null;default:false" json:"_destroy"`
	CreatedAt    time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Column) TableName() string { return "columns" }

// Card belongs to exactly one column. BoardID is copied from the column so a
// whole board can be read without a join.
type Card struct {
	ID          snowflake.ID                 `gorm:"primaryKey" json:"_id"`
	BoardID     snowflake.ID                 `gorm:"column:board_id;not null;index" json:"boardId"`
	ColumnID    snowflake.ID                 `gorm:"column:column_id;not null;index" json:"columnId"`
	Title       string                       `gorm:"type:text;not null" json:"title"`
	Description string                       `gorm:"type:text;not null;default:''" json:"description"`
	Cover       string                       `gorm:"type:text;not null;default:''" json:"cover"`
	MemberIDs   IDs                          `gorm:"column:member_ids;not null" json:"memberIds"`
	Comments    datatypes.JSONSlice[Comment] `gorm:"column:comments;not null" json:"comments"`
	Destroyed   bool                         `gorm:"not null;default:false" json:"_destroy"`
	CreatedAt   time.Time                    `gorm:"not null" json:"createdAt"`
	UpdatedAt   time.Time                    `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Card) TableName() string { return "cards" }

// Comment is embedded in Card.Comments, newest first.
type Comment struct {
	UserID          snowflake.ID `json:"userId"`
	UserEmail       string       `json:"userEmail"`
	UserDisplayName string       `json:"userDisplayName"`
	UserAvatar      string       `json:"userAvatar"`
	Content         string       `json:"content"`
	CommentedAt     time.Time    `json:"commentedAt"`
}

// ColumnDetail is a column with its cards attached.
type ColumnDetail struct {
	Column
	Cards []Card `json:"cards"`
}

// BoardDetail is the aggregated board view. Columns and cards are in storage
// order; clients sort them by ColumnOrderIDs and CardOrderIDs.
type BoardDetail struct {
	Board
	Columns []ColumnDetail `json:"columns"`
}

func ContainsID(ids []snowflake.ID, id snowflake.ID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// AppendID appends id unless it is already present.
func AppendID(ids []snowflake.ID, id snowflake.ID) ([]snowflake.ID, bool) {
	if ContainsID(ids, id) {
		return ids, false
	}
	out := make([]snowflake.ID, 0, len(ids)+1)
	out = append(out, ids...)
	return append(out, id), true
}

// RemoveID drops every occurrence of id.
func RemoveID(ids []snowflake.ID, id snowflake.ID) ([]snowflake.ID, bool) {
	out := make([]snowflake.ID, 0, len(ids))
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out, len(out) != len(ids)
}
