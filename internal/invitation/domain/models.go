package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	boarddomain "github.com/smallbiznis/taskboard/internal/board/domain"
)

type InvitationType string

const TypeBoardInvitation InvitationType = "BOARD_INVITATION"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

type BoardInvitation struct {
	BoardID snowflake.ID `gorm:"column:board_id;not null;index" json:"boardId"`
	Status  Status       `gorm:"column:status;type:text;not null" json:"status"`
}

type Invitation struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"_id"`
	InviterID       snowflake.ID    `gorm:"column:inviter_id;not null" json:"inviterId"`
	InviteeID       snowflake.ID    `gorm:"column:invitee_id;not null;index" json:"inviteeId"`
	Type            InvitationType  `gorm:"type:text;not null" json:"type"`
	BoardInvitation BoardInvitation `gorm:"embedded" json:"boardInvitation"`
	Destroyed       bool            `gorm:"not null;default:false" json:"_destroy"`
	CreatedAt       time.Time       `gorm:"not null" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

// InvitationView is an invitation with its board and users attached. A
// reference that cannot be resolved is rendered as an empty object.
type InvitationView struct {
	Invitation
	Board   *boarddomain.Board
	Inviter *authdomain.PublicUser
	Invitee *authdomain.PublicUser
}

func (v InvitationView) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Invitation
		Board   any `json:"board"`
		Inviter any `json:"inviter"`
		Invitee any `json:"invitee"`
	}{
		Invitation: v.Invitation,
		Board:      orEmpty(v.Board),
		Inviter:    orEmpty(v.Inviter),
		Invitee:    orEmpty(v.Invitee),
	})
}

func orEmpty[T any](v *T) any {
	if v == nil {
		return struct{}{}
	}
	return v
}
