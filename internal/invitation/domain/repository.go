package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, invitation *Invitation) error
	FindByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	LockByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	ListByInvitee(ctx context.Context, inviteeID snowflake.ID) ([]*Invitation, error)
	ListAccepted(ctx context.Context, boardID snowflake.ID) ([]*Invitation, error)
	UpdateStatus(ctx context.Context, id snowflake.ID, status Status, at time.Time) (*Invitation, error)
}
