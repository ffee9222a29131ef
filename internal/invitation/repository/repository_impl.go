package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/invitation/domain"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	store repository.Repository[domain.Invitation]
}

func Provide(db *gorm.DB) domain.Repository {
	return &repo{store: repository.ProvideStore[domain.Invitation](db)}
}

func (r *repo) WithTx(tx *gorm.DB) domain.Repository {
	return &repo{store: r.store.WithTrx(tx)}
}

func (r *repo) Insert(ctx context.Context, invitation *domain.Invitation) error {
	return r.store.Insert(ctx, invitation)
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	return r.store.FindOne(ctx, nil, option.Equals("id", id), option.Alive())
}

func (r *repo) LockByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	return r.store.FindOne(ctx, nil, option.Equals("id", id), option.Alive(), option.ForUpdate())
}

// ListByInvitee returns the newest invitations first.
func (r *repo) ListByInvitee(ctx context.Context, inviteeID snowflake.ID) ([]*domain.Invitation, error) {
	return r.store.FindMany(ctx, nil, option.Equals("invitee_id", inviteeID),
		option.Alive(),
		option.OrderBy("created_at DESC, id DESC"),
	)
}

func (r *repo) ListAccepted(ctx context.Context, boardID snowflake.ID) ([]*domain.Invitation, error) {
	return r.store.FindMany(ctx, nil,
		option.Alive(),
		option.Where("board_id = ? AND status = ?", boardID, domain.StatusAccepted),
		option.OrderBy("id ASC"),
	)
}

func (r *repo) UpdateStatus(ctx context.Context, id snowflake.ID, status domain.Status, at time.Time) (*domain.Invitation, error) {
	return r.store.UpdateOne(ctx, id, map[string]any{
		"status":     status,
		"updated_at": at,
	})
}
