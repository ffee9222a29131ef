package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/pkg/db"
	"github.com/smallbiznis/taskboard/pkg/db/option"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type repo struct {
	users repository.Repository[domain.User]
}

func New(conn *gorm.DB) domain.Repository {
	return &repo{users: repository.ProvideStore[domain.User](conn)}
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	if err := r.users.Insert(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrUserExists
		}
		return err
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return found(r.users.FindOne(ctx, nil, option.Equals("id", id), option.Alive()))
}

func (r *repo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return found(r.users.FindOne(ctx, nil, option.Equals("email", email), option.Alive()))
}

func (r *repo) FindByIDs(ctx context.Context, ids []snowflake.ID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	rows, err := r.users.FindMany(ctx, nil, option.Alive(), option.Where("id IN ?", ids))
	if err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *row)
	}
	return users, nil
}

func (r *repo) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) (*domain.User, error) {
	return found(r.users.UpdateOne(ctx, id, fields))
}

func found(user *domain.User, err error) (*domain.User, error) {
	if err != nil {
		if db.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}
