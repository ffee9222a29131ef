package repository

import (
	"context"

	"github.com/smallbiznis/taskboard/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is the generic single-table gateway. It gives single-row
// atomicity only; multi-row protocols belong to the services.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Insert(ctx context.Context, resource *T) error
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	FindMany(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	UpdateOne(ctx context.Context, id any, patch map[string]any) (*T, error)
	DeleteOne(ctx context.Context, id any) (int64, error)
	DeleteMany(ctx context.Context, opts ...option.QueryOption) (int64, error)
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
