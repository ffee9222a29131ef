package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/taskboard/pkg/db/option"
	"gorm.io/gorm"
)

type store[T any] struct {
	db *gorm.DB
}

func ProvideStore[T any](db *gorm.DB) Repository[T] {
	return &store[T]{db: db}
}

func (r *store[T]) WithTrx(tx *gorm.DB) Repository[T] {
	return &store[T]{db: tx}
}

func (r *store[T]) Insert(ctx context.Context, resource *T) error {
	return r.db.WithContext(ctx).Create(resource).Error
}

// FindOne returns nil without error when nothing matches.
func (r *store[T]) FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error) {
	var result T
	err := r.buildQuery(ctx, query, opts...).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}

func (r *store[T]) FindMany(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error) {
	var result []*T
	if err := r.buildQuery(ctx, query, opts...).Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateOne applies patch to the row with the given id and returns the
// updated row, or nil when the row does not exist.
func (r *store[T]) UpdateOne(ctx context.Context, id any, patch map[string]any) (*T, error) {
	tx := r.db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(patch)
	if tx.Error != nil {
		return nil, tx.Error
	}

	var updated T
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&updated).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &updated, nil
}

func (r *store[T]) DeleteOne(ctx context.Context, id any) (int64, error) {
	tx := r.db.WithContext(ctx).Where("id = ?", id).Delete(new(T))
	return tx.RowsAffected, tx.Error
}

func (r *store[T]) DeleteMany(ctx context.Context, opts ...option.QueryOption) (int64, error) {
	if len(opts) == 0 {
		return 0, errors.New("delete many requires a predicate")
	}
	stmt := r.db.WithContext(ctx)
	for _, opt := range opts {
		stmt = opt.Apply(stmt)
	}
	tx := stmt.Delete(new(T))
	return tx.RowsAffected, tx.Error
}

func (r *store[T]) Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error) {
	var count int64
	err := r.buildQuery(ctx, query, opts...).Count(&count).Error
	return count, err
}

func (r *store[T]) buildQuery(ctx context.Context, filter *T, opts ...option.QueryOption) *gorm.DB {
	db := r.db.WithContext(ctx).Model(new(T))
	if filter != nil {
		db = db.Where(filter)
	}
	for _, opt := range opts {
		db = opt.Apply(db)
	}
	return db
}
