package repository

import (
	"context"
	"errors"
	"strings"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"gorm.io/gorm"
)

// BaseRepository defines the row operations shared by gorm-backed tables.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error
	Find(ctx context.Context, dest *[]T, order string, query any, args ...any) error
	Update(ctx context.Context, obj *T, columns []string, query any, args ...any) error
}

type baseRepository[T any] struct {
	db *gorm.DB
}

func NewBaseRepository[T any](db *gorm.DB) BaseRepository[T] {
	return &baseRepository[T]{db: db}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		if isDuplicate(err) {
			return appErr.Wrap(err, appErr.CodeAlreadyExists, "row already exists")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "create row failed")
	}
	return nil
}

func (r *baseRepository[T]) Find(ctx context.Context, dest *[]T, order string, query any, args ...any) error {
	if err := r.db.WithContext(ctx).Where(query, args...).Order(order).Find(dest).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "find rows failed")
	}
	return nil
}

// Update writes the named columns of obj to the rows matching query.
func (r *baseRepository[T]) Update(ctx context.Context, obj *T, columns []string, query any, args ...any) error {
	var t T
	res := r.db.WithContext(ctx).Model(&t).Where(query, args...).Select(columns).Updates(obj)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update row failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeNotFound, "row not found")
	}
	return nil
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
