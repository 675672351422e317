package db

import (
	"context"

	"github.com/juju/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore keeps records in a relational table through gorm. The table
// schema is owned by the migrations, not by gorm.
type GormStore[T any] struct {
	db *gorm.DB
}

// NewGormStore creates a store over db. db must be opened with
// TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func NewGormStore[T any](db *gorm.DB) *GormStore[T] {
	return &GormStore[T]{db: db}
}

func (s *GormStore[T]) FindBy(ctx context.Context, column string, value any) (*T, error) {
	var rec T
	err := s.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &rec, nil
}

func (s *GormStore[T]) List(ctx context.Context, column, pattern string) ([]T, error) {
	recs := []T{}
	q := s.db.WithContext(ctx)
	if pattern != "" {
		q = q.Where(clause.Like{Column: clause.Column{Name: column}, Value: pattern})
	}
	if err := q.Order("id").Find(&recs).Error; err != nil {
		return nil, errors.Trace(err)
	}
	return recs, nil
}

func (s *GormStore[T]) Get(ctx context.Context, id string) (*T, error) {
	n, ok := parseID(id)
	if !ok {
		return nil, nil
	}
	var rec T
	err := s.db.WithContext(ctx).Where("id = ?", n).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &rec, nil
}

func (s *GormStore[T]) Create(ctx context.Context, rec *T) error {
	err := s.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.NewAlreadyExists(err, "duplicate record")
	}
	return errors.Trace(err)
}

func (s *GormStore[T]) Update(ctx context.Context, id string, values map[string]any) error {
	n, ok := parseID(id)
	if !ok {
		return nil
	}
	err := s.db.WithContext(ctx).Model(new(T)).Where("id = ?", n).Updates(values).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.NewAlreadyExists(err, "duplicate record")
	}
	return errors.Trace(err)
}

func (s *GormStore[T]) Delete(ctx context.Context, id string) (int64, error) {
	n, ok := parseID(id)
	if !ok {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Where("id = ?", n).Delete(new(T))
	if res.Error != nil {
		return 0, errors.Trace(res.Error)
	}
	return res.RowsAffected, nil
}

func (s *GormStore[T]) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(sqlDB.PingContext(ctx))
}
