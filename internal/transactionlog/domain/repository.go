package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Entry) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Entry, error)
	Counts(ctx context.Context, db *gorm.DB) (Counts, error)
	Latest(ctx context.Context, db *gorm.DB) (*Entry, error)
	CountByStatusSince(ctx context.Context, db *gorm.DB, status Status, since time.Time) (int64, error)
	DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)
}
