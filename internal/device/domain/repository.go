package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, reg *Registration) error
	GetActive(ctx context.Context, db *gorm.DB) (*Registration, error)
	UpdateLastSync(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
