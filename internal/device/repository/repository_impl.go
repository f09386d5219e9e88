package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smartinvoice/internal/device/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, reg *domain.Registration) error {
	if reg == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO device_registrations (
			id, tpin, branch_id, device_serial, api_key, environment,
			last_initialized_at, last_sync_at, additional_config, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.ID,
		reg.TPIN,
		reg.BranchID,
		reg.DeviceSerial,
		reg.APIKey,
		reg.Environment,
		reg.LastInitializedAt,
		reg.LastSyncAt,
		reg.ExtraConfig,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Error
}

// GetActive resolves the active registration by recency. The id breaks ties
// between rows created within the same timestamp.
func (r *repo) GetActive(ctx context.Context, db *gorm.DB) (*domain.Registration, error) {
	var reg domain.Registration
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Take(&reg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *repo) UpdateLastSync(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE device_registrations SET last_sync_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(),
		at.UTC(),
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
