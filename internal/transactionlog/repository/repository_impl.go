package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO transaction_logs (
			id, transaction_kind, reference, request_payload, response_payload,
			status, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Kind,
		entry.Reference,
		entry.RequestPayload,
		entry.ResponsePayload,
		entry.Status,
		entry.ErrorMessage,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	stmt := db.WithContext(ctx).Model(&domain.Entry{})

	if filter.Kind != "" {
		stmt = stmt.Where("transaction_kind = ?", filter.Kind)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.StartAt != nil {
		stmt = stmt.Where("created_at >= ?", filter.StartAt.UTC())
	}
	if filter.EndAt != nil {
		stmt = stmt.Where("created_at <= ?", filter.EndAt.UTC())
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) Counts(ctx context.Context, db *gorm.DB) (domain.Counts, error) {
	var row struct {
		Total   int64
		Success int64
		Failed  int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS success,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS failed
		FROM transaction_logs`,
		domain.StatusSuccess,
		domain.StatusFailed,
	).Scan(&row).Error
	if err != nil {
		return domain.Counts{}, err
	}
	return domain.Counts{Total: row.Total, Success: row.Success, Failed: row.Failed}, nil
}

func (r *repo) Latest(ctx context.Context, db *gorm.DB) (*domain.Entry, error) {
	var entry domain.Entry
	err := db.WithContext(ctx).
		Order("created_at desc, id desc").
		Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repo) CountByStatusSince(ctx context.Context, db *gorm.DB, status domain.Status, since time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Entry{}).
		Where("status = ? AND created_at >= ?", status, since.UTC()).
		Count(&count).Error
	return count, err
}

func (r *repo) DeleteBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`DELETE FROM transaction_logs WHERE created_at < ?`,
		cutoff.UTC(),
	)
	return result.RowsAffected, result.Error
}
