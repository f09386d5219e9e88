package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/smallbiznis/smartinvoice/internal/transactionlog/masking"
	"github.com/smallbiznis/smartinvoice/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
	defaultPageSize    = 50
	maxPageSize        = 250
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  logdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  logdomain.Repository
}

func NewService(p Params) logdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("transactionlog.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateLog(ctx context.Context, req logdomain.CreateRequest) (*logdomain.Entry, error) {
	if !req.Kind.Valid() {
		return nil, logdomain.ErrInvalidKind
	}
	if !req.Status.Valid() {
		return nil, logdomain.ErrInvalidStatus
	}

	request := masking.Sanitize(req.Request)
	if request == nil {
		request = map[string]any{}
	}

	entry := logdomain.Entry{
		ID:              s.genID.Generate(),
		Kind:            req.Kind,
		Reference:       normalize(req.Reference),
		RequestPayload:  datatypes.JSONMap(request),
		ResponsePayload: datatypes.JSONMap(masking.Sanitize(req.Response)),
		Status:          req.Status,
		ErrorMessage:    normalize(req.ErrorMessage),
		CreatedAt:       s.clock.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Error("failed to write transaction log",
			zap.String("kind", string(entry.Kind)),
			zap.String("reference", req.Reference),
			zap.Error(err),
		)
		return nil, err
	}
	return &entry, nil
}

func (s *Service) Statistics(ctx context.Context) (logdomain.Statistics, error) {
	counts, err := s.repo.Counts(ctx, s.db)
	if err != nil {
		return logdomain.Statistics{}, err
	}

	stats := logdomain.Statistics{
		TotalTransactions:      counts.Total,
		SuccessfulTransactions: counts.Success,
		FailedTransactions:     counts.Failed,
		SuccessRate:            SuccessRate(counts.Success, counts.Total),
	}

	latest, err := s.repo.Latest(ctx, s.db)
	if err != nil {
		return logdomain.Statistics{}, err
	}
	if latest != nil {
		at := latest.CreatedAt.UTC()
		stats.LastTransaction = &at
	}
	return stats, nil
}

// SuccessRate is the success percentage rounded to one decimal, 0 when there is no traffic.
func SuccessRate(success, total int64) float64 {
	if total <= 0 {
		return 0
	}
	rate := decimal.NewFromInt(success).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(1)
	return rate.InexactFloat64()
}

func (s *Service) Retention(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays <= 0 {
		return 0, logdomain.ErrInvalidRetention
	}

	cutoff := s.clock.Now().UTC().AddDate(0, 0, -maxAgeDays)
	deleted, err := s.repo.DeleteBefore(ctx, s.db, cutoff)
	if err != nil {
		return 0, err
	}

	s.log.Info("transaction logs pruned",
		zap.Int("max_age_days", maxAgeDays),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)
	return deleted, nil
}

func (s *Service) Recent(ctx context.Context, limit int) ([]logdomain.Entry, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	items, err := s.repo.List(ctx, s.db, logdomain.ListFilter{Limit: limit})
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return flatten(items), nil
}

func (s *Service) List(ctx context.Context, req logdomain.ListRequest) (logdomain.ListResponse, error) {
	if req.Kind != "" && !req.Kind.Valid() {
		return logdomain.ListResponse{}, logdomain.ErrInvalidKind
	}
	if req.Status != "" && !req.Status.Valid() {
		return logdomain.ListResponse{}, logdomain.ErrInvalidStatus
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return logdomain.ListResponse{}, logdomain.ErrInvalidTimeRange
	}

	var cursor *logdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return logdomain.ListResponse{}, logdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return logdomain.ListResponse{}, logdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return logdomain.ListResponse{}, logdomain.ErrInvalidPageToken
		}
		cursor = &logdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	items, err := s.repo.List(ctx, s.db, logdomain.ListFilter{
		Kind:    req.Kind,
		Status:  req.Status,
		StartAt: req.StartAt,
		EndAt:   req.EndAt,
		Cursor:  cursor,
		Limit:   pageSize,
	})
	if err != nil {
		return logdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *logdomain.Entry) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	resp := logdomain.ListResponse{Logs: flatten(items)}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) CountFailuresSince(ctx context.Context, since time.Time) (int64, error) {
	return s.repo.CountByStatusSince(ctx, s.db, logdomain.StatusFailed, since)
}

func (s *Service) Between(ctx context.Context, start, end time.Time) ([]logdomain.Entry, error) {
	if start.After(end) {
		return nil, logdomain.ErrInvalidTimeRange
	}
	items, err := s.repo.List(ctx, s.db, logdomain.ListFilter{StartAt: &start, EndAt: &end})
	if err != nil {
		return nil, err
	}
	out := flatten(items)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func flatten(items []*logdomain.Entry) []logdomain.Entry {
	out := make([]logdomain.Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, *item)
	}
	return out
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
