package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"github.com/smallbiznis/smartinvoice/pkg/db/pagination"
)

type logView struct {
	ID              string           `json:"id"`
	TransactionType logdomain.Kind   `json:"transaction_type"`
	Reference       *string          `json:"reference"`
	Status          logdomain.Status `json:"status"`
	ErrorMessage    *string          `json:"error_message"`
	CreatedAt       time.Time        `json:"created_at"`
}

func newLogView(e logdomain.Entry) logView {
	return logView{
		ID:              e.ID.String(),
		TransactionType: e.Kind,
		Reference:       e.Reference,
		Status:          e.Status,
		ErrorMessage:    e.ErrorMessage,
		CreatedAt:       e.CreatedAt,
	}
}

func newLogViews(entries []logdomain.Entry) []logView {
	out := make([]logView, 0, len(entries))
	for _, e := range entries {
		out = append(out, newLogView(e))
	}
	return out
}

// ListLogs serves the most recent entries, or a filtered cursor page when any
// paging or filter parameter is present.
func (s *Server) ListLogs(c *gin.Context) {
	var query struct {
		Limit     string `form:"limit"`
		PageToken string `form:"page_token"`
		PageSize  string `form:"page_size"`
		Type      string `form:"transaction_type"`
		Status    string `form:"status"`
		StartAt   string `form:"start_at"`
		EndAt     string `form:"end_at"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	paged := strings.TrimSpace(query.PageToken) != "" ||
		strings.TrimSpace(query.PageSize) != "" ||
		strings.TrimSpace(query.Type) != "" ||
		strings.TrimSpace(query.Status) != "" ||
		strings.TrimSpace(query.StartAt) != "" ||
		strings.TrimSpace(query.EndAt) != ""

	if !paged {
		limit, err := parseOptionalInt(query.Limit)
		if err != nil {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
			return
		}
		n := 0
		if limit != nil {
			n = *limit
		}
		entries, err := s.ledgerSvc.Recent(ctx, n)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": newLogViews(entries)})
		return
	}

	pageSize, err := parseOptionalInt(query.PageSize)
	if err != nil {
		AbortWithError(c, newValidationError("page_size", "invalid_page_size", "invalid page_size"))
		return
	}
	startAt, err := parseOptionalTime(query.StartAt, false)
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(query.EndAt, true)
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	req := logdomain.ListRequest{
		Pagination: pagination.Pagination{PageToken: strings.TrimSpace(query.PageToken)},
		Kind:       logdomain.Kind(strings.ToLower(strings.TrimSpace(query.Type))),
		Status:     logdomain.Status(strings.ToLower(strings.TrimSpace(query.Status))),
		StartAt:    startAt,
		EndAt:      endAt,
	}
	if pageSize != nil {
		req.PageSize = *pageSize
	}

	resp, err := s.ledgerSvc.List(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"logs":            newLogViews(resp.Logs),
		"next_page_token": resp.NextPageToken,
		"has_more":        resp.HasMore,
	})
}

func (s *Server) GetStatistics(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := s.ledgerSvc.Statistics(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	initialized, err := s.deviceSvc.IsInitialized(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stats":       stats,
		"initialized": initialized,
	})
}
