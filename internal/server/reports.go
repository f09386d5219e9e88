package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	reportdomain "github.com/smallbiznis/smartinvoice/internal/report/domain"
)

const monthOnlyLayout = "2006-01"

// GetReport serves an X, Z, daily or monthly report for ?date=YYYY-MM-DD
// (YYYY-MM also works for monthly). Without a date it covers today.
func (s *Server) GetReport(c *gin.Context) {
	if s.reportSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	kind, err := reportdomain.ParseType(c.Param("type"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	date, err := parseReportDate(c.Query("date"), kind)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := s.reportSvc.Generate(c.Request.Context(), reportdomain.Request{
		Type:        kind,
		Date:        date,
		FinalizedBy: c.Query("finalized_by"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func parseReportDate(value string, kind reportdomain.Type) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return parsed, nil
	}
	if kind == reportdomain.TypeMonthly {
		if parsed, err := time.Parse(monthOnlyLayout, trimmed); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, reportdomain.ErrInvalidDate
}
