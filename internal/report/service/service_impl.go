package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/smartinvoice/internal/catalog"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	"github.com/smallbiznis/smartinvoice/internal/report/domain"
	logdomain "github.com/smallbiznis/smartinvoice/internal/transactionlog/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

var (
	totalAmountKeys = []string{"totalAmount", "total_amount"}
	totalTaxKeys    = []string{"totalTax", "total_tax"}
	taxSummaryKeys  = []string{"taxSummary", "tax_summary"}
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Catalog *catalog.Holder
	Device  devicedomain.Service
	Ledger  logdomain.Service
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	catalog *catalog.Holder
	device  devicedomain.Service
	ledger  logdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("report.service"),
		clock:   p.Clock,
		catalog: p.Catalog,
		device:  p.Device,
		ledger:  p.Ledger,
	}
}

// Generate builds a report from the ledger. Only accepted submissions count
// towards the totals; the transaction list shows every attempt.
func (s *Service) Generate(ctx context.Context, req domain.Request) (*domain.Report, error) {
	if !req.Type.Valid() {
		return nil, domain.ErrInvalidType
	}

	reg, err := s.device.Active(ctx)
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, domain.ErrDeviceNotRegistered
	}

	now := s.clock.Now()
	date := req.Date
	if date.IsZero() {
		date = now
	}

	var report *domain.Report
	switch req.Type {
	case domain.TypeMonthly:
		report, err = s.monthly(ctx, date)
	default:
		report, err = s.daily(ctx, date)
	}
	if err != nil {
		return nil, err
	}

	report.Type = req.Type
	report.GeneratedAt = now.UTC()
	report.Device = deviceInfo(reg)
	if req.Type == domain.TypeZ || req.Type == domain.TypeDaily {
		finalizedAt := now.UTC()
		report.Status = domain.StatusFinalized
		report.FinalizedAt = &finalizedAt
		report.FinalizedBy = strings.TrimSpace(req.FinalizedBy)
		if report.FinalizedBy == "" {
			report.FinalizedBy = domain.FinalizedBySystem
		}
	}

	s.log.Info("report generated",
		zap.String("type", string(req.Type)),
		zap.String("date", report.Date),
		zap.Int("transactions", countOf(report.TransactionSummary)),
	)
	return report, nil
}

func (s *Service) daily(ctx context.Context, date time.Time) (*domain.Report, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)

	entries, err := s.ledger.Between(ctx, start, end)
	if err != nil {
		return nil, err
	}

	report := &domain.Report{
		Date:               start.Format(dayLayout),
		Status:             domain.StatusInterim,
		TransactionSummary: summarizeKinds(entries),
		TaxSummary:         s.summarizeTax(entries),
		Transactions:       make([]domain.Transaction, 0, len(entries)),
	}
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		report.Transactions = append(report.Transactions, domain.Transaction{
			ID:          entry.ID.String(),
			Reference:   stringValue(entry.Reference),
			Kind:        string(entry.Kind),
			Status:      string(entry.Status),
			TotalAmount: payloadDecimal(entry.RequestPayload, totalAmountKeys),
			TotalTax:    payloadDecimal(entry.RequestPayload, totalTaxKeys),
			CreatedAt:   entry.CreatedAt.UTC(),
		})
	}
	return report, nil
}

func (s *Service) monthly(ctx context.Context, date time.Time) (*domain.Report, error) {
	start := time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	entries, err := s.ledger.Between(ctx, start, end)
	if err != nil {
		return nil, err
	}

	days := map[string][]logdomain.Entry{}
	for _, entry := range entries {
		day := entry.CreatedAt.In(date.Location()).Format(dayLayout)
		days[day] = append(days[day], entry)
	}
	dailyTotals := make(map[string]domain.Totals, len(days))
	for day, dayEntries := range days {
		dailyTotals[day] = sum(dayEntries)
	}

	return &domain.Report{
		Date:               start.Format(monthLayout),
		StartDate:          start.Format(dayLayout),
		EndDate:            end.Format(dayLayout),
		Status:             domain.StatusMonthly,
		TransactionSummary: summarizeKinds(entries),
		TaxSummary:         s.summarizeTax(entries),
		DailyTotals:        dailyTotals,
	}, nil
}

func summarizeKinds(entries []logdomain.Entry) map[string]domain.Totals {
	byKind := map[string][]logdomain.Entry{}
	for _, entry := range entries {
		byKind[string(entry.Kind)] = append(byKind[string(entry.Kind)], entry)
	}
	out := make(map[string]domain.Totals, len(byKind))
	for kind, group := range byKind {
		totals := sum(group)
		if totals.Count == 0 {
			continue
		}
		out[kind] = totals
	}
	return out
}

func sum(entries []logdomain.Entry) domain.Totals {
	totals := domain.Totals{Amount: decimal.Zero, Tax: decimal.Zero}
	for _, entry := range entries {
		if !entry.IsSuccess() {
			continue
		}
		totals.Count++
		totals.Amount = totals.Amount.Add(payloadDecimal(entry.RequestPayload, totalAmountKeys))
		totals.Tax = totals.Tax.Add(payloadDecimal(entry.RequestPayload, totalTaxKeys))
	}
	return totals
}

// summarizeTax totals the per-category tax of accepted submissions over the
// configured categories. Categories with nothing collected are left out.
func (s *Service) summarizeTax(entries []logdomain.Entry) map[string]domain.TaxLine {
	cat := s.catalog.Get()
	lines := make(map[string]domain.TaxLine, len(cat.TaxCategories))
	for code, category := range cat.TaxCategories {
		lines[code] = domain.TaxLine{Name: category.Name, Rate: category.DefaultRate, Amount: decimal.Zero}
	}

	for _, entry := range entries {
		if !entry.IsSuccess() {
			continue
		}
		summary, ok := lookup(entry.RequestPayload, taxSummaryKeys).(map[string]any)
		if !ok {
			continue
		}
		for code, raw := range summary {
			line, known := lines[strings.ToUpper(code)]
			if !known {
				continue
			}
			detail, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			line.Amount = line.Amount.Add(payloadDecimal(detail, []string{"tax_amount", "taxAmount"}))
			lines[strings.ToUpper(code)] = line
		}
	}

	for code, line := range lines {
		if !line.Amount.IsPositive() {
			delete(lines, code)
		}
	}
	return lines
}

func deviceInfo(reg *devicedomain.Registration) domain.DeviceInfo {
	info := domain.DeviceInfo{
		TPIN:         reg.TPIN,
		BranchID:     reg.BranchID,
		DeviceSerial: reg.DeviceSerial,
		Environment:  string(reg.Environment),
	}
	if reg.LastInitializedAt != nil {
		at := reg.LastInitializedAt.UTC()
		info.LastInitializedAt = &at
	}
	return info
}

func lookup(payload map[string]any, keys []string) any {
	for _, key := range keys {
		if value, ok := payload[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

// payloadDecimal reads an amount that may have come back from the database
// as a float or still be a json.Number or string. Anything else counts as 0.
func payloadDecimal(payload map[string]any, keys []string) decimal.Decimal {
	switch v := lookup(payload, keys).(type) {
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(strings.TrimSpace(v)); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

func countOf(summary map[string]domain.Totals) int {
	var n int64
	for _, totals := range summary {
		n += totals.Count
	}
	return int(n)
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
