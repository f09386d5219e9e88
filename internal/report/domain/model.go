package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidType         = errors.New("invalid_report_type")
	ErrInvalidDate         = errors.New("invalid_report_date")
	ErrDeviceNotRegistered = errors.New("device_not_registered")
)

// Type selects the period and finalization of a report. A Z report closes
// the day; an X report is an interim read of the same figures.
type Type string

const (
	TypeX       Type = "x"
	TypeZ       Type = "z"
	TypeDaily   Type = "daily"
	TypeMonthly Type = "monthly"
)

func ParseType(value string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(value)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t Type) Valid() bool {
	switch t {
	case TypeX, TypeZ, TypeDaily, TypeMonthly:
		return true
	}
	return false
}

const (
	StatusInterim   = "Interim (Not Finalized)"
	StatusFinalized = "Finalized"
	StatusMonthly   = "Monthly Summary"

	FinalizedBySystem = "system"
)

type DeviceInfo struct {
	TPIN              string     `json:"tpin"`
	BranchID          string     `json:"branch_id"`
	DeviceSerial      string     `json:"device_serial"`
	Environment       string     `json:"environment"`
	LastInitializedAt *time.Time `json:"last_initialized_at"`
}

// Totals sums the accepted submissions of one group.
type Totals struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
	Tax    decimal.Decimal `json:"tax"`
}

type TaxLine struct {
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type Transaction struct {
	ID          string          `json:"id"`
	Reference   string          `json:"reference"`
	Kind        string          `json:"transaction_type"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalTax    decimal.Decimal `json:"total_tax"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Report struct {
	Type        Type       `json:"type"`
	Date        string     `json:"date"`
	StartDate   string     `json:"start_date,omitempty"`
	EndDate     string     `json:"end_date,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`
	Status      string     `json:"status"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`
	FinalizedBy string     `json:"finalized_by,omitempty"`
	Device      DeviceInfo `json:"device_info"`

	TransactionSummary map[string]Totals  `json:"transaction_summary"`
	TaxSummary         map[string]TaxLine `json:"tax_summary"`
	Transactions       []Transaction      `json:"transactions,omitempty"`
	DailyTotals        map[string]Totals  `json:"daily_totals,omitempty"`
}

type Request struct {
	Type Type
	// Date picks the day, or the month for monthly reports. Zero means today.
	Date time.Time
	// FinalizedBy names who closed a Z report; empty means the system.
	FinalizedBy string
}

type Service interface {
	Generate(ctx context.Context, req Request) (*Report, error)
}
