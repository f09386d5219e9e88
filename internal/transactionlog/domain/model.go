package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Kind classifies the exchange an entry records.
type Kind string

const (
	KindInitialization Kind = "initialization"
	KindSales          Kind = "sales"
	KindPurchase       Kind = "purchase"
	KindStock          Kind = "stock"
	KindGeneral        Kind = "general"
)

func (k Kind) Valid() bool {
	switch k {
	case KindInitialization, KindSales, KindPurchase, KindStock, KindGeneral:
		return true
	}
	return false
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

func (s Status) Valid() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Entry is one request/response exchange with the authority.
// Entries are append-only: never updated, only deleted in bulk by retention.
type Entry struct {
	ID              snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Kind            Kind              `gorm:"column:transaction_kind;type:text;not null;index" json:"transaction_type"`
	Reference       *string           `gorm:"type:text;index" json:"reference,omitempty"`
	RequestPayload  datatypes.JSONMap `gorm:"column:request_payload;type:json" json:"request_payload"`
	ResponsePayload datatypes.JSONMap `gorm:"column:response_payload;type:json" json:"response_payload,omitempty"`
	Status          Status            `gorm:"type:text;not null;index" json:"status"`
	ErrorMessage    *string           `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Entry) TableName() string { return "transaction_logs" }

func (e Entry) IsSuccess() bool { return e.Status == StatusSuccess }

type ListFilter struct {
	Kind    Kind
	Status  Status
	StartAt *time.Time
	EndAt   *time.Time
	Cursor  *Cursor
	Limit   int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

// Counts is the raw aggregate the statistics are derived from.
type Counts struct {
	Total   int64
	Success int64
	Failed  int64
}
