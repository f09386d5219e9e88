package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	TPINLength          = 10
	BranchIDLength      = 3
	MaxDeviceSerialSize = 100
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

// State is the lifecycle of a fiscal device. Initializing only exists while an
// initialization call is in flight and is never persisted.
type State string

const (
	StateUnregistered State = "unregistered"
	StateInitializing State = "initializing"
	StateInitialized  State = "initialized"
)

// Registration is one initialization record. The most recently created row is
// the active one; re-initializing inserts a new row instead of updating.
type Registration struct {
	ID                snowflake.ID      `gorm:"primaryKey;autoIncrement:false" json:"id"`
	TPIN              string            `gorm:"column:tpin;type:varchar(10);not null" json:"tpin"`
	BranchID          string            `gorm:"column:branch_id;type:varchar(3);not null" json:"branch_id"`
	DeviceSerial      string            `gorm:"column:device_serial;type:varchar(100);not null" json:"device_serial"`
	APIKey            *string           `gorm:"column:api_key;type:text" json:"-"`
	Environment       Environment       `gorm:"type:varchar(20);not null" json:"environment"`
	LastInitializedAt *time.Time        `gorm:"column:last_initialized_at" json:"last_initialized_at,omitempty"`
	LastSyncAt        *time.Time        `gorm:"column:last_sync_at" json:"last_sync_at,omitempty"`
	ExtraConfig       datatypes.JSONMap `gorm:"column:additional_config;type:json" json:"additional_config,omitempty"`
	CreatedAt         time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (Registration) TableName() string { return "device_registrations" }

// IsInitialized gates every submission: an API key must be present and the
// initialization time recorded.
func (r *Registration) IsInitialized() bool {
	if r == nil || r.APIKey == nil {
		return false
	}
	return strings.TrimSpace(*r.APIKey) != "" && r.LastInitializedAt != nil
}

func (r *Registration) State() State {
	if r.IsInitialized() {
		return StateInitialized
	}
	return StateUnregistered
}

func (r *Registration) Key() string {
	if r == nil || r.APIKey == nil {
		return ""
	}
	return *r.APIKey
}

// ValidateInitParams checks the identifiers before any network call is made.
func ValidateInitParams(tpin, branchID, deviceSerial string) error {
	if utf8.RuneCountInString(tpin) != TPINLength {
		return ErrInvalidTaxpayerID
	}
	if utf8.RuneCountInString(branchID) != BranchIDLength {
		return ErrInvalidBranchID
	}
	if deviceSerial == "" || utf8.RuneCountInString(deviceSerial) > MaxDeviceSerialSize {
		return ErrInvalidDeviceSerial
	}
	return nil
}

// MaskTPIN keeps the first and last three characters for operator output.
func MaskTPIN(tpin string) string {
	runes := []rune(tpin)
	if len(runes) <= 6 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:3]) + "****" + string(runes[len(runes)-3:])
}
