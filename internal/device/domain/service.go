package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type RegisterRequest struct {
	TPIN         string
	BranchID     string
	DeviceSerial string
	// Response is the decoded body of a successful initialization call.
	Response map[string]any
}

type Status struct {
	Status            State       `json:"status"`
	Message           string      `json:"message"`
	Initialized       bool        `json:"initialized"`
	TPIN              string      `json:"tpin,omitempty"`
	BranchID          string      `json:"branch_id,omitempty"`
	DeviceSerial      string      `json:"device_serial,omitempty"`
	Environment       Environment `json:"environment,omitempty"`
	LastInitializedAt *time.Time  `json:"last_initialized_at,omitempty"`
	LastSyncAt        *time.Time  `json:"last_sync_at,omitempty"`
}

type Service interface {
	Active(ctx context.Context) (*Registration, error)
	IsInitialized(ctx context.Context) (bool, error)
	Status(ctx context.Context) (Status, error)
	Register(ctx context.Context, req RegisterRequest) (*Registration, error)
	TouchSync(ctx context.Context, id snowflake.ID) error
}
