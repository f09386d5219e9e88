package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smartinvoice/internal/clock"
	"github.com/smallbiznis/smartinvoice/internal/config"
	devicedomain "github.com/smallbiznis/smartinvoice/internal/device/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Repo   devicedomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config
	repo  devicedomain.Repository
}

func NewService(p Params) devicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("device.service"),
		genID: p.GenID,
		clock: p.Clock,
		cfg:   p.Config,
		repo:  p.Repo,
	}
}

func (s *Service) Active(ctx context.Context) (*devicedomain.Registration, error) {
	return s.repo.GetActive(ctx, s.db)
}

func (s *Service) IsInitialized(ctx context.Context) (bool, error) {
	reg, err := s.repo.GetActive(ctx, s.db)
	if err != nil {
		return false, err
	}
	return reg.IsInitialized(), nil
}

func (s *Service) Status(ctx context.Context) (devicedomain.Status, error) {
	reg, err := s.repo.GetActive(ctx, s.db)
	if err != nil {
		return devicedomain.Status{}, err
	}

	if !reg.IsInitialized() {
		status := devicedomain.Status{
			Status:      devicedomain.StateUnregistered,
			Message:     "Device requires initialization",
			Environment: devicedomain.Environment(s.cfg.DeviceEnvironment()),
		}
		if reg != nil {
			status.TPIN = devicedomain.MaskTPIN(reg.TPIN)
			status.BranchID = reg.BranchID
			status.DeviceSerial = reg.DeviceSerial
		}
		return status, nil
	}

	return devicedomain.Status{
		Status:            devicedomain.StateInitialized,
		Message:           "Device successfully initialized",
		Initialized:       true,
		TPIN:              devicedomain.MaskTPIN(reg.TPIN),
		BranchID:          reg.BranchID,
		DeviceSerial:      reg.DeviceSerial,
		Environment:       reg.Environment,
		LastInitializedAt: reg.LastInitializedAt,
		LastSyncAt:        reg.LastSyncAt,
	}, nil
}

// Register stores a new active registration from a successful initialization response.
func (s *Service) Register(ctx context.Context, req devicedomain.RegisterRequest) (*devicedomain.Registration, error) {
	if err := devicedomain.ValidateInitParams(req.TPIN, req.BranchID, req.DeviceSerial); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	reg := devicedomain.Registration{
		ID:                s.genID.Generate(),
		TPIN:              req.TPIN,
		BranchID:          req.BranchID,
		DeviceSerial:      req.DeviceSerial,
		APIKey:            stringValue(req.Response["api_key"]),
		Environment:       devicedomain.Environment(s.cfg.DeviceEnvironment()),
		LastInitializedAt: &now,
		ExtraConfig: datatypes.JSONMap{
			"device_id":    req.Response["device_id"],
			"other_config": req.Response["additional_config"],
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, s.db, &reg); err != nil {
		return nil, err
	}

	if reg.APIKey == nil {
		s.log.Warn("initialization response carried no api key, device stays unregistered",
			zap.String("device_serial", reg.DeviceSerial),
		)
	} else {
		s.log.Info("device registered",
			zap.String("registration_id", reg.ID.String()),
			zap.String("branch_id", reg.BranchID),
			zap.String("environment", string(reg.Environment)),
		)
	}
	return &reg, nil
}

func (s *Service) TouchSync(ctx context.Context, id snowflake.ID) error {
	return s.repo.UpdateLastSync(ctx, s.db, id, s.clock.Now())
}

func stringValue(v any) *string {
	if v == nil {
		return nil
	}
	str := strings.TrimSpace(fmt.Sprint(v))
	if str == "" {
		return nil
	}
	return &str
}
