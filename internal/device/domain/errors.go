package domain

import "errors"

var (
	ErrInvalidTaxpayerID   = errors.New("invalid_tpin")
	ErrInvalidBranchID     = errors.New("invalid_branch_id")
	ErrInvalidDeviceSerial = errors.New("invalid_device_serial")
	ErrNotFound            = errors.New("not_found")
)
