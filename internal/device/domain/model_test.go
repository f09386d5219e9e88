package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateInitParams(t *testing.T) {
	cases := []struct {
		name   string
		tpin   string
		branch string
		serial string
		want   error
	}{
		{"valid", "1234567890", "001", "SN-1", nil},
		{"short tpin", "123456789", "001", "SN-1", ErrInvalidTaxpayerID},
		{"long tpin", "12345678901", "001", "SN-1", ErrInvalidTaxpayerID},
		{"short branch", "1234567890", "01", "SN-1", ErrInvalidBranchID},
		{"long branch", "1234567890", "0001", "SN-1", ErrInvalidBranchID},
		{"empty serial", "1234567890", "001", "", ErrInvalidDeviceSerial},
		{"max serial", "1234567890", "001", strings.Repeat("s", 100), nil},
		{"long serial", "1234567890", "001", strings.Repeat("s", 101), ErrInvalidDeviceSerial},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateInitParams(tc.tpin, tc.branch, tc.serial)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestRegistrationIsInitialized(t *testing.T) {
	now := time.Now()
	key := "abc"
	blank := "  "

	var missing *Registration
	assert.False(t, missing.IsInitialized())
	assert.Equal(t, StateUnregistered, missing.State())

	assert.False(t, (&Registration{APIKey: &key}).IsInitialized())
	assert.False(t, (&Registration{LastInitializedAt: &now}).IsInitialized())
	assert.False(t, (&Registration{APIKey: &blank, LastInitializedAt: &now}).IsInitialized())

	reg := &Registration{APIKey: &key, LastInitializedAt: &now}
	assert.True(t, reg.IsInitialized())
	assert.Equal(t, StateInitialized, reg.State())
	assert.Equal(t, "abc", reg.Key())
}

func TestMaskTPIN(t *testing.T) {
	assert.Equal(t, "123****890", MaskTPIN("1234567890"))
	assert.Equal(t, "***", MaskTPIN("123"))
}
