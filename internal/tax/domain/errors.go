package domain

import "errors"

var (
	ErrInvalidTaxCategory       = errors.New("invalid_tax_category")
	ErrInvalidExemptionCategory = errors.New("invalid_exemption_category")
	ErrMissingRequiredField     = errors.New("missing_required_field")
	ErrNegativeAmount           = errors.New("negative_amount")
	ErrInvalidItems             = errors.New("invalid_items")
)
