package domain

import "errors"

var (
	ErrDeviceNotInitialized   = errors.New("device_not_initialized")
	ErrInvalidKind            = errors.New("invalid_submission_kind")
	ErrInvalidInvoiceType     = errors.New("invalid_invoice_type")
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrQueueUnavailable       = errors.New("queue_unavailable")
	ErrTransport              = errors.New("authority_unreachable")
)
