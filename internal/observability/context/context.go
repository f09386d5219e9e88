package context

import (
	stdcontext "context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	referenceKey ctxKey = "submission_reference"
)

// WithRequestID stores the inbound request id.
func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	return stdcontext.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

// WithReference stores the submission reference of the attempt in flight.
func WithReference(ctx stdcontext.Context, reference string) stdcontext.Context {
	return stdcontext.WithValue(ctx, referenceKey, strings.TrimSpace(reference))
}

func ReferenceFromContext(ctx stdcontext.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(referenceKey).(string)
	return value
}
