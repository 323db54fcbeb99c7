// Package audit emits structured audit events enriched with request
// and actor context. Entries land in the service log stream and are
// shipped to long-term storage by the log pipeline.
package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/obs"
)

type ctxKey struct{}

// WithRequestID attaches the request identifier to the context for
// audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

// RequestIDFromContext extracts the audit request id, if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}

// Log wraps a structured logger for audit emission. The zero value is
// unusable; construct with New.
type Log struct {
	logger *zap.Logger
}

// New builds an audit log on top of the given logger. A nil logger
// falls back to the shared service logger.
func New(logger *zap.Logger) *Log {
	if logger == nil {
		logger = obs.Logger()
	}
	return &Log{logger: logger}
}

// Event writes an audit entry. Actor identity comes from the request
// context when present.
func (l *Log) Event(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("audit: event name is required")
	}
	zf := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		zf = append(zf, zap.String("request_id", rid))
	}
	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		zf = append(zf,
			zap.String("user_id", claims.Subject),
			zap.String("organization_id", claims.OrganizationID),
			zap.String("role", string(claims.Role)),
		)
	}
	if len(fields) > 0 {
		zf = append(zf, zap.Any("fields", fields))
	}
	l.logger.Info("audit", zf...)
	return nil
}

// Event writes an audit entry via the shared service logger.
func Event(ctx context.Context, event string, fields map[string]any) error {
	return New(nil).Event(ctx, event, fields)
}
