// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const correlationIDKey contextKey = "correlation_id"

// GenerateCorrelationID creates a short unique ID for one connection.
// Returns the first 8 characters of a UUID for readability.
func GenerateCorrelationID() string {
	return uuid.New().String()[:8]
}

// ContextWithCorrelationID returns a new context carrying id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationIDFromContext returns the correlation ID in ctx, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns the global logger with the correlation ID of ctx attached.
//
//	logging.Ctx(ctx).Info().Msg("Session bound")
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	return &logger
}

// WithComponent creates a child logger with a component field.
//
//	log := logging.WithComponent("router")
//	log.Info().Msg("Input listening")
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}

// WithConn creates a child logger for a single connection. Every connection
// gets its own correlation ID so its lifecycle can be followed across lines.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func WithConn(parent zerolog.Logger, role, correlationID string) zerolog.Logger {
	return parent.With().
		Str("role", role).
		Str("correlation_id", correlationID).
		Logger()
}
