// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package config

import (
	"time"

	"github.com/tomtom215/tagrouter/internal/validation"
)

// Settings holds the runtime tuning of the router. The source topology
// (input, output, cmd_server, conn_server) lives in the same document but is
// read by the registry package.
type Settings struct {
	Logging    LoggingConfig    `koanf:"logging"`
	Routing    RoutingConfig    `koanf:"routing"`
	Command    CommandConfig    `koanf:"command"`
	Admin      AdminConfig      `koanf:"admin"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
	Mirror     MirrorConfig     `koanf:"mirror"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"loglevel"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// RoutingConfig tunes the per-input fan-out services.
type RoutingConfig struct {
	// ReadBufferSize is the size of a single producer read.
	ReadBufferSize int `koanf:"read_buffer_size" validate:"min=512,max=1048576"`

	// QueueLimit caps the bytes queued for one sink. A sink that falls
	// further behind is disconnected.
	QueueLimit int `koanf:"queue_limit" validate:"min=4096"`

	// DialTimeout bounds a single connect to an output.
	DialTimeout time.Duration `koanf:"dial_timeout" validate:"gt=0"`

	// RedialInterval is the delay before reconnecting a lost output.
	// Zero disables reconnection.
	RedialInterval time.Duration `koanf:"redial_interval" validate:"gte=0"`

	// BreakerFailures is the number of consecutive failed connects that
	// opens an output's circuit breaker.
	BreakerFailures uint32 `koanf:"breaker_failures" validate:"min=1"`

	// BreakerTimeout is how long an open breaker rejects connects.
	BreakerTimeout time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// CommandConfig tunes the client command protocol.
type CommandConfig struct {
	// MaxMessageSize caps the bytes buffered while waiting for a complete
	// request. Larger partial requests are discarded.
	MaxMessageSize int `koanf:"max_message_size" validate:"min=64"`

	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	RequestBurst      int     `koanf:"request_burst" validate:"min=1"`

	// AllowRebind lets a bound client select another input.
	AllowRebind bool `koanf:"allow_rebind"`

	// RejectUnknown answers a selection of an unknown tag with an error line
	// instead of ignoring it.
	RejectUnknown bool `koanf:"reject_unknown"`
}

// AdminConfig configures the HTTP control plane served on cmd_server.
type AdminConfig struct {
	Enabled           bool          `koanf:"enabled"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// SupervisorConfig mirrors suture's failure handling knobs.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// MirrorConfig enables publishing every input stream to NATS.
// Only effective in builds with the nats tag.
type MirrorConfig struct {
	Enabled       bool          `koanf:"enabled"`
	URL           string        `koanf:"url" validate:"required_if=Enabled true"`
	SubjectPrefix string        `koanf:"subject_prefix" validate:"required_if=Enabled true"`
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gte=0"`
}

// defaultSettings returns the built-in defaults. They are loaded first and
// overridden by the document and then by the environment.
func defaultSettings() *Settings {
	return &Settings{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Routing: RoutingConfig{
			ReadBufferSize:  32 * 1024,
			QueueLimit:      8 << 20, // 8MB per sink
			DialTimeout:     5 * time.Second,
			RedialInterval:  0,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Command: CommandConfig{
			MaxMessageSize:    64 * 1024,
			RequestsPerSecond: 20,
			RequestBurst:      40,
		},
		Admin: AdminConfig{
			Enabled:           true,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      0, // stream taps are long-lived
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			CORSOrigins:       []string{"*"},
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
		Mirror: MirrorConfig{
			Enabled:       false,
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "tagrouter.input",
			FlushInterval: time.Second,
		},
	}
}

// Validate checks every setting against its rules.
func (s *Settings) Validate() error {
	return validation.ValidateStruct(s)
}
