// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

//go:build !nats

package mirror

import (
	"context"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tagrouter/internal/config"
	"github.com/tomtom215/tagrouter/internal/router"
)

// Available reports whether this build can mirror to NATS.
const Available = false

// Service is the stub mirror of builds without the nats tag.
type Service struct{}

// NewService returns the stub service.
func NewService(_ config.MirrorConfig, _ *router.Directory, _ int) *Service {
	return &Service{}
}

// Serve fails permanently.
func (s *Service) Serve(_ context.Context) error {
	return fmt.Errorf("%w: %w", ErrUnavailable, suture.ErrDoNotRestart)
}

func (s *Service) String() string {
	return "nats-mirror"
}
