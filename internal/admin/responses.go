// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package admin

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tagrouter/internal/logging"
)

// APIResponse is the envelope of every JSON endpoint.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries response metadata.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError is a machine-readable error.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// InputInfo describes one configured input.
type InputInfo struct {
	Tag       string `json:"tag"`
	Transport string `json:"transport"`
	Address   string `json:"address"`

	// Routed is false for inputs with an unusable transport.
	Routed bool `json:"routed"`

	Outputs         []string `json:"outputs"`
	AttachedOutputs int      `json:"attached_outputs"`
	Subscribers     int      `json:"subscribers"`
}

// OutputInfo describes one resolved output of a route.
type OutputInfo struct {
	Tag       string `json:"tag"`
	Transport string `json:"transport"`
	Address   string `json:"address"`
}

// RouteInfo is the routing table entry of one input.
type RouteInfo struct {
	Input   string       `json:"input"`
	Outputs []OutputInfo `json:"outputs"`
}

// HealthInfo is the body of the health endpoint.
type HealthInfo struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Inputs        int     `json:"inputs"`
	Outputs       int     `json:"outputs"`
}

func respondJSON(w http.ResponseWriter, status int, response *APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{Timestamp: time.Now()},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, &APIResponse{
		Status:   "error",
		Metadata: Metadata{Timestamp: time.Now()},
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}
