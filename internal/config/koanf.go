// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/tidwall/jsonc"
)

// SettingsKey is the document key holding runtime settings.
const SettingsKey = "settings"

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TAGROUTER_"

// commentedJSON strips // and /* */ comments and trailing commas before the
// JSON parser sees the file.
type commentedJSON struct {
	*file.File
}

func (c commentedJSON) ReadBytes() ([]byte, error) {
	b, err := c.File.ReadBytes()
	if err != nil {
		return nil, err
	}
	return jsonc.ToJSON(b), nil
}

// LoadDocument reads the configuration document at path. Files ending in
// .yaml or .yml are parsed as YAML, everything else as JSON with comments.
func LoadDocument(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = k.Load(file.Provider(path), yaml.Parser())
	default:
		err = k.Load(commentedJSON{file.Provider(path)}, json.Parser())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return k, nil
}

// LoadSettings builds the runtime settings in three layers:
//
//  1. Defaults: built-in values
//  2. Document: the "settings" object of the configuration document, if any
//  3. Environment: TAGROUTER_* variables
//
// The result is validated before it is returned.
func LoadSettings(doc *koanf.Koanf) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if doc != nil && doc.Exists(SettingsKey) {
		if err := k.Merge(doc.Cut(SettingsKey)); err != nil {
			return nil, fmt.Errorf("failed to merge document settings: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed: %w", err)
	}
	return s, nil
}

// sliceConfigPaths are settings that arrive from the environment as
// comma-separated strings.
var sliceConfigPaths = []string{
	"admin.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names to settings keys. Variables
// that are not listed are ignored.
var envMappings = map[string]string{
	"tagrouter_log_level":  "logging.level",
	"tagrouter_log_format": "logging.format",
	"tagrouter_log_caller": "logging.caller",

	"tagrouter_read_buffer_size": "routing.read_buffer_size",
	"tagrouter_queue_limit":      "routing.queue_limit",
	"tagrouter_dial_timeout":     "routing.dial_timeout",
	"tagrouter_redial_interval":  "routing.redial_interval",
	"tagrouter_breaker_failures": "routing.breaker_failures",
	"tagrouter_breaker_timeout":  "routing.breaker_timeout",

	"tagrouter_max_message_size":    "command.max_message_size",
	"tagrouter_requests_per_second": "command.requests_per_second",
	"tagrouter_request_burst":       "command.request_burst",
	"tagrouter_allow_rebind":        "command.allow_rebind",
	"tagrouter_reject_unknown":      "command.reject_unknown",

	"tagrouter_admin_enabled":          "admin.enabled",
	"tagrouter_admin_read_timeout":     "admin.read_timeout",
	"tagrouter_admin_write_timeout":    "admin.write_timeout",
	"tagrouter_rate_limit_requests":    "admin.rate_limit_requests",
	"tagrouter_rate_limit_window":      "admin.rate_limit_window",
	"tagrouter_cors_origins":           "admin.cors_origins",
	"tagrouter_admin_shutdown_timeout": "admin.shutdown_timeout",

	"tagrouter_supervisor_failure_threshold": "supervisor.failure_threshold",
	"tagrouter_supervisor_failure_decay":     "supervisor.failure_decay",
	"tagrouter_supervisor_failure_backoff":   "supervisor.failure_backoff",
	"tagrouter_supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",

	"tagrouter_mirror_enabled":        "mirror.enabled",
	"tagrouter_mirror_url":            "mirror.url",
	"tagrouter_mirror_subject_prefix": "mirror.subject_prefix",
	"tagrouter_mirror_flush_interval": "mirror.flush_interval",
}

// envTransformFunc maps an environment variable name to a settings key, or
// returns "" to skip it.
//
// Examples:
//   - TAGROUTER_LOG_LEVEL -> logging.level
//   - TAGROUTER_QUEUE_LIMIT -> routing.queue_limit
//   - TAGROUTER_ALLOW_REBIND -> command.allow_rebind
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
