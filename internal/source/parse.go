// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package source

import (
	"math"
)

// Configuration keys of a source block.
const (
	KeyTag          = "tag"
	KeyCommType     = "comm_type"
	KeySockFilePath = "sock_file_path"
	KeyURI          = "uri"
	KeyPort         = "port"
)

// Parse builds a Source from one configuration block. An unrecognized
// comm_type yields an Undefined source rather than an error so that a single
// bad entry does not take the rest of the configuration down.
func Parse(block map[string]any) (Source, error) {
	tag, hasTag := block[KeyTag].(string)

	rawType, ok := block[KeyCommType]
	if !ok {
		return Source{}, &FieldError{Tag: tag, Field: KeyCommType, Reason: "is missing"}
	}
	commType, ok := rawType.(string)
	if !ok {
		return Source{}, &FieldError{Tag: tag, Field: KeyCommType, Reason: "must be a string"}
	}

	switch commType {
	case CommTypeUnix, CommTypeIPv4:
	default:
		return Source{Tag: tag, Transport: Undefined{CommType: commType}}, nil
	}

	if !hasTag {
		if _, present := block[KeyTag]; present {
			return Source{}, &FieldError{Field: KeyTag, Reason: "must be a string"}
		}
		return Source{}, &FieldError{Field: KeyTag, Reason: "is missing"}
	}

	detail, ok := block[commType].(map[string]any)
	if !ok {
		return Source{}, &FieldError{Tag: tag, Field: commType, Reason: "must be an object"}
	}

	if commType == CommTypeUnix {
		path, ok := detail[KeySockFilePath].(string)
		if !ok || path == "" {
			return Source{}, &FieldError{Tag: tag, Field: commType + "." + KeySockFilePath, Reason: "must be a non-empty string"}
		}
		return Source{Tag: tag, Transport: UnixSocket{Path: path}}, nil
	}

	host, ok := detail[KeyURI].(string)
	if !ok || host == "" {
		return Source{}, &FieldError{Tag: tag, Field: commType + "." + KeyURI, Reason: "must be a non-empty string"}
	}
	port, ok := portValue(detail[KeyPort])
	if !ok {
		return Source{}, &FieldError{Tag: tag, Field: commType + "." + KeyPort, Reason: "must be an integer between 0 and 65535"}
	}
	return Source{Tag: tag, Transport: IPv4Socket{Host: host, Port: port}}, nil
}

// portValue accepts the numeric shapes JSON and YAML decoders produce.
func portValue(v any) (uint16, bool) {
	var n float64
	switch p := v.(type) {
	case float64:
		n = p
	case float32:
		n = float64(p)
	case int:
		n = float64(p)
	case int64:
		n = float64(p)
	case uint64:
		n = float64(p)
	default:
		return 0, false
	}
	if n != math.Trunc(n) || n < 0 || n > math.MaxUint16 {
		return 0, false
	}
	return uint16(n), true
}
