// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package command

import (
	"strings"

	"github.com/goccy/go-json"
)

// Request keys. The value of KeyListInputs is ignored; only its presence counts.
const (
	KeyListInputs  = "getInputS"
	KeySelectInput = "selectedInput"
)

// RequestKind identifies a decoded request.
type RequestKind int

const (
	// RequestUnknown is any well-formed JSON that is not a recognized request.
	RequestUnknown RequestKind = iota
	RequestList
	RequestSelect
)

// String returns the metrics label of the request kind.
func (k RequestKind) String() string {
	switch k {
	case RequestList:
		return "list"
	case RequestSelect:
		return "select"
	default:
		return "unknown"
	}
}

// Request is one decoded client message.
type Request struct {
	Kind RequestKind

	// Tag is the selected input of a RequestSelect.
	Tag string
}

// DecodeRequest interprets one complete JSON message. A list request wins
// when a message carries both keys. A selection whose value is not a string
// is RequestUnknown.
func DecodeRequest(msg []byte) Request {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(msg, &fields); err != nil {
		return Request{Kind: RequestUnknown}
	}

	if _, ok := fields[KeyListInputs]; ok {
		return Request{Kind: RequestList}
	}
	if raw, ok := fields[KeySelectInput]; ok {
		var tag string
		if err := json.Unmarshal(raw, &tag); err != nil {
			return Request{Kind: RequestUnknown}
		}
		return Request{Kind: RequestSelect, Tag: tag}
	}
	return Request{Kind: RequestUnknown}
}

// EncodeList builds the reply to a list request: every tag followed by a newline.
func EncodeList(tags []string) []byte {
	if len(tags) == 0 {
		return nil
	}
	return []byte(strings.Join(tags, "\n") + "\n")
}

// selectError is the reply to a selection of an unknown input when
// rejection is enabled.
type selectError struct {
	Error         string `json:"error"`
	SelectedInput string `json:"selectedInput"`
}

// EncodeUnknownInput builds the newline-terminated error line for tag.
func EncodeUnknownInput(tag string) []byte {
	b, err := json.Marshal(selectError{Error: "unknown input", SelectedInput: tag})
	if err != nil {
		return nil
	}
	return append(b, '\n')
}

// EncodeListRequest builds a list request.
func EncodeListRequest() []byte {
	return []byte(`{"` + KeyListInputs + `":true}`)
}

// EncodeSelectRequest builds a selection request for tag.
func EncodeSelectRequest(tag string) ([]byte, error) {
	return json.Marshal(map[string]string{KeySelectInput: tag})
}
