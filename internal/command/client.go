// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package command

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/tomtom215/tagrouter/internal/source"
)

// Client speaks the command protocol. After Select it is an io.Reader over
// the selected input's stream.
type Client struct {
	conn net.Conn
}

// Dial connects to the command endpoint src.
func Dial(ctx context.Context, src source.Source) (*Client, error) {
	conn, err := src.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// ListInputs asks for the input tags. The reply has no length prefix, so it
// is read until it ends with a newline. ctx bounds the wait.
func (c *Client) ListInputs(ctx context.Context) ([]string, error) {
	if _, err := c.conn.Write(EncodeListRequest()); err != nil {
		return nil, fmt.Errorf("send list request: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	var reply bytes.Buffer
	buf := make([]byte, 1024)
	for {
		n, err := c.conn.Read(buf)
		reply.Write(buf[:n])
		if n > 0 && bytes.HasSuffix(reply.Bytes(), []byte("\n")) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read list reply: %w", err)
		}
	}

	return strings.Split(strings.TrimSuffix(reply.String(), "\n"), "\n"), nil
}

// Select binds the connection to input tag. The server does not acknowledge
// a selection; stream bytes simply start arriving.
func (c *Client) Select(tag string) error {
	req, err := EncodeSelectRequest(tag)
	if err != nil {
		return err
	}
	if _, err := c.conn.Write(req); err != nil {
		return fmt.Errorf("send selection: %w", err)
	}
	return nil
}

// Read reads stream bytes.
func (c *Client) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

// SetReadDeadline sets the deadline for Read.
func (c *Client) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
