// Tagrouter - Tag-Addressed Stream Router
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tagrouter

package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/netip"
	"os"
	"strconv"
)

// MaxUnixPathLen is the size of the sun_path field of a Unix socket address.
// A path must be strictly shorter to leave room for the terminating NUL.
const MaxUnixPathLen = 100

// Configuration values of comm_type.
const (
	CommTypeUnix = "UNIX_SOCK"
	CommTypeIPv4 = "IPv4"
)

// Domain is the address family a source binds or connects in.
type Domain int

const (
	DomainInvalid Domain = iota
	DomainUnix
	DomainIPv4
)

func (d Domain) String() string {
	switch d {
	case DomainUnix:
		return "unix"
	case DomainIPv4:
		return "ipv4"
	default:
		return "invalid"
	}
}

// Transport is the closed set of endpoint kinds. Only this package implements it.
type Transport interface {
	isTransport()
}

// UnixSocket is a Unix-domain stream socket endpoint.
type UnixSocket struct {
	Path string
}

// IPv4Socket is a TCP endpoint on an IPv4 address.
type IPv4Socket struct {
	Host string
	Port uint16
}

// Undefined is a source whose comm_type was not recognized.
type Undefined struct {
	CommType string
}

func (UnixSocket) isTransport() {}
func (IPv4Socket) isTransport() {}
func (Undefined) isTransport()  {}

// Source is one named endpoint from the configuration.
type Source struct {
	Tag       string
	Transport Transport

	// IsInput and IsOutput record which configuration array the source came from.
	IsInput  bool
	IsOutput bool

	// OutputTags lists the output tags an input is routed to, in configuration order.
	OutputTags []string
}

// Domain returns the address family of the source.
func (s Source) Domain() Domain {
	switch s.Transport.(type) {
	case UnixSocket:
		return DomainUnix
	case IPv4Socket:
		return DomainIPv4
	default:
		return DomainInvalid
	}
}

// Valid reports whether the source has a usable transport.
func (s Source) Valid() bool {
	return s.Domain() != DomainInvalid
}

// Describe renders the endpoint for log output.
func (s Source) Describe() string {
	switch t := s.Transport.(type) {
	case UnixSocket:
		return t.Path
	case IPv4Socket:
		return net.JoinHostPort(t.Host, strconv.Itoa(int(t.Port)))
	case Undefined:
		return fmt.Sprintf("undefined(%s)", t.CommType)
	default:
		return "undefined"
	}
}

// Network returns the net package network name used for Listen and Dial.
func (s Source) Network() string {
	switch s.Transport.(type) {
	case UnixSocket:
		return "unix"
	case IPv4Socket:
		return "tcp4"
	default:
		return ""
	}
}

// BuildAddress constructs the socket address of the source.
func (s Source) BuildAddress() (net.Addr, error) {
	switch t := s.Transport.(type) {
	case UnixSocket:
		if t.Path == "" {
			return nil, fmt.Errorf("%w: empty unix socket path", ErrInvalidSource)
		}
		if len(t.Path) >= MaxUnixPathLen {
			return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrAddressTooLong, len(t.Path), MaxUnixPathLen-1)
		}
		return &net.UnixAddr{Name: t.Path, Net: "unix"}, nil

	case IPv4Socket:
		addr, err := netip.ParseAddr(t.Host)
		if err != nil || !addr.Is4() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidHost, t.Host)
		}
		return net.TCPAddrFromAddrPort(netip.AddrPortFrom(addr, t.Port)), nil

	default:
		return nil, fmt.Errorf("%w: tag %q", ErrInvalidSource, s.Tag)
	}
}

// Listen binds and listens on the source address. A stale Unix socket node
// left by an earlier process is removed first.
func (s Source) Listen(ctx context.Context) (net.Listener, error) {
	addr, err := s.BuildAddress()
	if err != nil {
		return nil, err
	}

	if ua, ok := addr.(*net.UnixAddr); ok {
		if err := removeStaleSocket(ua.Name); err != nil {
			return nil, err
		}
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, s.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.Describe(), err)
	}
	return ln, nil
}

// Dial connects to the source address.
func (s Source) Dial(ctx context.Context) (net.Conn, error) {
	addr, err := s.BuildAddress()
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, s.Network(), addr.String())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.Describe(), err)
	}
	return conn, nil
}

// Cleanup removes the filesystem node of a Unix socket source. A missing node
// is not an error. Other transports have nothing to clean up.
func (s Source) Cleanup() error {
	t, ok := s.Transport.(UnixSocket)
	if !ok || t.Path == "" {
		return nil
	}
	if err := os.Remove(t.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove socket %s: %w", t.Path, err)
	}
	return nil
}

// removeStaleSocket unlinks path when it is a socket node. Anything else is
// left in place so the bind reports the conflict.
func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat socket %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}
