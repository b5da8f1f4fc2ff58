// Package altsvc defines the alternative service data model: an
// alternate network location and protocol at which an origin's service
// can also be reached, and the advertised record carrying its
// expiration and, for QUIC, the advertised protocol versions.
package altsvc

import (
	"fmt"
	"net"
	"slices"
	"strconv"
	"time"
)

// Protocol is the multiplexed transport spoken at an alternative
// service endpoint.
type Protocol uint8

const (
	HTTP2 Protocol = iota + 1
	QUIC
)

// String returns the ALPN-style protocol name.
func (p Protocol) String() string {
	switch p {
	case HTTP2:
		return "h2"
	case QUIC:
		return "quic"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (p Protocol) MarshalText() ([]byte, error) {
	if p != HTTP2 && p != QUIC {
		return nil, fmt.Errorf("unknown protocol %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Protocol) UnmarshalText(text []byte) error {
	switch string(text) {
	case "h2":
		*p = HTTP2
	case "quic":
		*p = QUIC
	default:
		return fmt.Errorf("unknown protocol %q", text)
	}
	return nil
}

// AltService is an alternative network location. An empty Host means
// "same host as the origin the record was advertised for"; it is
// materialized with WithHost before being compared or handed to the
// quarantine layer.
type AltService struct {
	Protocol Protocol `json:"protocol"`
	Host     string   `json:"host,omitempty"`
	Port     uint16   `json:"port"`
}

// WithHost returns a copy of s with an empty Host replaced by host.
func (s AltService) WithHost(host string) AltService {
	if s.Host == "" {
		s.Host = host
	}
	return s
}

// String returns a human-readable form, e.g. "quic alt.example.org:443".
func (s AltService) String() string {
	return s.Protocol.String() + " " + net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

// Record is one advertised alternative service together with its
// expiration and, for QUIC, the advertised versions in preference
// order.
type Record struct {
	Service            AltService `json:"service"`
	Expiration         time.Time  `json:"expiration"`
	AdvertisedVersions []uint32   `json:"advertised_versions,omitempty"`
}

// NewHTTP2Record creates a record advertising an HTTP/2 endpoint.
func NewHTTP2Record(service AltService, expiration time.Time) Record {
	return Record{Service: service, Expiration: expiration}
}

// NewQUICRecord creates a record advertising a QUIC endpoint with the
// given advertised versions in preference order.
func NewQUICRecord(service AltService, expiration time.Time, versions []uint32) Record {
	return Record{Service: service, Expiration: expiration, AdvertisedVersions: versions}
}

// SameVersions reports whether two records advertise the same version
// list, in the same order.
func (r Record) SameVersions(other Record) bool {
	return slices.Equal(r.AdvertisedVersions, other.AdvertisedVersions)
}
