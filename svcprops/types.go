package svcprops

import "time"

// NetworkStats holds recent network measurements for one origin.
// Values are replaced wholesale, never partially merged.
type NetworkStats struct {
	// SRTT is the smoothed round-trip time.
	SRTT time.Duration `json:"srtt"`
	// BandwidthEstimate is in bits per second.
	BandwidthEstimate uint64 `json:"bandwidth_estimate"`
}

// QuicServerID identifies a QUIC server for which a serialized server
// config is cached.
type QuicServerID struct {
	Host string `json:"host"`
	Port uint16 `json:"port"`
}

// HostPort keys the set of servers known to require HTTP/1.1.
type HostPort struct {
	Host string
	Port uint16
}
