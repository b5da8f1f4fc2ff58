package svcprops

import (
	"net"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/brokensvc"
	"github.com/netprops/go-netprops/origin"
)

// Storage persists a Snapshot between processes. The cache never sees
// the on-disk representation; implementations own serialization
// entirely. See the propsdb package for a leveldb-backed
// implementation.
type Storage interface {
	// Load returns the stored snapshot. The second return is false if
	// nothing has been stored yet.
	Load() (Snapshot, bool, error)
	// Save replaces the stored snapshot.
	Save(Snapshot) error
}

// Snapshot is the full persistable state of a Properties cache. Every
// per-cache list is ordered from most to least recently used, so a
// later load can reconstruct recency order.
type Snapshot struct {
	// SpdyServers lists the origins known to support HTTP/2.
	SpdyServers []origin.Origin `json:"spdy_servers,omitempty"`

	AltServices  []AltServicesEntry  `json:"alt_services,omitempty"`
	NetworkStats []NetworkStatsEntry `json:"network_stats,omitempty"`
	QuicConfigs  []QuicConfigEntry   `json:"quic_configs,omitempty"`

	Broken         []brokensvc.BrokenEntry `json:"broken,omitempty"`
	RecentlyBroken []brokensvc.RecentEntry `json:"recently_broken,omitempty"`

	LastQuicAddress net.IP `json:"last_quic_address,omitempty"`
}

// AltServicesEntry is one origin's alternative-service records, in
// preference order.
type AltServicesEntry struct {
	Origin  origin.Origin   `json:"origin"`
	Records []altsvc.Record `json:"records"`
}

// NetworkStatsEntry is one origin's recorded network statistics.
type NetworkStatsEntry struct {
	Origin origin.Origin `json:"origin"`
	Stats  NetworkStats  `json:"stats"`
}

// QuicConfigEntry is one QUIC server's cached config blob.
type QuicConfigEntry struct {
	Server QuicServerID `json:"server"`
	Config []byte       `json:"config"`
}
