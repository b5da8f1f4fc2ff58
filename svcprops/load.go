package svcprops

import (
	"net"
	"slices"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/brokensvc"
	"github.com/netprops/go-netprops/origin"
	"github.com/netprops/go-netprops/rcache"
)

// The load operations merge a persisted snapshot into the live caches.
// The persisted entries become the primary contents in their own
// recency order; every key that only existed in the live cache is then
// re-added at the most-recent position, walking the old contents from
// least to most recently used. The result: facts learned during this
// run survive the load, keep their mutual order, and rank above every
// persisted-only fact, while keys present in both sources keep the
// persisted value and position.

// loadSnapshot applies a whole stored snapshot.
func (p *Properties) loadSnapshot(snap Snapshot) {
	p.LoadSpdyServers(snap.SpdyServers)
	p.LoadAlternativeServices(snap.AltServices)
	p.LoadNetworkStats(snap.NetworkStats)
	p.LoadQuicServerInfo(snap.QuicConfigs)
	p.LoadBrokenServices(snap.Broken, snap.RecentlyBroken)
	p.LoadLastLocalAddress(snap.LastQuicAddress)
}

// mergeLoaded folds the previous live entries into an already-built
// loaded cache, which then replaces the live one.
func mergeLoaded[K comparable, V any](loaded, live *rcache.Cache[K, V]) {
	live.EachReverse(func(key K, value V) bool {
		if _, ok := loaded.Peek(key); !ok {
			loaded.Put(key, value)
		}
		return true
	})
}

// LoadSpdyServers merges persisted HTTP/2 support knowledge, ordered
// most recently used first.
func (p *Properties) LoadSpdyServers(servers []origin.Origin) {
	if len(servers) == 0 {
		return
	}
	loaded := rcache.New[origin.Origin, bool](p.spdy.Cap())
	for i := len(servers) - 1; i >= 0; i-- {
		if servers[i].Host == "" {
			log.Debugw("discarding persisted spdy entry with empty host")
			continue
		}
		loaded.Put(servers[i], true)
	}
	mergeLoaded(loaded, p.spdy)
	p.spdy = loaded
}

// LoadAlternativeServices merges persisted alternative-service
// entries, ordered most recently used first, and rebuilds the
// canonical suffix mappings.
func (p *Properties) LoadAlternativeServices(entries []AltServicesEntry) {
	if len(entries) == 0 {
		return
	}
	loaded := rcache.New[origin.Origin, []altsvc.Record](p.alt.cache.Cap())
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Origin.Host == "" || len(entry.Records) == 0 {
			log.Debugw("discarding invalid persisted alt-service entry", "origin", entry.Origin)
			continue
		}
		loaded.Put(entry.Origin, slices.Clone(entry.Records))
	}
	mergeLoaded(loaded, p.alt.cache)
	p.alt.cache = loaded

	// Rebuild canonical mappings for the merged contents, keeping an
	// existing mapping while its target still has an entry. Load-time
	// synthetic keys use the default https port.
	p.alt.cache.Each(func(o origin.Origin, _ []altsvc.Record) bool {
		if o.Scheme != canonicalScheme {
			return true
		}
		suffix, ok := p.canon.matchSuffix(o.Host)
		if !ok {
			return true
		}
		key := origin.Origin{Scheme: canonicalScheme, Host: suffix, Port: 443}
		if target, ok := p.canon.get(key); ok {
			if _, alive := p.alt.cache.Peek(target); alive {
				return true
			}
		}
		p.canon.set(key, o)
		return true
	})
}

// LoadNetworkStats merges persisted network statistics, ordered most
// recently used first.
func (p *Properties) LoadNetworkStats(entries []NetworkStatsEntry) {
	if len(entries) == 0 {
		return
	}
	loaded := rcache.New[origin.Origin, NetworkStats](p.stats.Cap())
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Origin.Host == "" {
			log.Debugw("discarding persisted network stats with empty host")
			continue
		}
		loaded.Put(entries[i].Origin, entries[i].Stats)
	}
	mergeLoaded(loaded, p.stats)
	p.stats = loaded
}

// LoadQuicServerInfo merges persisted QUIC server configs, ordered
// most recently used first, and rebuilds the canonical config-sharing
// map.
func (p *Properties) LoadQuicServerInfo(entries []QuicConfigEntry) {
	if len(entries) == 0 {
		return
	}
	loaded := rcache.New[QuicServerID, []byte](p.quic.Cap())
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Server.Host == "" {
			log.Debugw("discarding persisted quic config with empty host")
			continue
		}
		loaded.Put(entries[i].Server, slices.Clone(entries[i].Config))
	}
	mergeLoaded(loaded, p.quic)
	p.quic = loaded
	p.enforceQuicBound()

	clear(p.quicCanon)
	p.quic.EachReverse(func(server QuicServerID, _ []byte) bool {
		p.updateQuicCanonical(server)
		return true
	})
}

// LoadBrokenServices merges persisted quarantine state; live state
// wins on conflict.
func (p *Properties) LoadBrokenServices(broken []brokensvc.BrokenEntry, recent []brokensvc.RecentEntry) {
	if len(broken) == 0 && len(recent) == 0 {
		return
	}
	p.broken.Restore(broken, recent)
}

// LoadLastLocalAddress restores the local address from which QUIC last
// worked, unless the current run already learned one.
func (p *Properties) LoadLastLocalAddress(addr net.IP) {
	if len(addr) == 0 || len(p.lastQuicAddr) != 0 {
		return
	}
	p.lastQuicAddr = slices.Clone(addr)
}
