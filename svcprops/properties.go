package svcprops

import (
	"bytes"
	"net"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	logging "github.com/ipfs/go-log/v2"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/brokensvc"
	"github.com/netprops/go-netprops/origin"
	"github.com/netprops/go-netprops/rcache"
)

var log = logging.Logger("svcprops")

// Properties is the per-process knowledge cache an HTTP client
// consults before opening a connection to a remote origin. It records
// which origins speak a multiplexed transport and where, recent
// network statistics, cached QUIC server configs, and which
// alternative services are quarantined after failures.
//
// Properties is not safe for concurrent use. It is constructed, used
// and closed by a single owning goroutine; quarantine expiry
// notifications are delivered synchronously on that same goroutine.
type Properties struct {
	clk clock.Clock

	canon *canonicalIndex
	alt   *altServiceStore

	spdy  *rcache.Cache[origin.Origin, bool]
	stats *rcache.Cache[origin.Origin, NetworkStats]

	quic      *rcache.Cache[QuicServerID, []byte]
	quicCanon map[QuicServerID]QuicServerID

	http11       map[HostPort]struct{}
	lastQuicAddr net.IP

	broken *brokensvc.Tracker

	storage    Storage
	writeDelay time.Duration
	writeTimer *clock.Timer
}

// New creates a Properties cache. If a Storage is configured, the
// stored snapshot is merged into the (empty) live caches before New
// returns.
func New(options ...Option) (*Properties, error) {
	opts, err := getOpts(options)
	if err != nil {
		return nil, err
	}

	canon := newCanonicalIndex(opts.suffixes)
	p := &Properties{
		clk:        opts.clk,
		canon:      canon,
		spdy:       rcache.New[origin.Origin, bool](opts.maxServerEntries),
		stats:      rcache.New[origin.Origin, NetworkStats](opts.maxServerEntries),
		quic:       rcache.New[QuicServerID, []byte](opts.maxQuicEntries),
		quicCanon:  make(map[QuicServerID]QuicServerID),
		http11:     make(map[HostPort]struct{}),
		storage:    opts.storage,
		writeDelay: opts.writeDelay,
	}
	p.broken = brokensvc.New(p, opts.clk, opts.maxRecentlyBroken)
	p.alt = newAltServiceStore(opts.maxServerEntries, canon, p.broken, opts.clk)

	if p.storage != nil {
		snap, ok, err := p.storage.Load()
		if err != nil {
			log.Errorw("cannot load stored properties, starting empty", "err", err)
		} else if ok {
			p.loadSnapshot(snap)
		}
	}
	return p, nil
}

// Close flushes any pending snapshot write and cancels the quarantine
// timers. The cache must not be used after Close.
func (p *Properties) Close() error {
	var err error
	if p.writeTimer != nil {
		p.writeTimer.Stop()
		p.writeTimer = nil
		err = p.Flush()
	}
	p.broken.Close()
	return err
}

// GetSupportsSpdy reports whether server is known to support HTTP/2.
func (p *Properties) GetSupportsSpdy(server origin.Origin) bool {
	if server.Host == "" {
		return false
	}
	supports, _ := p.spdy.Get(server)
	return supports
}

// SetSupportsSpdy records whether server supports HTTP/2.
func (p *Properties) SetSupportsSpdy(server origin.Origin, supports bool) {
	if server.Host == "" {
		return
	}
	prev, ok := p.spdy.Peek(server)
	p.spdy.Put(server, supports)
	if !ok && !supports {
		// Recording a negative for an unknown server is not worth a
		// write.
		return
	}
	if !ok || prev != supports {
		p.maybeQueueWrite()
	}
}

// SupportsRequestPriority reports whether requests to server can carry
// a priority: true if the server speaks HTTP/2 or has a usable QUIC
// alternative.
func (p *Properties) SupportsRequestPriority(server origin.Origin) bool {
	if server.Host == "" {
		return false
	}
	if p.GetSupportsSpdy(server) {
		return true
	}
	for _, rec := range p.GetAlternativeServices(server) {
		if rec.Service.Protocol == altsvc.QUIC {
			return true
		}
	}
	return false
}

// RequiresHTTP11 reports whether the host/port is known to require
// HTTP/1.1.
func (p *Properties) RequiresHTTP11(host string, port uint16) bool {
	if host == "" {
		return false
	}
	_, ok := p.http11[HostPort{Host: host, Port: port}]
	return ok
}

// SetHTTP11Required records that the host/port requires HTTP/1.1.
// This is runtime-only state and is never persisted.
func (p *Properties) SetHTTP11Required(host string, port uint16) {
	if host == "" {
		return
	}
	p.http11[HostPort{Host: host, Port: port}] = struct{}{}
}

// GetAlternativeServices returns the usable alternative services for
// origin, in preference order, with empty hosts materialized to the
// origin's host. See altServiceStore.get for the filtering rules.
func (p *Properties) GetAlternativeServices(o origin.Origin) []altsvc.Record {
	return p.alt.get(o)
}

// SetAlternativeServices replaces origin's alternative services with
// records, in preference order. An empty records slice erases the
// entry.
func (p *Properties) SetAlternativeServices(o origin.Origin, records []altsvc.Record) {
	if o.Host == "" {
		return
	}
	if p.alt.set(o, records) {
		p.maybeQueueWrite()
	}
}

// SetHTTP2AlternativeService records a single HTTP/2 alternative for
// origin.
func (p *Properties) SetHTTP2AlternativeService(o origin.Origin, service altsvc.AltService, expiration time.Time) {
	p.SetAlternativeServices(o, []altsvc.Record{altsvc.NewHTTP2Record(service, expiration)})
}

// SetQUICAlternativeService records a single QUIC alternative for
// origin with its advertised versions.
func (p *Properties) SetQUICAlternativeService(o origin.Origin, service altsvc.AltService, expiration time.Time, versions []uint32) {
	p.SetAlternativeServices(o, []altsvc.Record{altsvc.NewQUICRecord(service, expiration, versions)})
}

// MarkBroken quarantines service.
func (p *Properties) MarkBroken(service altsvc.AltService) {
	p.broken.MarkBroken(service)
	p.maybeQueueWrite()
}

// MarkBrokenUntilDefaultNetworkChanges quarantines service until its
// ban expires or the default network changes.
func (p *Properties) MarkBrokenUntilDefaultNetworkChanges(service altsvc.AltService) {
	p.broken.MarkBrokenUntilDefaultNetworkChanges(service)
	p.maybeQueueWrite()
}

// MarkRecentlyBroken records failure history for service without
// banning it now.
func (p *Properties) MarkRecentlyBroken(service altsvc.AltService) {
	p.broken.MarkRecentlyBroken(service)
	p.maybeQueueWrite()
}

// IsBroken reports whether service is currently quarantined.
func (p *Properties) IsBroken(service altsvc.AltService) bool {
	return p.broken.IsBroken(service)
}

// WasRecentlyBroken reports whether service is quarantined or has
// failure history.
func (p *Properties) WasRecentlyBroken(service altsvc.AltService) bool {
	return p.broken.WasRecentlyBroken(service)
}

// Confirm clears quarantine state for service after a successful use.
func (p *Properties) Confirm(service altsvc.AltService) {
	wasBroken := p.broken.IsBroken(service)
	p.broken.Confirm(service)
	if wasBroken {
		p.maybeQueueWrite()
	}
}

// OnDefaultNetworkChanged lifts bans scoped to the previous default
// network.
func (p *Properties) OnDefaultNetworkChanged() {
	if p.broken.OnDefaultNetworkChanged() {
		p.maybeQueueWrite()
	}
}

// OnExpiredBrokenService implements brokensvc.Delegate. When a ban
// expires naturally the quarantined service is no longer worth
// remembering, so every record advertising it is pruned.
func (p *Properties) OnExpiredBrokenService(service altsvc.AltService) {
	p.alt.onExpired(service)
	p.maybeQueueWrite()
}

// GetNetworkStats returns the recorded network statistics for server.
func (p *Properties) GetNetworkStats(server origin.Origin) (NetworkStats, bool) {
	if server.Host == "" {
		return NetworkStats{}, false
	}
	return p.stats.Get(server)
}

// SetNetworkStats replaces the network statistics for server.
func (p *Properties) SetNetworkStats(server origin.Origin, stats NetworkStats) {
	if server.Host == "" {
		return
	}
	prev, ok := p.stats.Peek(server)
	p.stats.Put(server, stats)
	if !ok || prev != stats {
		p.maybeQueueWrite()
	}
}

// ClearNetworkStats removes the network statistics for server without
// disturbing recency order.
func (p *Properties) ClearNetworkStats(server origin.Origin) {
	if p.stats.Delete(server) {
		p.maybeQueueWrite()
	}
}

// GetQuicServerInfo returns the cached server config for server. On a
// direct miss, a config cached for another server on the same
// canonical suffix and port is returned without disturbing recency
// order.
func (p *Properties) GetQuicServerInfo(server QuicServerID) ([]byte, bool) {
	if server.Host == "" {
		return nil, false
	}
	if info, ok := p.quic.Get(server); ok {
		// Keep the canonical map pointing at the most recent host.
		p.updateQuicCanonical(server)
		return info, true
	}
	key, ok := p.quicCanonicalKey(server)
	if !ok {
		return nil, false
	}
	shared, ok := p.quicCanon[key]
	if !ok {
		return nil, false
	}
	return p.quic.Peek(shared)
}

// SetQuicServerInfo replaces the cached server config for server.
func (p *Properties) SetQuicServerInfo(server QuicServerID, info []byte) {
	if server.Host == "" {
		return
	}
	prev, ok := p.quic.Peek(server)
	changed := !ok || !bytes.Equal(prev, info)
	p.quic.Put(server, slices.Clone(info))
	p.updateQuicCanonical(server)
	p.enforceQuicBound()
	if changed {
		p.maybeQueueWrite()
	}
}

// enforceQuicBound evicts least-recently-used configs until the cache
// fits its capacity, dropping canonical mappings that pointed at an
// evicted server.
func (p *Properties) enforceQuicBound() {
	for p.quic.Len() > p.quic.Cap() {
		var oldest QuicServerID
		p.quic.EachReverse(func(server QuicServerID, _ []byte) bool {
			oldest = server
			return false
		})
		p.quic.Delete(oldest)
		if key, ok := p.quicCanonicalKey(oldest); ok && p.quicCanon[key] == oldest {
			delete(p.quicCanon, key)
		}
	}
}

// MaxQuicConfigsStored returns the QUIC config cache capacity.
func (p *Properties) MaxQuicConfigsStored() int {
	return p.quic.Cap()
}

// SetMaxQuicConfigsStored rebuilds the QUIC config cache with capacity
// n, keeping the n most-recently-used configs, and rebuilds the
// canonical map to match. Values below one are clamped to one.
func (p *Properties) SetMaxQuicConfigsStored(n int) {
	if n < 1 {
		n = 1
	}
	if n == p.quic.Cap() {
		return
	}
	p.quic.Resize(n)
	clear(p.quicCanon)
	p.quic.EachReverse(func(server QuicServerID, _ []byte) bool {
		p.updateQuicCanonical(server)
		return true
	})
}

// HasLastLocalAddressWhenQuicWorked reports whether a local address is
// recorded from the last time QUIC worked.
func (p *Properties) HasLastLocalAddressWhenQuicWorked() bool {
	return len(p.lastQuicAddr) != 0
}

// WasLastLocalAddressWhenQuicWorked reports whether QUIC last worked
// from the given local address.
func (p *Properties) WasLastLocalAddressWhenQuicWorked(addr net.IP) bool {
	return len(p.lastQuicAddr) != 0 && p.lastQuicAddr.Equal(addr)
}

// SetLastLocalAddressWhenQuicWorked records the local address from
// which QUIC last worked.
func (p *Properties) SetLastLocalAddressWhenQuicWorked(addr net.IP) {
	if len(addr) == 0 || p.lastQuicAddr.Equal(addr) {
		return
	}
	p.lastQuicAddr = slices.Clone(addr)
	p.maybeQueueWrite()
}

// ClearLastLocalAddressWhenQuicWorked forgets the recorded local
// address.
func (p *Properties) ClearLastLocalAddressWhenQuicWorked() {
	if len(p.lastQuicAddr) == 0 {
		return
	}
	p.lastQuicAddr = nil
	p.maybeQueueWrite()
}

// Clear empties every cache, set and scalar, including quarantine
// state, and rewrites the stored snapshot immediately.
func (p *Properties) Clear() {
	p.alt.cache.Clear()
	p.canon.clear()
	p.spdy.Clear()
	p.stats.Clear()
	p.quic.Clear()
	clear(p.quicCanon)
	clear(p.http11)
	p.lastQuicAddr = nil
	p.broken.Clear()

	if p.storage != nil {
		if p.writeTimer != nil {
			p.writeTimer.Stop()
			p.writeTimer = nil
		}
		p.flush()
	}
}

func (p *Properties) quicCanonicalKey(server QuicServerID) (QuicServerID, bool) {
	suffix, ok := p.canon.matchSuffix(server.Host)
	if !ok {
		return QuicServerID{}, false
	}
	return QuicServerID{Host: suffix, Port: server.Port}, true
}

// updateQuicCanonical makes server the preferred config donor for its
// suffix and port.
func (p *Properties) updateQuicCanonical(server QuicServerID) {
	if key, ok := p.quicCanonicalKey(server); ok {
		p.quicCanon[key] = server
	}
}
