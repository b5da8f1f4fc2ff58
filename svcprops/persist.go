package svcprops

import (
	"slices"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/origin"
)

// maybeQueueWrite schedules a snapshot write after the configured
// delay, folding bursts of mutations into one write. A no-op while a
// write is already queued or when no Storage is configured.
func (p *Properties) maybeQueueWrite() {
	if p.storage == nil || p.writeTimer != nil {
		return
	}
	p.writeTimer = p.clk.AfterFunc(p.writeDelay, func() {
		p.writeTimer = nil
		p.flush()
	})
}

// Flush writes the current snapshot immediately and cancels any queued
// write. It returns nil when no Storage is configured.
func (p *Properties) Flush() error {
	if p.storage == nil {
		return nil
	}
	if p.writeTimer != nil {
		p.writeTimer.Stop()
		p.writeTimer = nil
	}
	return p.storage.Save(p.buildSnapshot())
}

func (p *Properties) flush() {
	if err := p.storage.Save(p.buildSnapshot()); err != nil {
		log.Errorw("cannot save properties snapshot", "err", err)
	}
}

// buildSnapshot captures the persistable state, most-recently-used
// entries first. HTTP/1.1 requirements are runtime-only and excluded.
func (p *Properties) buildSnapshot() Snapshot {
	var snap Snapshot

	p.spdy.Each(func(server origin.Origin, supports bool) bool {
		if supports {
			snap.SpdyServers = append(snap.SpdyServers, server)
		}
		return true
	})

	p.alt.cache.Each(func(o origin.Origin, records []altsvc.Record) bool {
		snap.AltServices = append(snap.AltServices, AltServicesEntry{
			Origin:  o,
			Records: slices.Clone(records),
		})
		return true
	})

	p.stats.Each(func(server origin.Origin, stats NetworkStats) bool {
		snap.NetworkStats = append(snap.NetworkStats, NetworkStatsEntry{
			Origin: server,
			Stats:  stats,
		})
		return true
	})

	p.quic.Each(func(server QuicServerID, config []byte) bool {
		snap.QuicConfigs = append(snap.QuicConfigs, QuicConfigEntry{
			Server: server,
			Config: slices.Clone(config),
		})
		return true
	})

	snap.Broken, snap.RecentlyBroken = p.broken.Snapshot()
	snap.LastQuicAddress = p.lastQuicAddr
	return snap
}
