// Package svcprops caches what an HTTP client has learned about remote
// origins, so later connections can skip slow negotiation paths and
// avoid endpoints that recently failed.
//
// For each origin the cache can hold: the alternative services (HTTP/2
// or QUIC endpoints) the origin has advertised, whether the origin
// itself speaks HTTP/2, recent network statistics, and a cached QUIC
// server config. A separate set records servers that must be spoken to
// with HTTP/1.1, and one scalar remembers the local address from which
// QUIC last worked.
//
// # Canonical suffixes
//
// Many hostnames of a large content network resolve to the same
// endpoints, so alternative services learned for one of them predict
// the others. Hosts ending with a configured canonical suffix share
// one entry: when an origin has no direct entry, the cache falls back
// to the entry of the origin most recently seen on the same suffix and
// port, rewriting advertised hosts for the requesting origin.
//
// # Expiry and quarantine
//
// Advertised records carry expirations and are discarded lazily, on
// the next operation that touches their origin; there is no background
// sweep. Alternative services that failed are quarantined by the
// brokensvc tracker with growing ban durations. Quarantined records
// are filtered from lookups but kept in storage; when a ban expires
// naturally the tracker notifies the cache, which then prunes every
// record advertising the expired service. A canonical mapping whose
// records have all expired or been quarantined is healed lazily, on
// the next lookup through it.
//
// # Persistence
//
// With a Storage configured, mutations are batched and written as a
// snapshot after a short delay, and the snapshot is loaded again at
// construction. Loading merges the two sources: persisted entries
// seed the caches in their stored recency order, and anything learned
// before the load ranks above them. The cache never reads or writes an
// on-disk format itself.
//
// # Ownership
//
// A Properties cache is single-owner state, like the caches inside an
// http.Transport. It must be constructed, used and closed by one
// goroutine, and no operation blocks. Timer callbacks (quarantine
// expiry, snapshot writes) fire on the configured clock's timer
// goroutine; an owner using the real clock must serialize them with
// its own calls, for example by running the cache on an event loop.
package svcprops
