package svcprops

import (
	"slices"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/origin"
	"github.com/netprops/go-netprops/rcache"
)

// brokenChecker is the slice of the quarantine subsystem the store
// needs to filter lookups.
type brokenChecker interface {
	IsBroken(altsvc.AltService) bool
}

// altServiceStore owns the origin → alternative-service records cache
// and the canonical suffix index, implementing lookup with canonical
// fallback and the record lifecycle.
type altServiceStore struct {
	cache  *rcache.Cache[origin.Origin, []altsvc.Record]
	canon  *canonicalIndex
	broken brokenChecker
	clk    clock.Clock
}

func newAltServiceStore(capacity int, canon *canonicalIndex, broken brokenChecker, clk clock.Clock) *altServiceStore {
	return &altServiceStore{
		cache:  rcache.New[origin.Origin, []altsvc.Record](capacity),
		canon:  canon,
		broken: broken,
		clk:    clk,
	}
}

// get returns the usable alternative-service records for o, in stored
// preference order, with empty record hosts materialized to o's host.
// Expired records are removed from storage; degenerate and quarantined
// records are filtered from the result only. If o has no direct entry
// a canonical same-suffix entry is consulted; a mapping whose target
// entry is gone or fully quarantined is removed so later lookups start
// clean.
func (s *altServiceStore) get(o origin.Origin) []altsvc.Record {
	now := s.clk.Now()

	if records, ok := s.cache.Get(o); ok {
		live := s.pruneExpired(o, records, now)
		var valid []altsvc.Record
		for _, rec := range live {
			rec.Service = rec.Service.WithHost(o.Host)
			if degenerate(rec.Service, o) {
				continue
			}
			if s.broken.IsBroken(rec.Service) {
				continue
			}
			valid = append(valid, rec)
		}
		return valid
	}

	key, target, ok := s.canon.lookup(o)
	if !ok {
		return nil
	}
	records, ok := s.cache.Get(target)
	if !ok {
		// The mapped entry is gone; heal the stale mapping.
		s.canon.delete(key)
		return nil
	}
	live := s.pruneExpired(target, records, now)
	var valid []altsvc.Record
	var unquarantined int
	for _, rec := range live {
		// Brokenness is tracked under the canonical host for records
		// with no explicit host.
		if s.broken.IsBroken(rec.Service.WithHost(target.Host)) {
			continue
		}
		unquarantined++
		rec.Service = rec.Service.WithHost(o.Host)
		if degenerate(rec.Service, o) {
			continue
		}
		valid = append(valid, rec)
	}
	// Only quarantine kills the mapping. A record that is merely
	// degenerate for this requester is still a live fallback for its
	// siblings on the suffix.
	if unquarantined == 0 {
		s.canon.delete(key)
		return nil
	}
	return valid
}

// set stores records as o's entry and reports whether the stored state
// changed meaningfully. An empty records slice erases the entry and
// the canonical mapping for o's suffix, reporting whether anything was
// removed.
func (s *altServiceStore) set(o origin.Origin, records []altsvc.Record) bool {
	if len(records) == 0 {
		s.canon.removeFor(o)
		// No reason to touch recency when erasing.
		if _, ok := s.cache.Peek(o); !ok {
			return false
		}
		return s.cache.Delete(o)
	}

	changed := true
	if existing, ok := s.cache.Peek(o); ok && len(existing) == len(records) {
		changed = false
		now := s.clk.Now()
		for i, old := range existing {
			updated := records[i]
			if old.Service != updated.Service {
				changed = true
				break
			}
			// An expiration moved more than twice as far, or less
			// than half as far, into the future is significant.
			oldLeft := old.Expiration.Sub(now)
			newLeft := updated.Expiration.Sub(now)
			if newLeft > 2*oldLeft || 2*newLeft < oldLeft {
				changed = true
				break
			}
			if !old.SameVersions(updated) {
				changed = true
				break
			}
		}
	}

	s.cache.Put(o, slices.Clone(records))
	s.canon.record(o)
	return changed
}

// onExpired removes every record whose materialized service equals
// service, across all origins. Origins left with no records are erased
// along with their canonical mappings.
func (s *altServiceStore) onExpired(service altsvc.AltService) {
	for _, o := range s.cache.Keys() {
		records, ok := s.cache.Peek(o)
		if !ok {
			continue
		}
		kept := slices.DeleteFunc(slices.Clone(records), func(rec altsvc.Record) bool {
			return rec.Service.WithHost(o.Host) == service
		})
		if len(kept) == len(records) {
			continue
		}
		if len(kept) == 0 {
			s.canon.removeFor(o)
			s.cache.Delete(o)
			continue
		}
		s.cache.Replace(o, kept)
	}
}

// pruneExpired removes records of o whose expiration has passed,
// erasing the entry entirely when none remain. It returns the
// surviving records.
func (s *altServiceStore) pruneExpired(o origin.Origin, records []altsvc.Record, now time.Time) []altsvc.Record {
	live := slices.DeleteFunc(slices.Clone(records), func(rec altsvc.Record) bool {
		return rec.Expiration.Before(now)
	})
	if len(live) == len(records) {
		return records
	}
	if len(live) == 0 {
		s.cache.Delete(o)
		return nil
	}
	s.cache.Replace(o, live)
	return live
}

// degenerate reports whether a materialized service is the origin
// itself over HTTP/2, advertising nothing new.
func degenerate(service altsvc.AltService, o origin.Origin) bool {
	return service.Protocol == altsvc.HTTP2 && service.Host == o.Host && service.Port == o.Port
}
