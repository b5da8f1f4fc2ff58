// Package brokensvc tracks alternative services that recently failed
// and are temporarily quarantined from use.
//
// A broken service is banned for a duration that doubles with each
// consecutive failure, starting at five minutes and capped at two
// days. Confirm resets the history after a successful use. When a ban
// expires naturally the tracker notifies its delegate exactly once, so
// the owning cache can prune entries that only existed because of the
// ban. Confirm never triggers that notification.
//
// A Tracker is not safe for concurrent use; it is owned by the same
// goroutine that owns the properties cache it serves.
package brokensvc

import (
	"time"

	"github.com/benbjohnson/clock"
	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"

	"github.com/netprops/go-netprops/altsvc"
)

var log = logging.Logger("brokensvc")

const (
	// initialDelay is the ban duration after the first observed
	// failure of a service with no recent history.
	initialDelay = 5 * time.Minute
	// maxDelay bounds the exponential backoff.
	maxDelay = 48 * time.Hour
	// maxBackoffShift bounds the doubling exponent so the shift
	// cannot overflow before maxDelay applies.
	maxBackoffShift = 10

	// DefaultMaxRecentEntries bounds how many services keep failure
	// history. Oldest history is evicted first.
	DefaultMaxRecentEntries = 200
)

// Delegate receives a notification each time a ban expires naturally.
type Delegate interface {
	OnExpiredBrokenService(altsvc.AltService)
}

// BrokenEntry is one currently banned service and the end of its ban,
// used for persistence snapshots.
type BrokenEntry struct {
	Service altsvc.AltService `json:"service"`
	Until   time.Time         `json:"until"`
}

// RecentEntry is the failure count retained for a service, used for
// persistence snapshots. Entries are ordered most recently touched
// first.
type RecentEntry struct {
	Service altsvc.AltService `json:"service"`
	Count   int               `json:"count"`
}

// Tracker decides and enforces quarantine bans.
type Tracker struct {
	delegate Delegate
	clk      clock.Clock

	brokenUntil      map[altsvc.AltService]time.Time
	onDefaultNetwork map[altsvc.AltService]struct{}
	recent           *lru.Cache[altsvc.AltService, int]

	timer   *clock.Timer
	timerAt time.Time
}

// New creates a tracker that notifies delegate on natural ban expiry.
// A nil delegate disables notifications. maxRecent bounds the failure
// history; values < 1 use DefaultMaxRecentEntries.
func New(delegate Delegate, clk clock.Clock, maxRecent int) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	if maxRecent < 1 {
		maxRecent = DefaultMaxRecentEntries
	}
	// Error is only possible with a non-positive size.
	recent, _ := lru.New[altsvc.AltService, int](maxRecent)
	return &Tracker{
		delegate:         delegate,
		clk:              clk,
		brokenUntil:      make(map[altsvc.AltService]time.Time),
		onDefaultNetwork: make(map[altsvc.AltService]struct{}),
		recent:           recent,
	}
}

// MarkBroken bans service for a duration based on its failure history
// and records the failure.
func (t *Tracker) MarkBroken(service altsvc.AltService) {
	t.markBroken(service)
}

// MarkBrokenUntilDefaultNetworkChanges bans service like MarkBroken,
// but the ban is additionally lifted if the default network changes
// before it expires.
func (t *Tracker) MarkBrokenUntilDefaultNetworkChanges(service altsvc.AltService) {
	t.markBroken(service)
	t.onDefaultNetwork[service] = struct{}{}
}

func (t *Tracker) markBroken(service altsvc.AltService) {
	count, _ := t.recent.Get(service)
	shift := count
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	delay := initialDelay << shift
	if delay > maxDelay {
		delay = maxDelay
	}
	until := t.clk.Now().Add(delay)
	t.brokenUntil[service] = until
	t.recent.Add(service, count+1)
	log.Debugw("marked broken", "service", service, "until", until, "failures", count+1)
	t.reschedule()
}

// MarkRecentlyBroken records that service failed at some point without
// banning it now. It seeds the failure history so the next MarkBroken
// applies a longer ban.
func (t *Tracker) MarkRecentlyBroken(service altsvc.AltService) {
	if !t.recent.Contains(service) {
		t.recent.Add(service, 1)
	}
}

// IsBroken reports whether service is currently banned.
func (t *Tracker) IsBroken(service altsvc.AltService) bool {
	until, ok := t.brokenUntil[service]
	return ok && t.clk.Now().Before(until)
}

// WasRecentlyBroken reports whether service has failure history or is
// currently banned.
func (t *Tracker) WasRecentlyBroken(service altsvc.AltService) bool {
	return t.recent.Contains(service) || t.IsBroken(service)
}

// Confirm clears the ban and failure history for service after a
// successful use. It never triggers the expiry notification.
func (t *Tracker) Confirm(service altsvc.AltService) {
	_, wasBroken := t.brokenUntil[service]
	delete(t.brokenUntil, service)
	delete(t.onDefaultNetwork, service)
	t.recent.Remove(service)
	if wasBroken {
		t.reschedule()
	}
}

// OnDefaultNetworkChanged lifts every ban that was scoped to the
// previous default network, along with its failure history, and
// reports whether anything changed. No expiry notifications fire.
func (t *Tracker) OnDefaultNetworkChanged() bool {
	if len(t.onDefaultNetwork) == 0 {
		return false
	}
	for service := range t.onDefaultNetwork {
		delete(t.brokenUntil, service)
		t.recent.Remove(service)
	}
	clear(t.onDefaultNetwork)
	t.reschedule()
	return true
}

// Restore bulk-loads persisted state. Live state wins: a service that
// is already banned or already has failure history keeps its current
// values. Restored bans whose expiration has already passed expire,
// with notification, on the next timer fire.
func (t *Tracker) Restore(broken []BrokenEntry, recent []RecentEntry) {
	// Insert in reverse so the first listed entry ends up most
	// recently used in the history.
	for i := len(recent) - 1; i >= 0; i-- {
		entry := recent[i]
		if entry.Count < 1 {
			log.Debugw("discarding invalid restored failure count", "service", entry.Service, "count", entry.Count)
			continue
		}
		if !t.recent.Contains(entry.Service) {
			t.recent.Add(entry.Service, entry.Count)
		}
	}
	for _, entry := range broken {
		if _, ok := t.brokenUntil[entry.Service]; ok {
			continue
		}
		t.brokenUntil[entry.Service] = entry.Until
		if !t.recent.Contains(entry.Service) {
			t.recent.Add(entry.Service, 1)
		}
	}
	t.reschedule()
}

// Snapshot returns the current bans and failure history for
// persistence. Recent entries are ordered most recently touched first.
func (t *Tracker) Snapshot() ([]BrokenEntry, []RecentEntry) {
	var broken []BrokenEntry
	for service, until := range t.brokenUntil {
		// Bans lifted by a network change are not meaningful in a
		// later process.
		if _, onNetwork := t.onDefaultNetwork[service]; onNetwork {
			continue
		}
		broken = append(broken, BrokenEntry{Service: service, Until: until})
	}

	keys := t.recent.Keys() // oldest first
	recent := make([]RecentEntry, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		count, ok := t.recent.Peek(keys[i])
		if !ok {
			continue
		}
		recent = append(recent, RecentEntry{Service: keys[i], Count: count})
	}
	return broken, recent
}

// Clear drops all bans, history and pending timers.
func (t *Tracker) Clear() {
	clear(t.brokenUntil)
	clear(t.onDefaultNetwork)
	t.recent.Purge()
	t.stopTimer()
}

// Close cancels any pending expiry timer. The tracker must not be used
// after Close.
func (t *Tracker) Close() {
	t.stopTimer()
}

func (t *Tracker) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.timerAt = time.Time{}
}

// reschedule points the single expiry timer at the earliest pending
// ban expiration.
func (t *Tracker) reschedule() {
	var earliest time.Time
	for _, until := range t.brokenUntil {
		if earliest.IsZero() || until.Before(earliest) {
			earliest = until
		}
	}
	if earliest.IsZero() {
		t.stopTimer()
		return
	}
	if t.timer != nil && t.timerAt.Equal(earliest) {
		return
	}
	t.stopTimer()
	delay := earliest.Sub(t.clk.Now())
	if delay < 0 {
		delay = 0
	}
	t.timerAt = earliest
	t.timer = t.clk.AfterFunc(delay, t.expireDue)
}

// expireDue removes every ban whose expiration has passed, notifying
// the delegate once per expired service, then rearms the timer.
func (t *Tracker) expireDue() {
	t.timer = nil
	t.timerAt = time.Time{}
	now := t.clk.Now()

	var expired []altsvc.AltService
	for service, until := range t.brokenUntil {
		if !until.After(now) {
			expired = append(expired, service)
		}
	}
	for _, service := range expired {
		delete(t.brokenUntil, service)
		delete(t.onDefaultNetwork, service)
	}
	// Rearm before notifying: the delegate may re-enter the tracker.
	t.reschedule()
	if t.delegate != nil {
		for _, service := range expired {
			t.delegate.OnExpiredBrokenService(service)
		}
	}
}
