package svcprops

import (
	"strings"

	"github.com/netprops/go-netprops/origin"
)

const canonicalScheme = "https"

// DefaultCanonicalSuffixes is the default list of domain suffixes
// whose hosts share learned alternative-service data. Large content
// networks serve many hostnames under one suffix from the same
// endpoints, so a fact learned for one hostname is a good prediction
// for its siblings.
var DefaultCanonicalSuffixes = []string{
	".ggpht.com",
	".c.youtube.com",
	".googlevideo.com",
	".googleusercontent.com",
	".gvt1.com",
}

// canonicalIndex maps a synthetic (https, suffix, port) key to the
// concrete origin whose cache entry serves as fallback for other
// origins with the same suffix and port. Only https origins
// participate.
type canonicalIndex struct {
	suffixes []string
	mappings map[origin.Origin]origin.Origin
}

func newCanonicalIndex(suffixes []string) *canonicalIndex {
	lower := make([]string, len(suffixes))
	for i, suffix := range suffixes {
		lower[i] = strings.ToLower(suffix)
	}
	return &canonicalIndex{
		suffixes: lower,
		mappings: make(map[origin.Origin]origin.Origin),
	}
}

// matchSuffix returns the first configured suffix, in list order, that
// host ends with. Matching is case-insensitive.
func (ci *canonicalIndex) matchSuffix(host string) (string, bool) {
	host = strings.ToLower(host)
	for _, suffix := range ci.suffixes {
		if strings.HasSuffix(host, suffix) {
			return suffix, true
		}
	}
	return "", false
}

// syntheticKey returns the (https, suffix, port) key for o. The second
// return is false if o is not https or its host is on no configured
// suffix.
func (ci *canonicalIndex) syntheticKey(o origin.Origin) (origin.Origin, bool) {
	if o.Scheme != canonicalScheme {
		return origin.Origin{}, false
	}
	suffix, ok := ci.matchSuffix(o.Host)
	if !ok {
		return origin.Origin{}, false
	}
	return origin.Origin{Scheme: canonicalScheme, Host: suffix, Port: o.Port}, true
}

// lookup returns the concrete origin serving as fallback for o.
func (ci *canonicalIndex) lookup(o origin.Origin) (key, target origin.Origin, ok bool) {
	key, ok = ci.syntheticKey(o)
	if !ok {
		return origin.Origin{}, origin.Origin{}, false
	}
	target, ok = ci.mappings[key]
	if !ok {
		return origin.Origin{}, origin.Origin{}, false
	}
	return key, target, true
}

// record makes o the fallback for its own suffix and port.
func (ci *canonicalIndex) record(o origin.Origin) {
	if key, ok := ci.syntheticKey(o); ok {
		ci.mappings[key] = o
	}
}

// get returns the mapping stored under the given synthetic key.
func (ci *canonicalIndex) get(key origin.Origin) (origin.Origin, bool) {
	target, ok := ci.mappings[key]
	return target, ok
}

// set stores a mapping under an already-computed synthetic key.
func (ci *canonicalIndex) set(key, target origin.Origin) {
	ci.mappings[key] = target
}

// delete removes the mapping stored under the given synthetic key.
func (ci *canonicalIndex) delete(key origin.Origin) {
	delete(ci.mappings, key)
}

// removeFor removes the mapping for o's suffix and port, if any.
func (ci *canonicalIndex) removeFor(o origin.Origin) {
	if key, ok := ci.syntheticKey(o); ok {
		delete(ci.mappings, key)
	}
}

func (ci *canonicalIndex) clear() {
	clear(ci.mappings)
}
