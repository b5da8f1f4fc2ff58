// Package origin identifies an HTTP(S) service by scheme, host and
// port.
package origin

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Origin is a scheme/host/port triple. It is a comparable value type
// and is used directly as a map key.
type Origin struct {
	Scheme string
	Host   string
	Port   uint16
}

// New creates a normalized Origin. Scheme and host are lowercased, and
// the websocket schemes are folded into their HTTP equivalents, since
// connection properties learned over one apply to the other.
func New(scheme, host string, port uint16) Origin {
	scheme = strings.ToLower(scheme)
	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	}
	return Origin{
		Scheme: scheme,
		Host:   strings.ToLower(host),
		Port:   port,
	}
}

// Parse parses a canonical "scheme://host:port" string as produced by
// String. The port may be omitted for http and https, in which case
// the scheme default is used.
func Parse(s string) (Origin, error) {
	scheme, rest, found := strings.Cut(s, "://")
	if !found || scheme == "" || rest == "" {
		return Origin{}, fmt.Errorf("invalid origin %q", s)
	}
	host, portStr, err := net.SplitHostPort(rest)
	if err != nil {
		switch scheme {
		case "http", "ws":
			return New(scheme, rest, 80), nil
		case "https", "wss":
			return New(scheme, rest, 443), nil
		}
		return Origin{}, fmt.Errorf("invalid origin %q: %s", s, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Origin{}, fmt.Errorf("invalid origin port %q: %s", s, err)
	}
	return New(scheme, host, uint16(port)), nil
}

// String returns the canonical serialization, "scheme://host:port".
func (o Origin) String() string {
	return o.Scheme + "://" + net.JoinHostPort(o.Host, strconv.Itoa(int(o.Port)))
}

// IsZero reports whether o is the zero Origin.
func (o Origin) IsZero() bool {
	return o == Origin{}
}

// MarshalText implements encoding.TextMarshaler using the canonical
// string form.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Origin) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}
