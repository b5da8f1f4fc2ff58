package origin_test

import (
	"testing"

	"github.com/netprops/go-netprops/origin"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizes(t *testing.T) {
	o := origin.New("HTTPS", "Example.Org", 443)
	require.Equal(t, origin.Origin{Scheme: "https", Host: "example.org", Port: 443}, o)

	// Websocket schemes fold into their HTTP equivalents.
	require.Equal(t, "https", origin.New("wss", "example.org", 443).Scheme)
	require.Equal(t, "http", origin.New("ws", "example.org", 80).Scheme)
}

func TestStringRoundTrip(t *testing.T) {
	o := origin.New("https", "example.org", 8443)
	require.Equal(t, "https://example.org:8443", o.String())

	parsed, err := origin.Parse(o.String())
	require.NoError(t, err)
	require.Equal(t, o, parsed)
}

func TestParseDefaultPorts(t *testing.T) {
	o, err := origin.Parse("https://example.org")
	require.NoError(t, err)
	require.Equal(t, uint16(443), o.Port)

	o, err = origin.Parse("http://example.org")
	require.NoError(t, err)
	require.Equal(t, uint16(80), o.Port)
}

func TestParseInvalid(t *testing.T) {
	for _, s := range []string{"", "example.org", "://example.org", "https://"} {
		_, err := origin.Parse(s)
		require.Error(t, err, "input %q", s)
	}
}

func TestTextMarshaling(t *testing.T) {
	o := origin.New("https", "example.org", 443)
	text, err := o.MarshalText()
	require.NoError(t, err)

	var back origin.Origin
	require.NoError(t, back.UnmarshalText(text))
	require.Equal(t, o, back)
}
