package propsdb_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/brokensvc"
	"github.com/netprops/go-netprops/origin"
	"github.com/netprops/go-netprops/propsdb"
	"github.com/netprops/go-netprops/svcprops"
)

func TestLoadEmpty(t *testing.T) {
	db, err := propsdb.Open(filepath.Join(t.TempDir(), "props"))
	require.NoError(t, err)
	defer db.Close()

	_, ok, err := db.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "props")
	db, err := propsdb.Open(path)
	require.NoError(t, err)

	o := origin.New("https", "example.org", 443)
	service := altsvc.AltService{Protocol: altsvc.QUIC, Host: "alt.example.org", Port: 443}
	exp := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	snap := svcprops.Snapshot{
		SpdyServers: []origin.Origin{o},
		AltServices: []svcprops.AltServicesEntry{{
			Origin:  o,
			Records: []altsvc.Record{altsvc.NewQUICRecord(service, exp, []uint32{46})},
		}},
		NetworkStats: []svcprops.NetworkStatsEntry{{
			Origin: o,
			Stats:  svcprops.NetworkStats{SRTT: 40 * time.Millisecond, BandwidthEstimate: 1 << 20},
		}},
		QuicConfigs: []svcprops.QuicConfigEntry{{
			Server: svcprops.QuicServerID{Host: "example.org", Port: 443},
			Config: []byte("server config"),
		}},
		Broken: []brokensvc.BrokenEntry{{
			Service: service,
			Until:   exp,
		}},
		RecentlyBroken: []brokensvc.RecentEntry{{Service: service, Count: 2}},
	}
	require.NoError(t, db.Save(snap))
	require.NoError(t, db.Close())

	// Reopen and read back.
	db, err = propsdb.Open(path)
	require.NoError(t, err)
	defer db.Close()

	loaded, ok, err := db.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, snap, loaded)
}

func TestSaveReplaces(t *testing.T) {
	db, err := propsdb.Open(filepath.Join(t.TempDir(), "props"))
	require.NoError(t, err)
	defer db.Close()

	o := origin.New("https", "example.org", 443)
	require.NoError(t, db.Save(svcprops.Snapshot{SpdyServers: []origin.Origin{o}}))
	require.NoError(t, db.Save(svcprops.Snapshot{}))

	loaded, ok, err := db.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, loaded.SpdyServers)
}
