package svcprops_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netprops/go-netprops/altsvc"
	"github.com/netprops/go-netprops/brokensvc"
	"github.com/netprops/go-netprops/origin"
	"github.com/netprops/go-netprops/svcprops"
)

func TestMergeRuntimeKeysRankAbovePersisted(t *testing.T) {
	storage := &memStorage{}
	p, _ := newProps(t, svcprops.WithStorage(storage))
	runtime1 := httpsOrigin("runtime1.example.org")
	runtime2 := httpsOrigin("runtime2.example.org")
	persisted1 := httpsOrigin("persisted1.example.org")
	persisted2 := httpsOrigin("persisted2.example.org")

	// Learned during this run, runtime2 most recently.
	p.SetSupportsSpdy(runtime1, true)
	p.SetSupportsSpdy(runtime2, true)

	p.LoadSpdyServers([]origin.Origin{persisted1, persisted2})

	// Everything is retrievable after the merge.
	for _, o := range []origin.Origin{runtime1, runtime2, persisted1, persisted2} {
		require.True(t, p.GetSupportsSpdy(o), o.String())
	}

	// Runtime keys keep their mutual order and rank above every
	// persisted key; persisted keys keep their stored order.
	require.NoError(t, p.Flush())
	require.Equal(t, []origin.Origin{runtime2, runtime1, persisted1, persisted2}, storage.snap.SpdyServers)
}

func TestMergePersistedValueWinsOnConflict(t *testing.T) {
	p, mck := newProps(t)
	o := httpsOrigin("both.example.org")
	runtimeExp := mck.Now().Add(time.Hour)
	persistedExp := mck.Now().Add(30 * time.Minute)

	p.SetQUICAlternativeService(o, altsvc.AltService{Protocol: altsvc.QUIC, Port: 443}, runtimeExp, []uint32{46})

	p.LoadAlternativeServices([]svcprops.AltServicesEntry{{
		Origin: o,
		Records: []altsvc.Record{
			altsvc.NewHTTP2Record(altsvc.AltService{Protocol: altsvc.HTTP2, Host: "alt.example.org", Port: 443}, persistedExp),
		},
	}})

	got := p.GetAlternativeServices(o)
	require.Len(t, got, 1)
	require.Equal(t, altsvc.HTTP2, got[0].Service.Protocol)
	require.Equal(t, "alt.example.org", got[0].Service.Host)
}

func TestMergeRuntimeOnlyKeySurvives(t *testing.T) {
	p, mck := newProps(t)
	runtimeOnly := httpsOrigin("runtime.example.org")
	service := altsvc.AltService{Protocol: altsvc.QUIC, Port: 443}
	exp := mck.Now().Add(time.Hour)

	p.SetQUICAlternativeService(runtimeOnly, service, exp, nil)
	p.LoadAlternativeServices([]svcprops.AltServicesEntry{{
		Origin:  httpsOrigin("persisted.example.org"),
		Records: []altsvc.Record{altsvc.NewQUICRecord(service, exp, nil)},
	}})

	got := p.GetAlternativeServices(runtimeOnly)
	require.Len(t, got, 1)
	require.Equal(t, quicService("runtime.example.org"), got[0].Service)
}

func TestLoadRebuildsCanonicalMappings(t *testing.T) {
	p, mck := newProps(t)
	a := httpsOrigin("foo.c.youtube.com")
	b := httpsOrigin("bar.c.youtube.com")
	exp := mck.Now().Add(time.Hour)

	p.LoadAlternativeServices([]svcprops.AltServicesEntry{{
		Origin:  a,
		Records: []altsvc.Record{altsvc.NewQUICRecord(altsvc.AltService{Protocol: altsvc.QUIC, Port: 443}, exp, nil)},
	}})

	got := p.GetAlternativeServices(b)
	require.Len(t, got, 1)
	require.Equal(t, quicService("bar.c.youtube.com"), got[0].Service)
}

func TestLoadDiscardsInvalidEntries(t *testing.T) {
	p, _ := newProps(t)

	p.LoadSpdyServers([]origin.Origin{{Scheme: "https", Port: 443}})
	p.LoadAlternativeServices([]svcprops.AltServicesEntry{{Origin: httpsOrigin("empty.example.org")}})
	require.Empty(t, p.GetAlternativeServices(httpsOrigin("empty.example.org")))
}

func TestLoadQuicServerInfoMerge(t *testing.T) {
	p, _ := newProps(t)
	runtimeID := svcprops.QuicServerID{Host: "runtime.example.org", Port: 443}
	persistedID := svcprops.QuicServerID{Host: "persisted.example.org", Port: 443}

	p.SetQuicServerInfo(runtimeID, []byte("runtime"))
	p.LoadQuicServerInfo([]svcprops.QuicConfigEntry{{Server: persistedID, Config: []byte("persisted")}})

	got, ok := p.GetQuicServerInfo(runtimeID)
	require.True(t, ok)
	require.Equal(t, []byte("runtime"), got)
	got, ok = p.GetQuicServerInfo(persistedID)
	require.True(t, ok)
	require.Equal(t, []byte("persisted"), got)
}

func TestLoadLastLocalAddressRuntimeWins(t *testing.T) {
	p, _ := newProps(t)
	runtimeAddr := net.ParseIP("192.0.2.1")
	persistedAddr := net.ParseIP("192.0.2.2")

	p.SetLastLocalAddressWhenQuicWorked(runtimeAddr)
	p.LoadLastLocalAddress(persistedAddr)
	require.True(t, p.WasLastLocalAddressWhenQuicWorked(runtimeAddr))

	p2, _ := newProps(t)
	p2.LoadLastLocalAddress(persistedAddr)
	require.True(t, p2.WasLastLocalAddressWhenQuicWorked(persistedAddr))
}

func TestNewLoadsStoredSnapshot(t *testing.T) {
	o := httpsOrigin("www.example.org")
	service := quicService("alt.example.org")
	storage := &memStorage{
		has: true,
		snap: svcprops.Snapshot{
			SpdyServers: []origin.Origin{o},
			Broken: []brokensvc.BrokenEntry{{
				Service: service,
				// The mock clock starts at the zero of the unix
				// epoch, so this ban is live at construction.
				Until: time.Unix(0, 0).Add(time.Hour),
			}},
			RecentlyBroken:  []brokensvc.RecentEntry{{Service: service, Count: 3}},
			LastQuicAddress: net.ParseIP("192.0.2.7"),
		},
	}

	p, _ := newProps(t, svcprops.WithStorage(storage))
	require.True(t, p.GetSupportsSpdy(o))
	require.True(t, p.IsBroken(service))
	require.True(t, p.WasRecentlyBroken(service))
	require.True(t, p.WasLastLocalAddressWhenQuicWorked(net.ParseIP("192.0.2.7")))
}

func TestWriteDebounce(t *testing.T) {
	storage := &memStorage{}
	p, mck := newProps(t, svcprops.WithStorage(storage))
	o := httpsOrigin("www.example.org")

	// A burst of mutations produces a single write.
	p.SetSupportsSpdy(o, true)
	p.SetNetworkStats(o, svcprops.NetworkStats{SRTT: time.Millisecond})
	p.SetHTTP11Required("legacy.example.org", 443)
	require.Equal(t, 0, storage.saves)

	mck.Add(time.Minute)
	require.Equal(t, 1, storage.saves)
	require.Equal(t, []origin.Origin{o}, storage.snap.SpdyServers)
	// HTTP/1.1 requirements are runtime-only.
	require.Len(t, storage.snap.NetworkStats, 1)

	// No further mutations, no further writes.
	mck.Add(time.Hour)
	require.Equal(t, 1, storage.saves)
}
