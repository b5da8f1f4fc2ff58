package svcprops_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netprops/go-netprops/svcprops"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netprops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeConfig(t, `
canonical_suffixes:
  - .cdn.example
  - .media.example
max_server_entries: 100
max_quic_configs: 10
max_recently_broken: 50
write_delay: 30s
`)
	cfg, err := svcprops.LoadFileConfig(path)
	require.NoError(t, err)
	require.Equal(t, []string{".cdn.example", ".media.example"}, cfg.CanonicalSuffixes)
	require.Equal(t, 100, cfg.MaxServerEntries)
	require.Equal(t, 10, cfg.MaxQuicConfigs)
	require.Equal(t, 50, cfg.MaxRecentlyBroken)
	require.Equal(t, 30*time.Second, cfg.WriteDelay)

	// The loaded settings construct a working cache.
	p, err := svcprops.New(cfg.Options()...)
	require.NoError(t, err)
	defer p.Close()
	require.Equal(t, 10, p.MaxQuicConfigsStored())
}

func TestLoadFileConfigDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")
	cfg, err := svcprops.LoadFileConfig(path)
	require.NoError(t, err)
	require.Empty(t, cfg.Options())
}

func TestLoadFileConfigErrors(t *testing.T) {
	_, err := svcprops.LoadFileConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = svcprops.LoadFileConfig(writeConfig(t, "max_server_entries: [not, a, number]\n"))
	require.Error(t, err)

	_, err = svcprops.LoadFileConfig(writeConfig(t, "write_delay: soon\n"))
	require.Error(t, err)
}

func TestConfiguredSuffixesApply(t *testing.T) {
	p, _ := newProps(t, svcprops.WithCanonicalSuffixes([]string{".cdn.example"}))
	a := svcprops.QuicServerID{Host: "foo.cdn.example", Port: 443}

	// The default suffixes are replaced.
	p.SetQuicServerInfo(a, []byte("config"))
	_, ok := p.GetQuicServerInfo(svcprops.QuicServerID{Host: "bar.cdn.example", Port: 443})
	require.True(t, ok)
	_, ok = p.GetQuicServerInfo(svcprops.QuicServerID{Host: "bar.googlevideo.com", Port: 443})
	require.False(t, ok)
}

func TestOptionValidation(t *testing.T) {
	_, err := svcprops.New(svcprops.WithMaxServerEntries(0))
	require.Error(t, err)
	_, err = svcprops.New(svcprops.WithMaxQuicEntries(-1))
	require.Error(t, err)
	_, err = svcprops.New(svcprops.WithMaxRecentlyBroken(0))
	require.Error(t, err)
	_, err = svcprops.New(svcprops.WithWriteDelay(-time.Second))
	require.Error(t, err)
}
