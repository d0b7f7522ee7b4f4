package discover_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/perfjit/pkg/discover"
)

func TestFilter(t *testing.T) {
	mappings := []discover.Mapping{
		{Start: 0x1000, End: 0x2000, Exec: true, Path: "/usr/bin/host"},
		{Start: 0x3000, End: 0x4000, Exec: true, Path: "/home/u/.debug/jit/llvm-IR-jit-20240307-1/jit-42.dump"},
		{Start: 0x5000, End: 0x6000, Exec: false, Path: "/tmp/jit-42.dump"},
		{Start: 0x7000, End: 0x8000, Exec: true, Path: "/tmp/jit-abc.dump"},
		{Start: 0x9000, End: 0xa000, Exec: true, Path: "/tmp/perf-42.map"},
	}

	markers := discover.Filter(mappings)
	require.Len(t, markers, 1)
	require.Equal(t, 42, markers[0].Pid)
	require.Equal(t, uint64(0x3000), markers[0].Start)
}

func TestMappings_Self(t *testing.T) {
	mappings, err := discover.Mappings(os.Getpid())
	require.NoError(t, err)
	require.NotEmpty(t, mappings)

	exe, err := os.Executable()
	require.NoError(t, err)

	found := false
	for _, m := range mappings {
		if m.Path == exe && m.Exec {
			found = true
		}
	}
	require.True(t, found, "test binary text mapping not found")
}

func TestMappings_NoProcess(t *testing.T) {
	_, err := discover.Mappings(-1)
	require.Error(t, err)
}

func TestScan(t *testing.T) {
	found, err := discover.Scan()
	require.NoError(t, err)
	for pid, markers := range found {
		require.NotEmpty(t, markers, "pid %d", pid)
	}
}
