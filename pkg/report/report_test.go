package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maxgio92/perfjit/pkg/jitdump"
	"github.com/maxgio92/perfjit/pkg/report"
)

func testRecords() []jitdump.Record {
	return []jitdump.Record{
		&jitdump.DebugInfoRecord{
			Prefix:   jitdump.Prefix{Kind: jitdump.KindDebugInfo},
			CodeAddr: 0x1000,
			Entries:  []jitdump.DebugEntry{{Addr: 0x1040, Line: 1, File: "a.c"}, {Addr: 0x1044, Line: 2, File: "a.c"}},
		},
		&jitdump.CodeLoadRecord{
			Prefix:   jitdump.Prefix{Kind: jitdump.KindCodeLoad},
			CodeLoad: jitdump.CodeLoad{CodeAddr: 0x1000, CodeSize: 64, CodeIndex: 1},
			Name:     "foo",
		},
		&jitdump.CodeLoadRecord{
			Prefix:   jitdump.Prefix{Kind: jitdump.KindCodeLoad},
			CodeLoad: jitdump.CodeLoad{CodeAddr: 0x2000, CodeSize: 16, CodeIndex: 2},
			Name:     "bar",
		},
		&jitdump.RawRecord{Prefix: jitdump.Prefix{Kind: jitdump.KindCodeClose}},
	}
}

func TestNewReportWithOptions(t *testing.T) {
	r := report.NewDumpReport(
		report.WithReportDumpPath("/tmp/jit-7.dump"),
		report.WithReportHeader(&jitdump.Header{Pid: 7, ElfMach: 62}),
		report.WithReportRecords(testRecords()),
	)

	require.Equal(t, "/tmp/jit-7.dump", r.DumpPath)
	require.Equal(t, uint32(7), r.Pid)
	require.Equal(t, uint32(62), r.ElfMach)
	require.Equal(t, map[string]int{"DEBUG_INFO": 1, "CODE_LOAD": 2, "CODE_CLOSE": 1}, r.Records)
	require.Equal(t, uint64(80), r.CodeBytes)
	require.Equal(t, []report.Function{
		{Name: "foo", Addr: 0x1000, Size: 64, CodeIndex: 1, Lines: 2},
		{Name: "bar", Addr: 0x2000, Size: 16, CodeIndex: 2},
	}, r.Functions)
}

func TestWriteReportJSONOutput(t *testing.T) {
	r := report.NewDumpReport(
		report.WithReportHeader(&jitdump.Header{Pid: 7}),
		report.WithReportRecords(testRecords()),
	)

	var buf bytes.Buffer
	require.NoError(t, r.WriteReport(&buf))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Equal(t, float64(7), parsed["pid"])
	require.Len(t, parsed["functions"], 2)

	output := buf.String()
	require.True(t, strings.Contains(output, "code_index"))
	require.True(t, strings.Contains(output, "dump_path"))
}
