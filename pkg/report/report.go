// Package report summarizes a jitdump file as JSON.
package report

import (
	"encoding/json"
	"io"

	"github.com/maxgio92/perfjit/pkg/jitdump"
)

type Function struct {
	Name      string `json:"name"`
	Addr      uint64 `json:"addr"`
	Size      uint64 `json:"size"`
	CodeIndex uint64 `json:"code_index"`
	Lines     int    `json:"lines"`
}

type DumpReport struct {
	DumpPath  string         `json:"dump_path"`
	Pid       uint32         `json:"pid"`
	ElfMach   uint32         `json:"elf_mach"`
	Records   map[string]int `json:"records"`
	CodeBytes uint64         `json:"code_bytes"`
	Functions []Function     `json:"functions"`
}

type DumpReportOption func(*DumpReport)

func NewDumpReport(opts ...DumpReportOption) *DumpReport {
	report := &DumpReport{Records: make(map[string]int)}
	for _, opt := range opts {
		opt(report)
	}

	return report
}

func WithReportDumpPath(path string) DumpReportOption {
	return func(o *DumpReport) {
		o.DumpPath = path
	}
}

func WithReportHeader(h *jitdump.Header) DumpReportOption {
	return func(o *DumpReport) {
		if h == nil {
			return
		}
		o.Pid = h.Pid
		o.ElfMach = h.ElfMach
	}
}

// WithReportRecords accounts for records in file order. A debug-info
// record is attributed to the code-load record for the same address
// that follows it.
func WithReportRecords(records []jitdump.Record) DumpReportOption {
	return func(o *DumpReport) {
		pending := make(map[uint64]int)
		for _, rec := range records {
			o.Records[rec.RecordPrefix().Kind.String()]++

			switch r := rec.(type) {
			case *jitdump.DebugInfoRecord:
				pending[r.CodeAddr] = len(r.Entries)
			case *jitdump.CodeLoadRecord:
				o.CodeBytes += r.CodeSize
				o.Functions = append(o.Functions, Function{
					Name:      r.Name,
					Addr:      r.CodeAddr,
					Size:      r.CodeSize,
					CodeIndex: r.CodeIndex,
					Lines:     pending[r.CodeAddr],
				})
				delete(pending, r.CodeAddr)
			}
		}
	}
}

func (r *DumpReport) WriteReport(w io.Writer) error {
	encoder := json.NewEncoder(w)
	return encoder.Encode(r)
}
