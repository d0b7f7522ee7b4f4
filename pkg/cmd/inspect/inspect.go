package inspect

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/perfjit/pkg/jitdump"
	"github.com/maxgio92/perfjit/pkg/report"
)

const CmdName = "inspect"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               CmdName + " <dump file>",
		Short:             "Print the records of a jitdump file",
		DisableAutoGenTag: true,
		Args:              cobra.ExactArgs(1),
		RunE:              o.Run,
	}

	cmd.Flags().BoolVar(&o.disasm, "disasm", false, "Disassemble the code of code-load records")
	cmd.Flags().BoolVar(&o.demangle, "demangle", false, "Demangle C++ and Rust symbol names")
	cmd.Flags().BoolVar(&o.report, "report", false, "Print a JSON summary instead of the records")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, args []string) error {
	if err := o.SetupLogger(cmd, CmdName); err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "failed to open dump file")
	}
	defer f.Close()

	h, records, err := jitdump.ReadAll(f)
	if h == nil {
		return errors.Wrap(err, "failed to decode dump file")
	}
	if err != nil {
		// Print what could be decoded: a dump cut short by a crash is
		// still useful.
		o.Logger.Warn().Err(err).Int("records", len(records)).Msg("dump file is damaged")
	}

	out := cmd.OutOrStdout()
	if o.report {
		return report.NewDumpReport(
			report.WithReportDumpPath(args[0]),
			report.WithReportHeader(h),
			report.WithReportRecords(records),
		).WriteReport(out)
	}

	o.print(out, h, records)

	return err
}

func (o *Options) print(w io.Writer, h *jitdump.Header, records []jitdump.Record) {
	machine := elf.Machine(h.ElfMach)
	fmt.Fprintf(w, "pid %d, machine %s, version %d, timestamp %d\n", h.Pid, machine, h.Version, h.Timestamp)

	disasm := o.disasm
	for _, rec := range records {
		p := rec.RecordPrefix()
		switch r := rec.(type) {
		case *jitdump.CodeLoadRecord:
			fmt.Fprintf(w, "%-14s %16d %#018x %8d %s\n", p.Kind, r.CodeIndex, r.CodeAddr, r.CodeSize, o.symbol(r.Name))
			if !disasm {
				continue
			}
			if err := disassemble(w, machine, r.CodeAddr, r.Code); err != nil {
				o.Logger.Warn().Err(err).Msg("disassembly disabled")
				disasm = false
			}
		case *jitdump.DebugInfoRecord:
			fmt.Fprintf(w, "%-14s %16d %#018x\n", p.Kind, len(r.Entries), r.CodeAddr)
			for _, e := range r.Entries {
				fmt.Fprintf(w, "\t%#x\t%s:%d\n", e.Addr, e.File, e.Line)
			}
		default:
			fmt.Fprintf(w, "%-14s %16d bytes\n", p.Kind, p.TotalSize)
		}
	}
}

func (o *Options) symbol(name string) string {
	if !o.demangle {
		return name
	}
	return demangle.Filter(name)
}
