package emit

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/perfjit/internal/output"
	"github.com/maxgio92/perfjit/internal/settings"
	"github.com/maxgio92/perfjit/internal/utils"
	"github.com/maxgio92/perfjit/pkg/healthcheck"
	"github.com/maxgio92/perfjit/pkg/jitdump"
	"github.com/maxgio92/perfjit/pkg/jithost"
	"github.com/maxgio92/perfjit/pkg/objfile"
	"github.com/maxgio92/perfjit/pkg/report"
	"github.com/maxgio92/perfjit/pkg/session"
)

const CmdName = "emit"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   CmdName,
		Short: "Replay the functions of an ELF object as JIT code",
		Long: fmt.Sprintf(`
%s copies the functions of an ELF object into executable memory, as a JIT would,
and records each of them in a perf jitdump file for this process.
Record with "perf record -k mono" while it holds the code, then "perf inject --jit".
`, CmdName),
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		RunE:              o.Run,
	}

	cmd.Flags().StringVarP(&o.path, "path", "p", "", "Path to the ELF object whose functions are emitted")
	cmd.Flags().StringVar(&o.symExcludePattern, "exclude", "", "Regex pattern to exclude function symbol names")
	cmd.Flags().StringVar(&o.symIncludePattern, "include", "", "Regex pattern to include function symbol names")

	cmd.Flags().StringVar(&o.dumpDir, "dump-dir", "", fmt.Sprintf("Base directory of the jitdump tree (default $%s, then $HOME)", settings.DumpDirEnv))
	cmd.Flags().IntVar(&o.workers, "workers", runtime.NumCPU(), "Number of functions emitted concurrently")
	cmd.Flags().BoolVar(&o.hold, "hold", false, "Keep the code mapped until interrupted, and report readiness on the socket")
	cmd.Flags().StringVarP(&o.socketPath, "socket-path", "s", settings.SocketPath, fmt.Sprintf("Path to the %s socket file", settings.CmdName))
	cmd.Flags().BoolVar(&o.report, "report", false, fmt.Sprintf("Generate report (as %s)", settings.ReportFile))
	cmd.Flags().BoolVar(&o.status, "status", false, "Periodically print a status of the emission")

	cmd.MarkFlagRequired("path")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.SetupLogger(cmd, CmdName); err != nil {
		return err
	}
	ctx := o.Context()

	obj, err := objfile.Open(o.path,
		objfile.WithSymPatternInclude(o.symIncludePattern),
		objfile.WithSymPatternExclude(o.symExcludePattern),
		objfile.WithLogger(o.Logger),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", o.path)
	}
	defer obj.Close()

	sess, err := session.Open(
		session.WithBaseDir(o.dumpDir),
		session.WithLogger(o.Logger),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	var hc *healthcheck.Server
	if o.hold {
		hc = healthcheck.NewServer(o.socketPath, o.Logger)
		if err := hc.Listen(ctx); err != nil {
			return err
		}
		defer hc.Shutdown()
	}

	loader := jithost.NewLoader(sess,
		jithost.WithWorkers(o.workers),
		jithost.WithLogger(o.Logger),
	)
	defer func() {
		if err := loader.Unload(); err != nil {
			o.Logger.Warn().Err(err).Msg("failed to unload code")
		}
	}()

	statusCtx, stopStatus := context.WithCancel(ctx)
	if o.status {
		go output.StatusBar(statusCtx, time.Second, func() {
			done, total := loader.Progress()
			output.PrintRight(os.Stderr, output.PrettyLoadStatus(utils.Percent(done, total), loader.Rate()))
		})
	}
	err = loader.Load(ctx, obj)
	stopStatus()
	if err != nil {
		return errors.Wrap(err, "failed to emit functions")
	}

	o.Logger.Info().
		Uint64("emitted", sess.Emitted()).
		Int("functions", len(obj.Functions())).
		Str("path", sess.Path()).
		Msg("functions emitted")
	fmt.Fprintln(cmd.OutOrStdout(), sess.Path())

	if o.report {
		if err := o.writeReport(sess.Path()); err != nil {
			return err
		}
	}

	if o.hold {
		hc.MarkReady(sess.Path())
		o.Logger.Info().Msg("holding code until interrupted")
		<-ctx.Done()
	}

	return nil
}

func (o *Options) writeReport(dumpPath string) error {
	f, err := os.Open(dumpPath)
	if err != nil {
		return errors.Wrap(err, "failed to open dump file")
	}
	defer f.Close()

	h, records, err := jitdump.ReadAll(f)
	if err != nil {
		return errors.Wrap(err, "failed to decode dump file")
	}

	out, err := os.Create(settings.ReportFile)
	if err != nil {
		return errors.Wrap(err, "failed to create report file")
	}
	defer out.Close()

	return report.NewDumpReport(
		report.WithReportDumpPath(dumpPath),
		report.WithReportHeader(h),
		report.WithReportRecords(records),
	).WriteReport(out)
}
