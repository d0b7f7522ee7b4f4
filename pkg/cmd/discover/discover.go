package discover

import (
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/maxgio92/perfjit/pkg/discover"
)

const CmdName = "discover"

func NewCommand(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:               CmdName,
		Short:             "List the processes that expose a jitdump marker",
		DisableAutoGenTag: true,
		Args:              cobra.NoArgs,
		RunE:              o.Run,
	}

	cmd.Flags().IntVar(&o.pid, "pid", -1, "Only look at the process with this PID")

	return cmd
}

func (o *Options) Run(cmd *cobra.Command, _ []string) error {
	if err := o.SetupLogger(cmd, CmdName); err != nil {
		return err
	}

	found := make(map[int][]discover.Marker)
	if o.pid > 0 {
		markers, err := discover.Find(o.pid)
		if err != nil {
			return errors.Wrapf(err, "failed to inspect process %d", o.pid)
		}
		if len(markers) > 0 {
			found[o.pid] = markers
		}
	} else {
		var err error
		if found, err = discover.Scan(); err != nil {
			return err
		}
	}
	o.Logger.Debug().Int("processes", len(found)).Msg("markers found")

	printMarkers(cmd.OutOrStdout(), found)

	return nil
}

func printMarkers(w io.Writer, found map[int][]discover.Marker) {
	pids := make([]int, 0, len(found))
	for pid := range found {
		pids = append(pids, pid)
	}
	sort.Ints(pids)

	for _, pid := range pids {
		for _, m := range found[pid] {
			note := ""
			if m.Pid != pid {
				// perf ignores a marker that names another process.
				note = " (foreign)"
			}
			fmt.Fprintf(w, "%d\t%#x-%#x\t%s%s\n", pid, m.Start, m.End, m.Path, note)
		}
	}
}
