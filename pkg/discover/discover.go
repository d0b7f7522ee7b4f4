// Package discover finds jitdump marker mappings in a process, the way
// perf associates a jitdump file with the process that wrote it.
package discover

import (
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
)

var dumpFileRe = regexp.MustCompile(`^jit-(\d+)\.dump$`)

// Mapping is one file-backed line of /proc/<pid>/maps.
type Mapping struct {
	Start uint64
	End   uint64
	Exec  bool
	Path  string
}

// Marker is a mapping of a jitdump file.
type Marker struct {
	Mapping

	// Pid is the process id encoded in the file name.
	Pid int
}

// Mappings returns the file-backed mappings of pid.
func Mappings(pid int) ([]Mapping, error) {
	proc, err := procfs.NewProc(pid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open process %d", pid)
	}
	maps, err := proc.ProcMaps()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read maps of process %d", pid)
	}

	mappings := make([]Mapping, 0, len(maps))
	for _, m := range maps {
		if m.Pathname == "" || m.Inode == 0 {
			continue
		}
		mappings = append(mappings, Mapping{
			Start: uint64(m.StartAddr),
			End:   uint64(m.EndAddr),
			Exec:  m.Perms != nil && m.Perms.Execute,
			Path:  m.Pathname,
		})
	}

	return mappings, nil
}

// Find returns the executable mappings of pid whose file is named
// jit-<n>.dump. perf only honours files whose <n> is the pid; Find
// reports the others too and leaves the check to the caller.
func Find(pid int) ([]Marker, error) {
	mappings, err := Mappings(pid)
	if err != nil {
		return nil, err
	}

	return Filter(mappings), nil
}

// Filter selects the jitdump markers among mappings.
func Filter(mappings []Mapping) []Marker {
	var markers []Marker
	for _, m := range mappings {
		if !m.Exec {
			continue
		}
		match := dumpFileRe.FindStringSubmatch(filepath.Base(m.Path))
		if match == nil {
			continue
		}
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		markers = append(markers, Marker{Mapping: m, Pid: n})
	}

	return markers
}

// Scan finds markers in every visible process. Processes that exit or
// cannot be read meanwhile are skipped.
func Scan() (map[int][]Marker, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list processes")
	}

	found := make(map[int][]Marker)
	for _, p := range procs {
		markers, err := Find(p.PID)
		if err != nil || len(markers) == 0 {
			continue
		}
		found[p.PID] = markers
	}

	return found, nil
}
