package settings

import "fmt"

const (
	CmdName = "perfjit"

	// JitLang tags the per-session directory name.
	JitLang = "llvm-IR"

	// DumpDirEnv overrides the base directory of the jitdump tree.
	DumpDirEnv = "JITDUMPDIR"

	// DebugDir is created below the base directory, as perf expects.
	DebugDir = ".debug/jit"

	// DebugAddrOffset accounts for the ELF header perf prepends to the
	// function image it re-creates from a code-load record.
	DebugAddrOffset = 0x40
)

var (
	SocketPath = fmt.Sprintf("/tmp/%s.sock", CmdName)
	ReportFile = fmt.Sprintf("%s-report.json", CmdName)
)
