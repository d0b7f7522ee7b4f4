package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"github.com/stretchr/testify/require"

	"github.com/maxgio92/perfjit/pkg/healthcheck"
	"github.com/maxgio92/perfjit/pkg/jitdump"
	"github.com/maxgio92/perfjit/pkg/objfile"
	"github.com/maxgio92/perfjit/pkg/session"
)

const testInclude = `^github\.com/maxgio92/perfjit/pkg/cmd\.NewCommand$`

func newTestCommand(ctx context.Context) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	cmd := NewCommand(NewOptions(WithContext(ctx), WithLogger(log.New(io.Discard))))

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	return cmd, &stdout, &stderr
}

func writeTestDump(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(jitdump.EncodeHeader(jitdump.Header{
		Magic:   jitdump.Magic,
		Version: jitdump.Version,
		ElfMach: 62,
		Pid:     4242,
	}))

	dbg, err := jitdump.EncodeDebugInfo(1, 0x1000, []jitdump.LineEntry{
		{Addr: 0x1000, File: "/src/foo.c", Line: 7},
	}, 0x40)
	require.NoError(t, err)
	buf.Write(dbg)

	code := []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}
	load, err := jitdump.EncodeCodeLoad(2, jitdump.CodeLoad{
		Pid: 4242, Tid: 4242, CodeAddr: 0x1000, CodeSize: uint64(len(code)), CodeIndex: 1,
	}, "_ZN3foo3barEv", code)
	require.NoError(t, err)
	buf.Write(load)

	path := filepath.Join(t.TempDir(), "jit-4242.dump")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path
}

// requireEmitSupport skips when this process can neither read its own
// functions nor keep an active session.
func requireEmitSupport(t *testing.T) string {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	obj, err := objfile.Open(exe, objfile.WithSymPatternInclude(testInclude))
	if err != nil {
		t.Skipf("cannot read functions of the test binary: %v", err)
	}
	obj.Close()

	s, err := session.Open(session.WithBaseDir(t.TempDir()))
	if err != nil {
		t.Skipf("jitdump not supported here: %v", err)
	}
	s.Close()

	return exe
}

func TestNewCommand(t *testing.T) {
	cmd := NewCommand(NewOptions(WithContext(context.Background()), WithLogger(log.New(io.Discard))))

	require.Equal(t, "perfjit", cmd.Name())
	require.Contains(t, cmd.Short, "jitdump")
	require.NotEmpty(t, cmd.Long)
	require.True(t, cmd.DisableAutoGenTag)

	subcommands := make([]string, 0)
	for _, sub := range cmd.Commands() {
		subcommands = append(subcommands, sub.Name())
		require.True(t, sub.DisableAutoGenTag, sub.Name())
	}
	for _, expected := range []string{"emit", "inspect", "discover", "wait"} {
		require.Contains(t, subcommands, expected)
	}
}

func TestCommandFlags(t *testing.T) {
	cmd, _, _ := newTestCommand(context.Background())

	flag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	require.Equal(t, "string", flag.Value.Type())
	require.Equal(t, "info", flag.DefValue)
	require.Contains(t, flag.Usage, "log level")
}

func TestCommandHelp(t *testing.T) {
	cmd, stdout, _ := newTestCommand(context.Background())
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	help := stdout.String()
	require.Contains(t, help, "perfjit")
	require.Contains(t, help, "Available Commands:")
	for _, sub := range []string{"emit", "inspect", "discover", "wait"} {
		require.Contains(t, help, sub)
	}
}

func TestCommandMarkdownDocs(t *testing.T) {
	cmd, _, _ := newTestCommand(context.Background())
	dir := t.TempDir()

	require.NoError(t, doc.GenMarkdownTree(cmd, dir))

	for _, sub := range cmd.Commands() {
		page, err := os.ReadFile(filepath.Join(dir, "perfjit_"+sub.Name()+".md"))
		require.NoError(t, err, sub.Name())
		require.Contains(t, string(page), sub.Short)
		require.Contains(t, string(page), "--log-level")
	}
	root, err := os.ReadFile(filepath.Join(dir, "perfjit.md"))
	require.NoError(t, err)
	require.Contains(t, string(root), cmd.Short)
}

func TestCommandInvalidFlag(t *testing.T) {
	cmd, _, stderr := newTestCommand(context.Background())
	cmd.SetArgs([]string{"--invalid-flag"})

	require.Error(t, cmd.Execute())
	require.Contains(t, stderr.String(), "unknown flag")
}

func TestCommandLogLevelFlag(t *testing.T) {
	path := writeTestDump(t)

	tests := []struct {
		name     string
		logLevel string
		wantErr  bool
	}{
		{"trace level", "trace", false},
		{"debug level", "debug", false},
		{"info level", "info", false},
		{"error level", "error", false},
		{"invalid level", "invalid", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, _ := newTestCommand(context.Background())
			cmd.SetArgs([]string{"--log-level", tt.logLevel, "inspect", path})

			err := cmd.Execute()
			if tt.wantErr {
				require.Error(t, err)
				require.Contains(t, err.Error(), "invalid log level")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestInspect(t *testing.T) {
	path := writeTestDump(t)

	t.Run("records", func(t *testing.T) {
		cmd, stdout, _ := newTestCommand(context.Background())
		cmd.SetArgs([]string{"inspect", path})
		require.NoError(t, cmd.Execute())

		out := stdout.String()
		require.Contains(t, out, "pid 4242")
		require.Contains(t, out, "DEBUG_INFO")
		require.Contains(t, out, "/src/foo.c:7")
		require.Contains(t, out, "CODE_LOAD")
		require.Contains(t, out, "_ZN3foo3barEv")
	})

	t.Run("demangle and disasm", func(t *testing.T) {
		cmd, stdout, _ := newTestCommand(context.Background())
		cmd.SetArgs([]string{"inspect", "--demangle", "--disasm", path})
		require.NoError(t, cmd.Execute())

		out := stdout.String()
		require.Contains(t, out, "foo::bar()")
		require.Contains(t, out, "push")
		require.Contains(t, out, "ret")
	})

	t.Run("report", func(t *testing.T) {
		cmd, stdout, _ := newTestCommand(context.Background())
		cmd.SetArgs([]string{"inspect", "--report", path})
		require.NoError(t, cmd.Execute())

		var parsed map[string]any
		require.NoError(t, json.Unmarshal(stdout.Bytes(), &parsed))
		require.Equal(t, float64(4242), parsed["pid"])
		require.Equal(t, float64(5), parsed["code_bytes"])
	})

	t.Run("truncated", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		cut := filepath.Join(t.TempDir(), "jit-1.dump")
		require.NoError(t, os.WriteFile(cut, data[:len(data)-2], 0o644))

		cmd, stdout, _ := newTestCommand(context.Background())
		cmd.SetArgs([]string{"inspect", cut})
		require.ErrorIs(t, cmd.Execute(), io.ErrUnexpectedEOF)
		require.Contains(t, stdout.String(), "DEBUG_INFO")
	})

	t.Run("missing argument", func(t *testing.T) {
		cmd, _, _ := newTestCommand(context.Background())
		cmd.SetArgs([]string{"inspect"})
		require.Error(t, cmd.Execute())
	})
}

func TestDiscover(t *testing.T) {
	requireEmitSupport(t)

	s, err := session.Open(session.WithBaseDir(t.TempDir()))
	require.NoError(t, err)
	defer s.Close()

	cmd, stdout, _ := newTestCommand(context.Background())
	cmd.SetArgs([]string{"discover", "--pid", strconv.Itoa(os.Getpid())})
	require.NoError(t, cmd.Execute())

	out := stdout.String()
	require.Contains(t, out, s.Path())
	require.NotContains(t, out, "(foreign)")
}

func TestWait_Timeout(t *testing.T) {
	cmd, _, _ := newTestCommand(context.Background())
	cmd.SetArgs([]string{
		"wait",
		"--socket-path", filepath.Join(t.TempDir(), "none.sock"),
		"--timeout", "200ms",
		"--retry-interval", "50ms",
	})

	err := cmd.Execute()
	require.Error(t, err)
	require.True(t, errors.Is(err, healthcheck.ErrTimeout), err.Error())
}

func TestEmit(t *testing.T) {
	exe := requireEmitSupport(t)
	dumpDir := t.TempDir()

	cmd, stdout, _ := newTestCommand(context.Background())
	cmd.SetArgs([]string{"emit", "--path", exe, "--include", testInclude, "--dump-dir", dumpDir})
	require.NoError(t, cmd.Execute())

	path := strings.TrimSpace(stdout.String())
	require.True(t, strings.HasPrefix(path, filepath.Join(dumpDir, ".debug", "jit")), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	h, records, err := jitdump.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, uint32(os.Getpid()), h.Pid)

	var names []string
	for _, rec := range records {
		if cl, ok := rec.(*jitdump.CodeLoadRecord); ok {
			names = append(names, cl.Name)
		}
	}
	require.Equal(t, []string{"github.com/maxgio92/perfjit/pkg/cmd.NewCommand"}, names)
}

func TestEmit_Hold(t *testing.T) {
	exe := requireEmitSupport(t)
	sock := filepath.Join(t.TempDir(), "emit.sock")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd, _, _ := newTestCommand(ctx)
	cmd.SetArgs([]string{
		"emit", "--path", exe, "--include", testInclude,
		"--dump-dir", t.TempDir(), "--hold", "--socket-path", sock,
	})
	errCh := make(chan error, 1)
	go func() { errCh <- cmd.Execute() }()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer waitCancel()
	path, err := healthcheck.Wait(waitCtx, sock, 50*time.Millisecond)
	require.NoError(t, err)
	require.FileExists(t, path)

	cancel()
	require.NoError(t, <-errCh)
	require.NoFileExists(t, sock)
}

func TestEmit_MissingPath(t *testing.T) {
	cmd, _, _ := newTestCommand(context.Background())
	cmd.SetArgs([]string{"emit"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "path")
}
