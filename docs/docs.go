//go:build docs

// Command docs writes the perfjit CLI reference as markdown, one file
// per command, and splices the root page into README.md when a
// README.md.tpl is present.
package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	log "github.com/rs/zerolog"
	"github.com/spf13/cobra/doc"

	"github.com/maxgio92/perfjit/internal/settings"
	"github.com/maxgio92/perfjit/pkg/cmd"
)

const (
	docsDir        = "docs"
	readmeTemplate = "README.md.tpl"
	templateMarker = "{{ .CLI_REFERENCE }}"
)

// linkHandler points the root page at the README, where it ends up.
func linkHandler(filename string) string {
	if filename == settings.CmdName+".md" {
		return "README.md"
	}
	return path.Join(docsDir, filename)
}

func main() {
	root := cmd.NewCommand(cmd.NewOptions(cmd.WithLogger(log.Nop())))

	noHeader := func(string) string { return "" }
	if err := doc.GenMarkdownTreeCustom(root, docsDir, noHeader, linkHandler); err != nil {
		fmt.Fprintln(os.Stderr, "failed to generate CLI docs:", err)
		os.Exit(1)
	}

	tpl, err := os.ReadFile(readmeTemplate)
	if os.IsNotExist(err) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read README template:", err)
		os.Exit(1)
	}

	ref, err := os.ReadFile(path.Join(docsDir, settings.CmdName+".md"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read CLI reference:", err)
		os.Exit(1)
	}

	readme := strings.Replace(string(tpl), templateMarker, string(ref), 1)
	if err := os.WriteFile("README.md", []byte(readme), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "failed to write README:", err)
		os.Exit(1)
	}
}
