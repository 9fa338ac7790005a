//go:build docs

// Command docs renders the tracegraph CLI reference: one page per command
// under docs/, and the root page plus a command index spliced into README.md.
package main

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	log "github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/maxgio92/tracegraph/internal/settings"
	"github.com/maxgio92/tracegraph/pkg/cmd"
)

const referenceMarker = "{{ .CLI_REFERENCE }}"

type generator struct {
	pagesDir string
	template string
	readme   string
	logger   log.Logger
}

func main() {
	logger := log.New(log.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	root := cmd.NewCommand(cmd.NewOptions(cmd.WithLogger(logger.Level(log.InfoLevel))))
	root.DisableAutoGenTag = true

	g := &generator{
		pagesDir: "docs",
		template: "README.md.tpl",
		readme:   "README.md",
		logger:   logger,
	}
	if err := g.generate(root); err != nil {
		logger.Fatal().Err(err).Msg("failed to generate the CLI reference")
	}
}

func (g *generator) generate(root *cobra.Command) error {
	if err := doc.GenMarkdownTreeCustom(root, g.pagesDir, g.frontmatter, g.link); err != nil {
		return errors.Wrap(err, "rendering command pages")
	}
	g.logger.Debug().Str("dir", g.pagesDir).Msg("command pages rendered")

	reference, err := os.ReadFile(path.Join(g.pagesDir, pageName(root)))
	if err != nil {
		return errors.Wrap(err, "reading the root command page")
	}
	tpl, err := os.ReadFile(g.template)
	if err != nil {
		return errors.Wrap(err, "reading the README template")
	}
	if !strings.Contains(string(tpl), referenceMarker) {
		return errors.Errorf("%s has no %s marker", g.template, referenceMarker)
	}

	body := string(reference) + g.index(root)
	readme := strings.Replace(string(tpl), referenceMarker, body, 1)
	if err := os.WriteFile(g.readme, []byte(readme), 0o644); err != nil {
		return errors.Wrap(err, "writing the README")
	}
	g.logger.Info().Str("path", g.readme).Msg("CLI reference updated")

	return nil
}

// frontmatter titles the subcommand pages. The root page goes into the
// README and gets none.
func (g *generator) frontmatter(filename string) string {
	name := strings.TrimSuffix(path.Base(filename), ".md")
	if name == settings.CmdName {
		return ""
	}

	return fmt.Sprintf("---\ntitle: %q\n---\n\n", strings.ReplaceAll(name, "_", " "))
}

func (g *generator) link(filename string) string {
	if filename == settings.CmdName+".md" {
		return g.readme
	}

	return path.Join(g.pagesDir, filename)
}

// index is a table of the user facing subcommands of root.
func (g *generator) index(root *cobra.Command) string {
	var b strings.Builder
	b.WriteString("\n### Commands\n\n| Command | Description |\n|---------|-------------|\n")
	for _, c := range root.Commands() {
		if !c.IsAvailableCommand() || c.IsAdditionalHelpTopicCommand() {
			continue
		}
		fmt.Fprintf(&b, "| [`%s`](%s) | %s |\n", c.CommandPath(), g.link(pageName(c)), c.Short)
	}

	return b.String()
}

// pageName is the file name cobra/doc gives to the page of c.
func pageName(c *cobra.Command) string {
	return strings.ReplaceAll(c.CommandPath(), " ", "_") + ".md"
}
