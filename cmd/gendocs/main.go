// Command gendocs writes reference material for the medbuddy CLI: markdown
// pages, man pages, and shell completions.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"
	"github.com/spf13/pflag"

	"github.com/bolasblack/medbuddy/internal/cli"
)

type generator func(fs afero.Fs, root *cobra.Command, dir string) error

var generators = map[string]generator{
	"markdown":    genMarkdown,
	"man":         genMan,
	"completions": genCompletions,
}

func main() {
	flags := pflag.NewFlagSet("gendocs", pflag.ExitOnError)
	outDir := flags.StringP("out", "o", "", "output directory (defaults per format)")
	_ = flags.Parse(os.Args[1:])

	if flags.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: gendocs [-o dir] <%s>\n", strings.Join(formats(), "|"))
		os.Exit(1)
	}
	format := flags.Arg(0)
	gen, ok := generators[format]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", format)
		os.Exit(1)
	}

	dir := *outDir
	if dir == "" {
		dir = defaultDir(format)
	}
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		log.Fatalf("Failed to create %s: %v", dir, err)
	}
	if err := gen(fs, cli.GetRootCmd(), dir); err != nil {
		log.Fatalf("Failed to generate %s: %v", format, err)
	}
	fmt.Printf("Generated %s in %s/\n", format, dir)
}

func formats() []string {
	out := make([]string, 0, len(generators))
	for name := range generators {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func defaultDir(format string) string {
	if format == "markdown" {
		return "docs/commands"
	}
	return filepath.Join("out", format)
}

// genMarkdown writes one page per command with front matter for the docs site.
// doc.GenMarkdownTreeCustom writes through the os package, so fs is unused.
func genMarkdown(_ afero.Fs, root *cobra.Command, dir string) error {
	date := time.Now().Format(time.DateOnly)
	prepend := func(filename string) string {
		base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		return fmt.Sprintf("---\ntitle: %q\ndate: %s\n---\n\n", strings.ReplaceAll(base, "_", " "), date)
	}
	link := func(name string) string {
		return "./" + strings.TrimSuffix(name, filepath.Ext(name)) + ".md"
	}
	return doc.GenMarkdownTreeCustom(root, dir, prepend, link)
}

func genMan(_ afero.Fs, root *cobra.Command, dir string) error {
	return doc.GenManTree(root, &doc.GenManHeader{
		Title:   "MEDBUDDY",
		Section: "1",
		Source:  "medbuddy " + cli.Version,
		Manual:  "medbuddy Manual",
	}, dir)
}

func genCompletions(fs afero.Fs, root *cobra.Command, dir string) error {
	shells := []struct {
		ext string
		gen func(io.Writer) error
	}{
		{"bash", func(w io.Writer) error { return root.GenBashCompletionV2(w, true) }},
		{"zsh", root.GenZshCompletion},
		{"fish", func(w io.Writer) error { return root.GenFishCompletion(w, true) }},
		{"ps1", root.GenPowerShellCompletionWithDesc},
	}
	for _, sh := range shells {
		path := filepath.Join(dir, "medbuddy."+sh.ext)
		if err := writeFile(fs, path, sh.gen); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

func writeFile(fs afero.Fs, path string, gen func(io.Writer) error) error {
	f, err := fs.Create(path)
	if err != nil {
		return err
	}
	if err := gen(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
