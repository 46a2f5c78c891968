package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gobwas/glob"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	transcript "github.com/alparslanahmed/transcript-parser-go"
)

var (
	parseAsText      bool
	parseInclude     string
	parseConcurrency int
	parsePretty      bool
)

// parseCmd parses transcript files and prints the results as JSON
var parseCmd = &cobra.Command{
	Use:   "parse [files or directories...]",
	Short: "Parse transcript PDFs and print the results as JSON",
	Long: `Parse one or more transcript PDFs. Directories are walked recursively and
files matching --include are parsed.

A single input prints one result object. Several inputs print an array of
{"file": ..., "result": ...} entries; files that fail carry an "error" instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().BoolVar(&parseAsText, "text", false, "inputs hold already extracted text instead of PDF data")
	parseCmd.Flags().StringVar(&parseInclude, "include", "*.pdf", "glob selecting files inside directories")
	parseCmd.Flags().IntVarP(&parseConcurrency, "concurrency", "j", runtime.NumCPU(), "number of files parsed in parallel")
	parseCmd.Flags().BoolVar(&parsePretty, "pretty", false, "indent the JSON output")

	rootCmd.AddCommand(parseCmd)
}

// parseFunc parses the file at path
type parseFunc func(path string) (*transcript.Transcript, error)

// fileResult is the outcome for one input file
type fileResult struct {
	File   string                 `json:"file"`
	Result *transcript.Transcript `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func runParse(cmd *cobra.Command, args []string) error {
	include, err := glob.Compile(parseInclude, '/')
	if err != nil {
		return fmt.Errorf("invalid --include pattern %q: %w", parseInclude, err)
	}

	inputs, err := collectInputs(args, include)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no files matching %q found", parseInclude)
	}

	parser, err := newParser()
	if err != nil {
		return err
	}

	parse := parser.ParseFile
	if parseAsText {
		parse = textParseFunc(parser)
	}

	onDone := func() {}
	if len(inputs) > 1 {
		bar := newProgressBar(cmd.ErrOrStderr(), len(inputs))
		onDone = func() { _ = bar.Add(1) }
		defer func() { _ = bar.Finish() }()
	}

	results, err := parseInputs(cmd.Context(), inputs, parse, parseConcurrency, onDone)
	if err != nil {
		return err
	}

	if len(results) == 1 {
		if results[0].Error != "" {
			return fmt.Errorf("%s: %s", results[0].File, results[0].Error)
		}
		return writeJSON(cmd.OutOrStdout(), results[0].Result, parsePretty)
	}

	if err := writeJSON(cmd.OutOrStdout(), results, parsePretty); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			logger.Warn("parse failed", "file", r.File, "err", r.Error)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files could not be parsed", failed, len(results))
	}
	return nil
}

// textParseFunc parses files holding text already extracted from a PDF
func textParseFunc(parser *transcript.Parser) parseFunc {
	return func(path string) (*transcript.Transcript, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
		return parser.ParseText(string(data)), nil
	}
}

// collectInputs expands directories into the files matching include.
// Files named explicitly are always kept. Duplicates are dropped.
func collectInputs(args []string, include glob.Glob) ([]string, error) {
	var inputs []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			inputs = append(inputs, path)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat input: %w", err)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			relPath, err := filepath.Rel(arg, path)
			if err != nil {
				return err
			}
			relPath = filepath.ToSlash(relPath)

			if include.Match(relPath) || include.Match(d.Name()) {
				add(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
		}
	}

	return inputs, nil
}

// parseInputs parses every input with at most concurrency files in flight.
// Results keep the input order; a failing file does not stop the others.
func parseInputs(ctx context.Context, inputs []string, parse parseFunc, concurrency int, onDone func()) ([]fileResult, error) {
	results := make([]fileResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, path := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			results[i] = fileResult{File: path}
			result, err := parse(path)
			if err != nil {
				results[i].Error = err.Error()
			} else {
				results[i].Result = result
			}

			onDone()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func newProgressBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Parsing transcripts"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// writeJSON writes v followed by a newline, keeping non-ASCII text unescaped
func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	return nil
}
