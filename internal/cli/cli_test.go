package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/gobwas/glob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	transcript "github.com/alparslanahmed/transcript-parser-go"
	"github.com/alparslanahmed/transcript-parser-go/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// runCommand executes the root command with a fresh config file
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "transcript.yaml")
	writeFile(t, configPath, "log:\n  level: error\n")

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestCollectInputs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "%PDF")
	writeFile(t, filepath.Join(dir, "notes.txt"), "notes")
	writeFile(t, filepath.Join(dir, "2024", "b.pdf"), "%PDF")
	explicit := filepath.Join(dir, "notes.txt")

	t.Run("Directory filtered by glob", func(t *testing.T) {
		inputs, err := collectInputs([]string{dir}, glob.MustCompile("*.pdf", '/'))
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(dir, "2024", "b.pdf"),
			filepath.Join(dir, "a.pdf"),
		}, inputs)
	})

	t.Run("Relative path glob", func(t *testing.T) {
		inputs, err := collectInputs([]string{dir}, glob.MustCompile("2024/*", '/'))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "2024", "b.pdf")}, inputs)
	})

	t.Run("Explicit files bypass the glob", func(t *testing.T) {
		inputs, err := collectInputs([]string{explicit, explicit}, glob.MustCompile("*.pdf", '/'))
		require.NoError(t, err)
		assert.Equal(t, []string{explicit}, inputs)
	})

	t.Run("Missing input", func(t *testing.T) {
		_, err := collectInputs([]string{filepath.Join(dir, "missing.pdf")}, glob.MustCompile("*", '/'))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestParseInputs(t *testing.T) {
	inputs := []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf"}
	errBroken := errors.New("broken xref table")

	parse := func(path string) (*transcript.Transcript, error) {
		if path == "c.pdf" {
			return nil, errBroken
		}
		return transcript.NewParser().ParseText("CS1001\n2,3"), nil
	}

	var done atomic.Int32
	results, err := parseInputs(context.Background(), inputs, parse, 2, func() { done.Add(1) })
	require.NoError(t, err)

	require.Len(t, results, 4)
	assert.Equal(t, int32(4), done.Load())
	for i, r := range results {
		assert.Equal(t, inputs[i], r.File, "results keep the input order")
	}
	assert.Equal(t, "broken xref table", results[2].Error)
	assert.Nil(t, results[2].Result)
	require.NotNil(t, results[0].Result)
	assert.Equal(t, []transcript.Course{{ModuleID: "CS1001", Grade: "2.3"}}, results[0].Result.Courses)
}

func TestParseInputs_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parseInputs(ctx, []string{"a.pdf"}, func(string) (*transcript.Transcript, error) {
		return &transcript.Transcript{}, nil
	}, 1, func() {})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"error": "Prüfung & Note"}, false))
	assert.Equal(t, "{\"error\":\"Prüfung & Note\"}\n", buf.String())

	buf.Reset()
	require.NoError(t, writeJSON(&buf, map[string]int{"total_credits": 120}, true))
	assert.Equal(t, "{\n  \"total_credits\": 120\n}\n", buf.String())
}

func TestParseCommand_SingleTextInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	writeFile(t, path, "INF10010 Programmierung\n1,7\nGesamtcredits 120\nZwischennote 1,8\n")

	out, err := runCommand(t, "parse", "--text", "--pretty=false", "--include", "*.pdf", path)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"gpa": 1.8, "total_credits": 120, "courses": [{"module_id": "INF10010", "grade": "1.7"}]}`,
		out,
	)
}

func TestParseCommand_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.txt"), "CS1001\n2,3\n")
	writeFile(t, filepath.Join(dir, "two.txt"), "MAT10020\n1,0\n")
	writeFile(t, filepath.Join(dir, "skip.md"), "AB1000\n3,0\n")

	out, err := runCommand(t, "parse", "--text", "--pretty=false", "--include", "*.txt", "-j", "2", dir)
	require.NoError(t, err)

	var results []fileResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, filepath.Join(dir, "one.txt"), results[0].File)
	assert.Equal(t, []transcript.Course{{ModuleID: "CS1001", Grade: "2.3"}}, results[0].Result.Courses)
	assert.Equal(t, filepath.Join(dir, "two.txt"), results[1].File)
	assert.Equal(t, []transcript.Course{{ModuleID: "MAT10020", Grade: "1.0"}}, results[1].Result.Courses)
}

func TestParseCommand_NoMatches(t *testing.T) {
	_, err := runCommand(t, "parse", "--text=false", "--include", "*.pdf", t.TempDir())
	assert.Error(t, err)
}

func TestConfigCommand(t *testing.T) {
	out, err := runCommand(t, "config")
	require.NoError(t, err)

	var printed config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &printed))
	assert.Equal(t, "error", printed.Log.Level)
	assert.Equal(t, 15, printed.Parser.Lookahead)
	assert.Equal(t, "/api/parse-transcript", printed.Server.Route)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "transcript dev")
	assert.Contains(t, out, "Go version:")
}
