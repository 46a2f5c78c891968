package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	transcript "github.com/alparslanahmed/transcript-parser-go"
	"github.com/alparslanahmed/transcript-parser-go/internal/config"
)

var (
	cfgFile string
	verbose bool

	// cfg and logger are set up before any subcommand runs
	cfg    *config.Config
	logger *log.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Extract courses, grades, credits and GPA from transcript PDFs",
	Long: `transcript reads university transcript PDFs and reports the graded
modules, the total credits and the interim grade (Zwischennote) as JSON.

It can parse files from the command line or serve an upload endpoint.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./transcript.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	level, err := config.ParseLevel(loaded.Log.Level)
	if err != nil {
		return err
	}
	if verbose {
		level = log.DebugLevel
	}

	cfg = loaded
	logger = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Prefix:          "transcript",
		Level:           level,
		ReportTimestamp: true,
	})
	logger.Debug("configuration loaded", "file", cfgFile)
	return nil
}

// newParser builds a parser from the loaded configuration
func newParser() (*transcript.Parser, error) {
	parser, err := cfg.Parser.NewParser()
	if err != nil {
		return nil, fmt.Errorf("failed to create parser: %w", err)
	}
	parser.SetLogger(logger)
	if verbose {
		parser.SetDebug(true)
	}
	return parser, nil
}
