package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alparslanahmed/transcript-parser-go/internal/server"
)

// serveCmd runs the HTTP upload endpoint
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the transcript upload endpoint over HTTP",
	Long: `Serve an upload form and a JSON endpoint at server.route.

POST a multipart form with a "pdf" field to receive the parsed transcript.
The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	parser, err := newParser()
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, parser, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
