// Command transcript-lambda serves the transcript upload endpoint behind
// API Gateway.
package main

import (
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/charmbracelet/log"

	"github.com/alparslanahmed/transcript-parser-go/internal/config"
	"github.com/alparslanahmed/transcript-parser-go/internal/server"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "transcript-lambda",
	})

	cfg, err := config.Load(os.Getenv("TRANSCRIPT_CONFIG"))
	if err != nil {
		logger.Fatal("could not load configuration", "err", err)
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Fatal("invalid log level", "err", err)
	}
	logger.SetLevel(level)

	parser, err := cfg.Parser.NewParser()
	if err != nil {
		logger.Fatal("could not create parser", "err", err)
	}
	parser.SetLogger(logger)

	srv, err := server.New(cfg, parser, logger)
	if err != nil {
		logger.Fatal("could not create server", "err", err)
	}
	defer srv.Close()

	lambda.Start(srv.HandleEvent)
}
