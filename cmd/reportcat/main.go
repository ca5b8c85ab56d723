package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/reportcat/pkg/config"
	"github.com/noah-isme/reportcat/pkg/logger"
)

// @title ReportCat API
// @version 0.1.0
// @description Named, parameterized SQL reports rendered as JSON, CSV or PDF
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := newRootCmd(cfg, logr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config, logr *zap.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "reportcat",
		Short:         "Parameterized SQL reports over HTTP and the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		serveCmd(cfg, logr),
		listCmd(cfg),
		sqlCmd(cfg),
		runCmd(cfg, logr),
	)
	return root
}
