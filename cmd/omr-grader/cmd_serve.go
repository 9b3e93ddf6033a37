package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/omr"
	"github.com/ironsheep/omr-grader-mcp/internal/server"
)

var serveKeyPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP tool server over stdin/stdout",
	Long: `Run a Model Context Protocol server that exposes zone detection, grid
mapping, zone crops, grading and overlay rendering as tools.

Configure it in your MCP client; it communicates over stdin/stdout and logs
to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var key omr.AnswerKey
		if serveKeyPath != "" {
			var err error
			if key, err = config.LoadAnswerKey(serveKeyPath); err != nil {
				return err
			}
		}

		srv, err := server.New(cfg, key, logger)
		if err != nil {
			return err
		}
		logger.Info("MCP server starting",
			zap.String("version", Version),
			zap.String("build_time", BuildTime),
			zap.String("commit", GitCommit),
			zap.String("zone_strategy", string(cfg.Zones.Strategy)))
		return srv.Run()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveKeyPath, "key", "", "Default answer key file for grading tools")
}
