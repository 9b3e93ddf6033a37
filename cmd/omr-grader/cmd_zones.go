package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/zones"
)

var zonesStrategy string

var zonesCmd = &cobra.Command{
	Use:   "zones <image>...",
	Short: "Print the detected answer zones of each sheet as JSON",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		zc := *cfg
		if zonesStrategy != "" {
			zc.Zones.Strategy = config.Strategy(zonesStrategy)
			if err := zc.Validate(); err != nil {
				return err
			}
		}
		d, err := zones.NewDetector(&zc, logger)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		for _, path := range args {
			img, err := imaging.Load(path)
			if err != nil {
				return err
			}
			res, err := d.Detect(img)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := enc.Encode(struct {
				Path string `json:"path"`
				*zones.Result
			}{path, res}); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	zonesCmd.Flags().StringVarP(&zonesStrategy, "strategy", "s", "", "Override zones.strategy: contour, projection, cluster or template")
}
