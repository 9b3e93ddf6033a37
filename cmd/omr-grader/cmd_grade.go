package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/omr-grader-mcp/internal/config"
	"github.com/ironsheep/omr-grader-mcp/internal/detector"
	"github.com/ironsheep/omr-grader-mcp/internal/imaging"
	"github.com/ironsheep/omr-grader-mcp/internal/overlay"
	"github.com/ironsheep/omr-grader-mcp/internal/pipeline"
)

var (
	gradeKeyPath  string
	gradeWorkers  int
	gradeOut      string
	gradeDebugDir string
	gradeFormat   string
	gradeXLSX     string
)

var gradeCmd = &cobra.Command{
	Use:   "grade <image|dir>...",
	Short: "Grade sheets and write a JSON results file",
	Long: `Grade one or more sheets against an answer key. Directories are expanded
to the images they contain. A sheet that fails (unreadable image, missing
detections) is reported in the results and does not stop the others.

Exit status is 1 if any sheet failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGrade,
}

func init() {
	gradeCmd.Flags().StringVarP(&gradeKeyPath, "key", "k", "", "Answer key file (YAML or JSON, required)")
	gradeCmd.Flags().IntVarP(&gradeWorkers, "workers", "j", 0, "Sheets graded concurrently (default from config)")
	gradeCmd.Flags().StringVarP(&gradeOut, "out", "o", "-", "Results file, - for stdout")
	gradeCmd.Flags().StringVar(&gradeDebugDir, "debug-dir", "", "Write an overlay PNG per graded sheet here")
	gradeCmd.Flags().StringVar(&gradeXLSX, "xlsx", "", "Also write the results as a spreadsheet to this path")
	gradeCmd.Flags().StringVar(&gradeFormat, "format", "", "Detection sidecar format: json or yolo (default from config)")
	_ = gradeCmd.MarkFlagRequired("key")
}

func runGrade(cmd *cobra.Command, args []string) error {
	key, err := config.LoadAnswerKey(gradeKeyPath)
	if err != nil {
		return err
	}
	detCfg := cfg.Detector
	if gradeFormat != "" {
		detCfg.Format = config.SidecarFormat(gradeFormat)
	}
	det, err := detector.New(detCfg)
	if err != nil {
		return err
	}
	p, err := pipeline.New(cfg, key, det, logger)
	if err != nil {
		return err
	}

	paths, err := expandPaths(args)
	if err != nil {
		return err
	}
	workers := gradeWorkers
	if workers <= 0 {
		workers = cfg.Batch.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("grading batch", zap.Int("sheets", len(paths)), zap.Int("workers", workers))
	items := p.GradeBatch(ctx, paths, workers)
	summary := pipeline.Summarize(items)

	if gradeDebugDir != "" {
		if err := writeOverlays(gradeDebugDir, items, cfg); err != nil {
			return err
		}
	}

	if err := writeSummary(cmd.OutOrStdout(), gradeOut, summary); err != nil {
		return err
	}
	if gradeXLSX != "" {
		if err := writeWorkbook(gradeXLSX, summary); err != nil {
			return err
		}
	}
	logger.Info("batch done",
		zap.Int("graded", summary.Graded),
		zap.Int("failed", summary.Failed))

	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d sheets failed", summary.Failed, summary.Sheets)
	}
	return nil
}

func writeSummary(stdout io.Writer, path string, s *pipeline.Summary) error {
	if path == "-" || path == "" {
		return s.WriteJSON(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := s.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeWorkbook(path string, s *pipeline.Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook: %w", err)
	}
	if err := s.WriteXLSX(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeOverlays(dir string, items []pipeline.Item, cfg *config.Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create debug dir: %w", err)
	}
	for _, it := range items {
		if it.Result == nil {
			continue
		}
		img, err := imaging.Load(it.Path)
		if err != nil {
			logger.Warn("overlay skipped", zap.String("sheet", it.Path), zap.Error(err))
			continue
		}
		canvas := overlay.Render(img, overlay.FromResult(it.Result, cfg), overlay.Options{Badges: true})

		base := strings.TrimSuffix(filepath.Base(it.Path), filepath.Ext(it.Path))
		out := filepath.Join(dir, base+".overlay.png")
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("failed to create overlay: %w", err)
		}
		if err := overlay.WritePNG(f, canvas); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logger.Debug("overlay written", zap.String("path", out))
	}
	return nil
}

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".tif": true, ".tiff": true, ".bmp": true, ".webp": true,
}

// expandPaths replaces each directory argument with the images directly
// inside it, sorted by name. File arguments are kept as given.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images to grade")
	}
	return paths, nil
}
