package cli

import (
	"fmt"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/landmarker/internal/detector"
)

type detectOptions struct {
	minConfidence   float64
	stopAtFirstMiss bool
}

func newDetectCmd(app *App) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect IMAGE...",
		Short: "Detect faces and print their bounding boxes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("min-confidence") {
				opts.minConfidence = app.cfg.MinConfidence
			}
			return runDetect(cmd, app, opts, args)
		},
	}

	cmd.Flags().Float64VarP(&opts.minConfidence, "min-confidence", "c", detector.DefaultMinConfidence, "Minimum detection confidence")
	cmd.Flags().BoolVar(&opts.stopAtFirstMiss, "stop-at-first-miss", false, "Stop at the first detection below the confidence threshold")
	return cmd
}

func runDetect(cmd *cobra.Command, app *App, opts detectOptions, paths []string) error {
	if opts.minConfidence < 0 || opts.minConfidence > 1 {
		return fmt.Errorf("min confidence %v out of range [0,1]", opts.minConfidence)
	}

	cfg := app.cfg
	net, err := detector.LoadCaffe(cfg.ModelPath(cfg.CaffeProto), cfg.ModelPath(cfg.CaffeModel))
	if err != nil {
		return err
	}

	mode := detector.ScanFilter
	if opts.stopAtFirstMiss {
		mode = detector.ScanStopAtFirstMiss
	}
	fd := detector.New(net, detector.Config{Mode: mode})
	defer fd.Close()

	app.logger.WithField("mode", mode).WithField("images", len(paths)).Debug("detecting faces")

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Detecting faces"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
	)

	out := cmd.OutOrStdout()
	for _, path := range paths {
		boxes, err := fd.DetectFile(path, opts.minConfidence)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(out, "%s\t%s\n", path, formatBoxes(boxes))
		bar.Add(1)
	}
	bar.Finish()
	return nil
}

func formatBoxes(boxes []detector.Box) string {
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		parts[i] = fmt.Sprintf("(%d,%d,%d,%d)", b.X1, b.Y1, b.X2, b.Y2)
	}
	return strings.Join(parts, " ")
}
