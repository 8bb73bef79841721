package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ayusman/landmarker/internal/bridge"
	"github.com/ayusman/landmarker/internal/landmark"
	"github.com/ayusman/landmarker/internal/video"
)

type shapeOptions struct {
	multi bool
	show  bool
}

func newShapeCmd(app *App) *cobra.Command {
	var opts shapeOptions

	cmd := &cobra.Command{
		Use:   "shape IMAGE",
		Short: "Print the 68 dlib facial landmarks of the faces in an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShape(cmd, app, opts, args[0])
		},
	}

	cmd.Flags().BoolVarP(&opts.multi, "multi", "m", false, "Landmark every face instead of the first one")
	cmd.Flags().BoolVar(&opts.show, "show", false, "Show the annotated image")
	return cmd
}

func runShape(cmd *cobra.Command, app *App, opts shapeOptions, path string) error {
	cfg := app.cfg

	finder, err := landmark.NewDlibFinder(cfg.FaceRecognizerDir())
	if err != nil {
		return err
	}
	defer finder.Close()

	predictor, err := bridge.New(bridge.Config{
		Script:   cfg.BridgeScript,
		Python:   cfg.BridgePython,
		Solution: bridge.SolutionShape,
		Model:    cfg.ModelPath(cfg.ShapeModel),
		Logger:   app.logger,
	})
	if err != nil {
		return err
	}
	defer predictor.Close()

	l := landmark.NewShapeLandmarker(finder, predictor)

	var window *landmark.WindowPreview
	if opts.show {
		window = landmark.NewWindowPreview()
		defer window.Close()
		l.SetPreview(window)
	}

	var shapes []landmark.Shape
	if opts.multi {
		shapes, err = l.AllFile(path)
	} else {
		var s landmark.Shape
		s, err = l.SingleFile(path)
		shapes = []landmark.Shape{s}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	out := cmd.OutOrStdout()
	for i, s := range shapes {
		fmt.Fprintf(out, "face %d: %s\n", i, video.FormatLandmarks(s.Landmarks()))
	}

	if window != nil {
		window.PollKey(0)
	}
	return nil
}
