package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/landmarker/internal/capture"
	"github.com/ayusman/landmarker/internal/landmark"
	"github.com/ayusman/landmarker/internal/video"
)

type meshOptions struct {
	part string
	max  int
	show bool
}

func newMeshCmd(app *App) *cobra.Command {
	var opts meshOptions

	cmd := &cobra.Command{
		Use:   "mesh IMAGE",
		Short: "Print face mesh or hand landmarks of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMesh(cmd, app, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.part, "part", "p", string(video.PartHand),
		fmt.Sprintf("Body part to landmark (%s)", joinParts(video.DefaultRegistry().Parts(), " or ")))
	cmd.Flags().IntVar(&opts.max, "max", 0, "Maximum number of faces or hands (default depends on part)")
	cmd.Flags().BoolVar(&opts.show, "show", false, "Show the annotated image")
	return cmd
}

func runMesh(cmd *cobra.Command, app *App, opts meshOptions, path string) error {
	entry, err := video.DefaultRegistry().Lookup(video.Part(opts.part))
	if err != nil {
		return err
	}

	modelOpts := entry.Defaults
	if cmd.Flags().Changed("max") {
		if opts.max < 1 {
			return fmt.Errorf("--max must be at least 1, got %d", opts.max)
		}
		modelOpts.MaxSubjects = opts.max
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%s: %w", path, capture.ErrImageDecode)
	}

	model, err := app.meshModel(entry.Solution, modelOpts)
	if err != nil {
		return err
	}

	var window *landmark.WindowPreview
	var preview landmark.Preview
	if opts.show {
		window = landmark.NewWindowPreview()
		defer window.Close()
		preview = window
	}

	l := entry.New(model, preview)
	defer l.Close()

	lm, err := l.ProcessFile(path)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), video.FormatLandmarks(lm))

	if window != nil {
		window.PollKey(0)
	}
	return nil
}

func joinParts(parts []video.Part, sep string) string {
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = string(p)
	}
	return strings.Join(names, sep)
}
