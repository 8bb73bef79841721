// Package cli implements the landmarker command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ayusman/landmarker/internal/bridge"
	"github.com/ayusman/landmarker/internal/capture"
	"github.com/ayusman/landmarker/internal/config"
	"github.com/ayusman/landmarker/internal/landmark"
)

// Version is the application version.
const Version = "0.1.0"

// App holds what the commands share. The function fields are the seams tests replace.
type App struct {
	LoadConfig    func() (*config.Config, error)
	NewCamera     func(stream int) capture.Camera
	NewFileCamera func(path string) capture.Camera
	// MeshModels builds mesh models; nil uses the Python bridge.
	MeshModels func(solution landmark.Solution, opts landmark.Options) (landmark.MeshModel, error)

	cfg     *config.Config
	logger  *logrus.Logger
	verbose bool
}

// NewApp returns an App wired to the real camera, configuration and models.
func NewApp() *App {
	return &App{
		LoadConfig:    config.Load,
		NewCamera:     capture.NewCamera,
		NewFileCamera: capture.NewFileCamera,
	}
}

// NewRootCmd builds the command tree for app.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "landmarker",
		Short:         "Face and hand detection and landmarking over images and video",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			if app.verbose {
				cfg.LogLevel = "debug"
			}
			app.cfg = cfg
			app.logger = config.NewLogger(cfg)
			return nil
		},
	}

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newDetectCmd(app),
		newShapeCmd(app),
		newMeshCmd(app),
		newVideoCmd(app),
		newSessionsCmd(app),
	)
	return root
}

// Execute runs the command line until it finishes or SIGINT/SIGTERM arrives.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd(NewApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// meshModel builds a mesh model through MeshModels or the bridge.
func (a *App) meshModel(solution landmark.Solution, opts landmark.Options) (landmark.MeshModel, error) {
	if a.MeshModels != nil {
		return a.MeshModels(solution, opts)
	}
	c, err := bridge.New(bridge.Config{
		Script:   a.cfg.BridgeScript,
		Python:   a.cfg.BridgePython,
		Solution: solution,
		Options:  opts,
		Logger:   a.logger,
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
