package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ayusman/landmarker/internal/capture"
	"github.com/ayusman/landmarker/internal/landmark"
	"github.com/ayusman/landmarker/internal/server"
	"github.com/ayusman/landmarker/internal/store"
	"github.com/ayusman/landmarker/internal/video"
)

type videoOptions struct {
	face            int
	hand            int
	stream          string
	file            string
	show            bool
	record          bool
	serve           string
	motionThreshold float64
}

func newVideoCmd(app *App) *cobra.Command {
	var opts videoOptions

	cmd := &cobra.Command{
		Use:   "video",
		Short: "Landmark faces or hands on every frame of a camera or video file",
		Long: "Runs a face mesh (--face N) or hand (--hand N) landmarker on every frame until Esc is " +
			"pressed in the preview window, the video ends or the process is interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVideo(cmd, app, opts)
		},
	}

	cmd.Flags().IntVar(&opts.face, "face", 0, "Landmark up to N faces")
	cmd.Flags().IntVar(&opts.hand, "hand", 0, "Landmark up to N hands")
	cmd.Flags().StringVarP(&opts.stream, "stream", "s", "", "Capture device index (default from LANDMARKER_CAMERA_ID)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read frames from a video file instead of a device")
	cmd.Flags().BoolVar(&opts.show, "show", false, "Show annotated frames; Esc stops")
	cmd.Flags().BoolVar(&opts.record, "record", false, "Record landmarks to the session database")
	cmd.Flags().StringVar(&opts.serve, "serve", "", "Serve the session API and live landmark feed on this address")
	cmd.Flags().Float64Var(&opts.motionThreshold, "motion-threshold", 0, "Skip frames with at most this percentage of changed pixels (0 disables)")

	cmd.MarkFlagsMutuallyExclusive("face", "hand")
	cmd.MarkFlagsOneRequired("face", "hand")
	cmd.MarkFlagsMutuallyExclusive("stream", "file")
	return cmd
}

// videoConfig turns flags into a driver configuration without touching any device.
func videoConfig(cmd *cobra.Command, app *App, opts videoOptions) (video.Config, error) {
	part, count := video.PartFace, opts.face
	if cmd.Flags().Changed("hand") {
		part, count = video.PartHand, opts.hand
	}
	if count < 1 {
		return video.Config{}, fmt.Errorf("--%s must be at least 1, got %d", part, count)
	}

	cfg := video.DefaultConfig(part)
	cfg.MaxSubjects = count
	cfg.MinDetection = app.cfg.MinDetection
	cfg.MinTracking = app.cfg.MinTracking
	cfg.MotionThreshold = opts.motionThreshold
	cfg.Stream = app.cfg.CameraID

	if opts.stream != "" {
		id, err := video.ParseStreamID(opts.stream)
		if err != nil {
			return video.Config{}, err
		}
		cfg.Stream = id
	}
	return cfg, nil
}

func runVideo(cmd *cobra.Command, app *App, opts videoOptions) error {
	cfg, err := videoConfig(cmd, app, opts)
	if err != nil {
		return err
	}

	var camera capture.Camera
	source := "camera:" + strconv.Itoa(cfg.Stream)
	if opts.file != "" {
		camera = app.NewFileCamera(opts.file)
		source = opts.file
	} else {
		camera = app.NewCamera(cfg.Stream)
	}

	driverOpts := []video.Option{
		video.WithLogger(app.logger),
		video.WithSink(video.NewPrintSink(cmd.OutOrStdout())),
	}

	var window *landmark.WindowPreview
	if opts.show {
		window = landmark.NewWindowPreview()
		defer window.Close()
		driverOpts = append(driverOpts, video.WithPreview(window), video.WithKeys(window))
	}

	driver, err := video.NewDriver(cfg, camera, app.meshModel, driverOpts...)
	if err != nil {
		return err
	}
	defer driver.Close()

	var st *store.Store
	if opts.record || opts.serve != "" {
		st, err = app.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
	}

	if opts.record {
		rec, err := store.NewRecorder(st, cfg.Part, source)
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				app.logger.WithError(err).Warn("finish recording")
			}
		}()
		driver.AddSink(rec)
		app.logger.WithField("session", rec.Session().ID).Info("recording session")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	serveErr := make(chan error, 1)
	if opts.serve != "" {
		hub := server.NewHub(app.logger)
		driver.AddSink(hub)
		srv := server.New(server.Config{
			StaticDir: findWebDir(),
			Store:     st,
			Hub:       hub,
			Logger:    app.logger,
		})
		go func() {
			err := srv.Run(ctx, opts.serve)
			if err != nil {
				cancel()
			}
			serveErr <- err
		}()
	} else {
		close(serveErr)
	}

	runErr := driver.Run(ctx)
	cancel()

	if err := <-serveErr; err != nil && runErr == nil {
		runErr = fmt.Errorf("serve %s: %w", opts.serve, err)
	}
	if runErr != nil {
		return runErr
	}

	stats := driver.Stats()
	app.logger.WithField("frames", stats.Frames).
		WithField("dropped", stats.Dropped).
		WithField("still", stats.Still).
		Info("video done")
	return nil
}

func (a *App) openStore() (*store.Store, error) {
	path, err := a.cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	st, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open session database: %w", err)
	}
	return st, nil
}
