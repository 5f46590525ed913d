package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"

	"github.com/fonline/droidbridge/pkg/render"
	"github.com/fonline/droidbridge/pkg/standalone"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Render into a desktop window",
	Long: `Open a desktop window and run the standalone render loop.

The loop ends when the window is closed, Escape is pressed or the engine
stops (see engine.frames).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		env, err := engineEnv(cfg)
		if err != nil {
			return err
		}

		var runErr error
		driver.Main(func(s screen.Screen) {
			w, err := s.NewWindow(&screen.NewWindowOptions{
				Width:  cfg.Width,
				Height: cfg.Height,
				Title:  cfg.AppName,
			})
			if err != nil {
				runErr = err
				return
			}
			defer w.Release()

			loop := standalone.New(s, w, standalone.Config{
				Driver:        newDriver(cfg),
				Env:           env,
				FrameInterval: cfg.FrameInterval,
				Trace:         render.NewFrameTraceBuffer(0, 0),
			})
			runErr = loop.Run()
			log.WithField("frames", loop.Frames()).Info("window closed")
		})
		return runErr
	},
}
