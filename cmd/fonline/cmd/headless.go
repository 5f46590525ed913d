package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/image/bmp"

	"github.com/fonline/droidbridge/cmd/fonline/internal/config"
	"github.com/fonline/droidbridge/pkg/bridge"
	"github.com/fonline/droidbridge/pkg/diagnostics"
	"github.com/fonline/droidbridge/pkg/platform"
	"github.com/fonline/droidbridge/pkg/surface"
)

var (
	headlessFrames int
	headlessOut    string
)

var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Render into memory and dump the last frame",
	Long: `Drive the bridge through a full host lifecycle against an in-memory
surface: create, resize, resume, render --frames frames, pause, write the
last frame to --out as BMP, then shut down.

With --frames 0 it renders until interrupted; combine with --debug to
inspect the running bridge over HTTP.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runHeadless(ctx, cfg, headlessFrames, headlessOut)
	},
}

func init() {
	headlessCmd.Flags().IntVarP(&headlessFrames, "frames", "n", 60, "frames to render before stopping (0 = until interrupted)")
	headlessCmd.Flags().StringVarP(&headlessOut, "out", "o", "frame.bmp", "BMP file for the last frame (empty to skip)")
}

func runHeadless(ctx context.Context, cfg *config.Resolved, frames int, out string) error {
	env, err := engineEnv(cfg)
	if err != nil {
		return err
	}

	b := bridge.New(bridge.Options{
		Provider:      surface.MemoryProvider{},
		Driver:        newDriver(cfg),
		FrameInterval: cfg.FrameInterval,
	})
	host := platform.NewHost(b)
	host.EnsureInit(env.Assets, env.StoragePath)
	defer host.OnDestroy()

	if cfg.DebugEnabled {
		srv := diagnostics.New(b, diagnostics.Config{Port: cfg.DebugPort})
		port, err := srv.Start()
		if err != nil {
			return err
		}
		defer srv.Stop()
		log.Infof("diagnostics on http://localhost:%d/state", port)
	}

	win := surface.NewMemoryWindow(cfg.Width, cfg.Height)
	b.SurfaceCreated(win)
	b.SurfaceChanged(cfg.Width, cfg.Height)
	host.OnResume()

	if err := waitFrames(ctx, b, frames, cfg.FrameInterval); err != nil {
		return err
	}
	host.OnPause()

	st := b.Status()
	log.WithField("posted", st.Posted).
		WithField("lockFailures", st.LockFailures).
		WithField("engine", st.Engine).
		Info("headless run finished")

	if out == "" {
		return nil
	}
	img := win.LastFrame()
	if img == nil {
		return fmt.Errorf("no frame was posted")
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Infof("wrote %s", out)
	return nil
}

// waitFrames polls until n frames are posted, the context ends or, for
// n <= 0, only the context ends.
func waitFrames(ctx context.Context, b *bridge.Bridge, n int, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n > 0 && b.Status().Posted >= int64(n) {
			return nil
		}
		select {
		case <-ctx.Done():
			if n <= 0 {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
