package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/replybot/internal/config"
	"github.com/1broseidon/replybot/internal/dedupe"
	"github.com/1broseidon/replybot/internal/frame"
	"github.com/1broseidon/replybot/internal/hotkeys"
	"github.com/1broseidon/replybot/internal/inject"
	"github.com/1broseidon/replybot/internal/ipc"
	"github.com/1broseidon/replybot/internal/loop"
	"github.com/1broseidon/replybot/internal/oracle"
	"github.com/1broseidon/replybot/internal/platform"
	"github.com/1broseidon/replybot/internal/ratelimit"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reply loop in the foreground",
	Long: `Runs the reply loop until SIGINT or SIGTERM.

Each iteration finds the chat window, captures it, skips frames that were
answered within the cooldown or when the hourly cap is reached, asks the
model for a reply and types it. SIGHUP, "replybot reload" and edits to the
config file apply new settings at the start of the next iteration.`,
	Args: cobra.NoArgs,
	RunE: runLoop,
}

func runLoop(cmd *cobra.Command, _ []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	res, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg := res.Config

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger = logger.With(zap.String("run_id", uuid.NewString()))

	source := res.File
	if source == "" {
		source = "defaults"
	}
	logger.Info("replybot starting",
		zap.String("config", source),
		zap.String("window", cfg.WindowTitle),
		zap.Duration("scan_interval", cfg.ScanInterval),
		zap.Duration("cooldown", cfg.Cooldown),
		zap.Int("max_replies_per_hour", cfg.MaxRepliesPerHour),
		zap.Duration("rate_window", cfg.RateWindow),
		zap.String("model", cfg.Model),
		zap.String("api_key", cfg.MaskedAPIKey()),
		zap.String("capture", "x11 window region"),
		zap.Bool("debug_archive", cfg.Debug.Enabled),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		return fmt.Errorf("failed to connect to display: %w", err)
	}
	defer backend.Disconnect()

	gemini, err := oracle.NewGemini(ctx, oracle.GeminiConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Prompt:      oracle.BuildPrompt(cfg.Personality, cfg.WindowTitle),
	})
	if err != nil {
		return err
	}

	deps := loop.Deps{
		Screen:   backend,
		Oracle:   gemini,
		Injector: inject.New(backend, cfg.WindowTitle, cfg.Injection, logger.Named("inject")),
		Ledger:   dedupe.NewLedger(cfg.Cooldown, cfg.LedgerRetention),
		Limiter:  ratelimit.New(cfg.MaxRepliesPerHour, cfg.RateWindow, time.Now()),
		Logger:   logger.Named("loop"),
	}
	if cfg.Debug.Enabled {
		deps.Archive = &frame.Archive{Dir: cfg.Debug.Dir}
	}
	ctrl, err := loop.New(loop.SettingsFromConfig(cfg), deps)
	if err != nil {
		return err
	}

	// Model, temperature and personality are bound into the oracle at
	// startup; a reload changes the loop, gate and injection settings only.
	reload := func() error {
		next, err := config.LoadFromPath(path)
		if err != nil {
			return err
		}
		ctrl.Reload(next.Config)
		return nil
	}

	ipcServer, err := ipc.NewServer(ctrl, reload, logger.Named("ipc"))
	if err != nil {
		return err
	}

	if cfg.PauseHotkey != "" {
		stopHotkeys, err := startPauseHotkey(cfg, ctrl, logger.Named("hotkeys"))
		if err != nil {
			logger.Warn("pause hotkey disabled", zap.String("hotkey", cfg.PauseHotkey), zap.Error(err))
		} else {
			defer stopHotkeys()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ctrl.Run(gctx) })
	g.Go(func() error { return ipcServer.Serve(gctx) })
	g.Go(func() error {
		if err := config.Watch(gctx, path, logger.Named("config"), ctrl.Reload); err != nil {
			logger.Warn("config file watch disabled", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-hup:
				logger.Info("received SIGHUP, reloading config")
				if err := reload(); err != nil {
					logger.Warn("config reload failed", zap.Error(err))
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("replybot stopped")
	return nil
}

// startPauseHotkey grabs the pause key on its own X connection. Keyboard
// grabs are re-established whenever the keymap changes, and the input side
// remaps scratch keycodes to type unusual characters, so the two must not
// share a connection.
func startPauseHotkey(cfg *config.Config, ctrl *loop.Controller, logger *zap.Logger) (func(), error) {
	hk, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		return nil, err
	}
	handler, err := hotkeys.NewHandler(hk, logger)
	if err != nil {
		hk.Disconnect()
		return nil, err
	}
	if err := handler.RegisterPauseToggle(cfg.PauseHotkey, ctrl); err != nil {
		hk.Disconnect()
		return nil, err
	}
	logger.Info("pause hotkey registered", zap.String("hotkey", cfg.PauseHotkey))

	// xevent only notices Quit after the next event, so the loop is flagged
	// to stop but not joined, and the connection stays open until exit.
	go hk.EventLoop()
	return hk.StopEventLoop, nil
}
