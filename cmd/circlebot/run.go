package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/prilive-com/circlebot"
	"github.com/prilive-com/circlebot/internal/resilience"
	"github.com/prilive-com/circlebot/internal/scrub"
	"github.com/prilive-com/circlebot/tg"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll Telegram and answer circle triggers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.ValidateTelegram(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			token := a.cfg.Telegram.Token
			logger := slog.New(scrub.Handler(a.logger.Handler(), token))

			opts := append(a.cfg.BotOptions(), circlebot.WithLogger(logger))
			bot, err := circlebot.New(token.Value(), opts...)
			if err != nil {
				return err
			}

			me, err := resilience.RetryWithCallback(ctx, resilience.DefaultRetryConfig(),
				func() (*tg.User, error) {
					return bot.Sender().GetMe(ctx)
				},
				func(attempt int, err error, wait time.Duration) {
					logger.Warn("getMe failed, retrying",
						"attempt", attempt,
						"error", err,
						"wait", wait,
					)
				},
			)
			if err != nil {
				_ = bot.Close()
				return fmt.Errorf("getMe: %w", err)
			}

			logger.Info("circlebot starting",
				"bot_id", token.BotID(),
				"username", me.Username,
				"version", version,
				"temp_dir", a.cfg.TempDir,
				"max_concurrent_runs", a.cfg.MaxConcurrentRuns,
			)
			err = bot.Run(ctx)
			stats := bot.Stats()
			logger.Info("circlebot stopped",
				"runs", stats.Runs,
				"delivered", stats.Delivered,
			)
			return err
		},
	}
}
