package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prilive-com/circlebot/internal/config"
)

// app carries what PersistentPreRunE resolved for the subcommands.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:          "circlebot",
		Short:        "Turn images and videos into circular stickers",
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Config file path (optional).")
	flags.String("log-level", "", "Log level: debug, info, warn, error.")
	flags.String("log-format", "", "Log format: text or json.")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		cfgFile, _ := flags.GetString("config")
		v, err := config.NewViper(strings.TrimSpace(cfgFile))
		if err != nil {
			return err
		}
		_ = v.BindPFlag("logging.level", flags.Lookup("log-level"))
		_ = v.BindPFlag("logging.format", flags.Lookup("log-format"))

		cfg := config.Load(v)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg.Logging, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		a.cfg, a.logger = cfg, logger
		return nil
	}

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newConvertCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
