package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/user/termcore/configs"
	"github.com/user/termcore/internal/config"
)

type rootFlags struct {
	configPath string
	serve      string
	transcript string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "termcore",
		Short: "Run a shell on a pseudo-terminal and mirror its output",
		Long: `termcore starts a shell on a PTY, splits its output into text and
control tokens and keeps a scrollback of what it printed. Lines read from
stdin are sent to the shell. With --serve the session is also available
over a websocket, a JSON API and Prometheus metrics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stderr, cfg.Log.Level)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return run(cmd.Context(), cfg, os.Stdin, os.Stdout)
		},
	}

	flags.bind(cmd)
	cmd.AddCommand(newConfigCmd())
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print an annotated default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(configs.Example)
			return err
		},
	}
}

func (f *rootFlags) bind(cmd *cobra.Command) {
	defaultPath, _ := config.DefaultPath()
	cmd.Flags().StringVarP(&f.configPath, "config", "c", defaultPath, "config file")
	cmd.Flags().StringVar(&f.serve, "serve", "", "listen address for the websocket, API and metrics server (e.g. 127.0.0.1:8765)")
	cmd.Flags().StringVar(&f.transcript, "transcript", "", "SQLite file to record the session transcript in")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command, flags rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("serve") {
		cfg.Server.Addr = flags.serve
	}
	if cmd.Flags().Changed("transcript") {
		cfg.Transcript.Path = flags.transcript
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureToken(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to a terminal and JSON logs anywhere else.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	if cfg.Server.Addr == "" {
		return
	}
	fmt.Fprintf(w, "\ntermcore serving at ws://%s/ws?token=%s\n\n", cfg.Server.Addr, cfg.Server.Token)
}
