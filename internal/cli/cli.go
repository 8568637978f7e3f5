// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/whytree/internal/config"
	"github.com/jeranaias/whytree/internal/logging"
	"github.com/jeranaias/whytree/internal/storage"
	"github.com/jeranaias/whytree/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app carries what every command needs once the root command has run.
type app struct {
	configPath string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
	closer io.Closer
}

// loadConfig reads the config file named by --config, or the default one.
func (a *app) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromPath(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if a.noColor {
		cfg.UI.NoColor = true
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg
	return nil
}

// setupLogging installs the default logger. The terminal view owns the
// screen, so fullScreen sends logs to the log directory only.
func (a *app) setupLogging(stderr io.Writer, fullScreen bool) error {
	level, err := logging.ParseLevel(a.cfg.Logging.Level)
	if err != nil {
		return usageError("%v", err)
	}
	lc := logging.FromEnv(logging.Config{
		Level:  level,
		Stderr: stderr,
	})
	if fullScreen {
		lc.Quiet = true
		lc.LogDir = a.cfg.Logging.Dir
	}
	logger, closer, err := logging.Setup(lc)
	if err != nil {
		return err
	}
	a.logger = logger
	a.closer = closer
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

// openStore opens the configured storage backend.
func (a *app) openStore() (storage.Store, error) {
	return storage.Open(storage.Config{
		Backend:  a.cfg.Storage.Backend,
		Path:     a.cfg.Storage.Dir(),
		MaxTrees: a.cfg.Storage.MaxTrees,
		Logger:   a.logger,
	})
}

// theme builds the terminal theme for w.
func (a *app) theme(w io.Writer) *styles.Theme {
	return styles.NewTheme(styles.ThemeOptions{
		Mode:    a.cfg.UI.Theme,
		NoColor: a.cfg.UI.NoColor || !ColorsEnabled(w),
		Output:  w,
	})
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the whytree command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "whytree",
		Short: "Grow a tree of questions and answers from one question",
		Long: `whytree asks a language model a question, then asks it follow-up
questions about its own answers, growing a tree you can steer, prune and save.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.loadConfig(); err != nil {
				return err
			}
			// explore and replay decide for themselves once they know
			// whether they take the screen.
			if cmd.Annotations["logging"] == "deferred" {
				return nil
			}
			return a.setupLogging(cmd.ErrOrStderr(), false)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default ~/.whytree/config.toml)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newExploreCommand(a),
		newReplayCommand(a),
		newHistoryCommand(a),
		newExportCommand(a),
		newExamplesCommand(a),
		newPersonasCommand(a),
		newRelayCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// Skip config loading so version works with a broken config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "whytree %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
			return nil
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	a := &app{}
	defer a.close()

	root := newRootCommand(a)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
	}
	return ExitCode(err)
}
