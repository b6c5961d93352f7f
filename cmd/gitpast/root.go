package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rybkr/gitpast/internal/config"
	"github.com/rybkr/gitpast/internal/logging"
)

// app holds what every subcommand shares once flags are parsed.
type app struct {
	verbosity  int
	configPath string
	logFormat  string

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "gitpast",
		Short: "Read files and commit history straight from a git repository",
		Long: `gitpast reads files as they were at any revision, using "[revision:]path"
designators, and draws the commit history of the repository that holds them.
Files outside any repository are read from the filesystem.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: ./gitpast.toml or the user config dir)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newCatCmd(a),
		newHistoryCmd(a),
		newDiffCmd(a),
		newServeCmd(a),
	)
	return root
}

// setup loads the config, lets flags override it and installs the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("verbose") {
		cfg.Verbosity = a.verbosity
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	format, err := logging.ParseFormat(cfg.Log.Format)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = logging.New(cmd.ErrOrStderr(), logging.LevelFromVerbosity(cfg.Verbosity), format)
	slog.SetDefault(a.log)
	if cfg.File != "" {
		a.log.Debug("loaded config", "file", cfg.File)
	}
	return nil
}
