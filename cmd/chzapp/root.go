package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dshills/chzapp/internal/app"
	"github.com/dshills/chzapp/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	cfgFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chzapp",
		Short: "Inspect and scaffold component hook units",
		Long: titleStyle.Render("chzapp") + mutedStyle.Render(" - component hook tooling") + `

Hook units extend components with properties, methods and event
listeners. They live in the hook directory as TOML, YAML, JSON or Lua
files named after the component they target.

` + mutedStyle.Render("Examples:") + `
  chzapp hooks list cache.Memory     List units for a component
  chzapp hooks check --strict        Load every unit, fail on errors
  chzapp hooks new session.Session audit
  chzapp config show                 Print the effective configuration`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "chzapp.toml", "config file (TOML or YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(newHooksCmd(opts))
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig reads the config file and applies the --log-level override.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		if _, err := log.ParseLevel(o.logLevel); err != nil {
			return nil, fmt.Errorf("invalid --log-level %q", o.logLevel)
		}
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// openApp builds an application logging to errOut.
func (o *rootOptions) openApp(errOut io.Writer) (*app.Application, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(app.Options{Config: cfg, LogOutput: errOut})
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chzapp %s (%s)\n", Version, Commit)
		},
	}
}
