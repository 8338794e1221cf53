// Package commands implements the CLI commands for kiln.
package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.trai.ch/kiln/internal/app"
	"go.trai.ch/kiln/internal/build"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

// DefaultConfigPath is the manifest read when --config is not given.
const DefaultConfigPath = "kiln.yaml"

// CLI represents the command line interface for kiln.
type CLI struct {
	app     *app.App
	logger  ports.Logger
	rootCmd *cobra.Command

	configPath string
	verbose    bool
	json       bool
	logFile    *os.File
}

// New creates a new CLI instance with the given components.
func New(c *app.Components) *CLI {
	rootCmd := &cobra.Command{
		Use:           "kiln",
		Short:         "Build a system from source packages",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       build.Version,
	}

	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	cli := &CLI{
		app:     c.App,
		logger:  c.Logger,
		rootCmd: rootCmd,
	}

	rootCmd.PersistentFlags().StringVarP(&cli.configPath, "config", "c", DefaultConfigPath, "Path to the build manifest")
	rootCmd.PersistentFlags().BoolVar(&cli.verbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&cli.json, "json", false, "Write logs as JSON")
	rootCmd.PersistentPreRun = func(_ *cobra.Command, _ []string) {
		cli.applyFlags()
	}

	rootCmd.AddCommand(
		cli.newBuildCmd(),
		cli.newFetchCmd(),
		cli.newPlanCmd(),
		cli.newInstallCmd(),
		cli.newRemoveCmd(),
		cli.newUpgradeCmd(),
		cli.newListCmd(),
		cli.newInfoCmd(),
		cli.newVersionCmd(),
	)

	return cli
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	defer c.closeLogFile()
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput redirects command output. Used for testing.
func (c *CLI) SetOutput(w io.Writer) {
	c.rootCmd.SetOut(w)
	c.rootCmd.SetErr(w)
}

func (c *CLI) applyFlags() {
	settings, ok := c.logger.(app.LogSettings)
	if !ok {
		return
	}
	if c.verbose {
		settings.SetLevel("debug")
	}
	settings.SetJSON(c.json)
}

// open opens the build root and applies the manifest's logging settings.
// Command line flags take precedence.
func (c *CLI) open() (*app.Session, error) {
	sess, err := c.app.Open(c.configPath)
	if err != nil {
		return nil, err
	}
	if err := c.configureLogging(sess.Manifest.Logging); err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *CLI) configureLogging(cfg domain.LoggingConfig) error {
	settings, ok := c.logger.(app.LogSettings)
	if !ok {
		return nil
	}

	if cfg.Level != "" {
		settings.SetLevel(cfg.Level)
	}
	if c.verbose || cfg.Verbose {
		settings.SetLevel("debug")
	}
	settings.SetJSON(c.json || cfg.JSON)

	if cfg.File == "" || c.logFile != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create log directory"), "path", cfg.File)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.FilePerm) //nolint:gosec // path is provided by user
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open log file"), "path", cfg.File)
	}
	c.logFile = f
	settings.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}

func (c *CLI) closeLogFile() {
	if c.logFile == nil {
		return
	}
	if settings, ok := c.logger.(app.LogSettings); ok {
		settings.SetOutput(os.Stderr)
	}
	_ = c.logFile.Close()
	c.logFile = nil
}
