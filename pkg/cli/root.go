package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/getmockd/inspectd/pkg/config"
	"github.com/getmockd/inspectd/pkg/logging"
)

var (
	// Persistent flags available to all subcommands
	configPath string
	logLevel   string
	logFormat  string
	jsonOutput bool

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inspectd",
	Short: "inspectd captures and inspects protobuf client traffic",
	Long: `inspectd records HTTP(S) exchanges through a local proxy, replays saved
sessions, and serves decoded request and response bodies on demand.

Configuration is read from a YAML file, INSPECTD_* environment variables and
flags, in increasing order of precedence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: "+config.DefaultConfigFile()+" if present)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json")
	pf.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}

// loadConfig resolves configuration for cmd. The default config file is only
// read when it exists; an explicit --config must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath
	if path == "" {
		if def := config.DefaultConfigFile(); def != "" {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = logFormat
	}
	return cfg, nil
}

// newLogger builds the process logger from cfg. The closer must be called
// on exit.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: w,
		File:   cfg.Log.File,
	})
}
