package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/thesyncim/mediagraph"
)

// DefaultOutput receives command output.
var DefaultOutput io.Writer = os.Stdout

var (
	cfgFile     string
	servicesDir string
	profileName string
	logLevel    string
	cfg         *Config
)

var rootCmd = &cobra.Command{
	Use:   "mediagraph",
	Short: "Build and run media processing graphs",
	Long: `mediagraph builds graphs of producers, filters, transitions and
consumers from YAML project files and runs them.

Examples:
  mediagraph run project.yaml
  mediagraph run --consumer dump:out.mgd
  mediagraph services filter
  mediagraph probe testpattern:bars --frames 3`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./mediagraph.yaml if present)")
	flags.StringVar(&servicesDir, "services", "", "service descriptor directory (default: built-in services)")
	flags.StringVar(&profileName, "profile", "", "default profile name or file")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

// loadConfig merges CLI flags > config file > defaults.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path := cfgFile
	if path == "" {
		path = FindConfigFile()
	}
	c := DefaultConfig()
	if path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return err
		}
		c = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("services") {
		c.ServicesDir = servicesDir
	}
	if flags.Changed("profile") {
		c.Profile = profileName
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if err := c.Validate(); err != nil {
		return err
	}
	cfg = c
	return nil
}

// newFactory creates the service factory for the loaded configuration.
func newFactory() (*mediagraph.Factory, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	opts := []mediagraph.FactoryOption{mediagraph.WithLogger(cfg.Logger())}
	if cfg.Profile != "" {
		p, err := mediagraph.LoadProfile(cfg.Profile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mediagraph.WithProfile(p))
	}
	return mediagraph.NewFactory(cfg.ServicesDir, opts...)
}
