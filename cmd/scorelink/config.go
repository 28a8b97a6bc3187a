package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rmax-ai/scorelink/pkg/client"
	"github.com/rmax-ai/scorelink/pkg/protocol"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	url        string
	timeout    time.Duration
	dialect    string
	verbose    bool
	configPath string
}

func (g *globalFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.url, "url", "", "engine endpoint (default from SCORELINK_SERVICE_URL or "+client.DefaultServiceURL+")")
	pf.DurationVar(&g.timeout, "timeout", 0, "receive timeout; 0 keeps the configured value")
	pf.StringVar(&g.dialect, "dialect", "", "wire dialect: fixed|legacy")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "debug logging to stderr")
	pf.StringVar(&g.configPath, "config", "", "path to a YAML config file")
}

// resolveConfig layers the sources in order: defaults, environment, config
// file, then flags that were set explicitly.
func (g *globalFlags) resolveConfig(cmd *cobra.Command, getenv func(string) string) (client.Config, error) {
	cfg, err := client.LoadConfig(getenv)
	if err != nil {
		return client.Config{}, err
	}

	if path := strings.TrimSpace(g.configPath); path != "" {
		cfg, err = client.LoadConfigFile(path, cfg)
		if err != nil {
			return client.Config{}, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.ServiceURL = strings.TrimSpace(g.url)
	}
	if flags.Changed("timeout") {
		cfg.RecvTimeout = g.timeout
	}
	if flags.Changed("dialect") {
		d, err := protocol.ParseDialect(strings.ToLower(strings.TrimSpace(g.dialect)))
		if err != nil {
			return client.Config{}, err
		}
		cfg.Dialect = d
	}

	if err := cfg.Validate(); err != nil {
		return client.Config{}, err
	}
	return cfg, nil
}

func (g *globalFlags) logger() (*zap.Logger, error) {
	if g.verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

func (g *globalFlags) newClient(cmd *cobra.Command, getenv func(string) string, logger *zap.Logger) (*client.Client, error) {
	cfg, err := g.resolveConfig(cmd, getenv)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return client.NewClient(cfg, client.WithLogger(logger))
}
