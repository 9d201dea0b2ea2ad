package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/statichost/internal/infra/buildinfo"
	"github.com/yndnr/statichost/internal/infra/confloader"
	"github.com/yndnr/statichost/internal/server/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "statichost-server",
		Usage:   "Serve a static asset bundle behind a hardened front door",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"STATICHOST_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-prefix",
				Usage: "Prefix of environment variables overriding the configuration file",
				Value: confloader.DefaultEnvPrefix,
			},
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Validate the configuration and exit",
			},
		},
		Action: func(c *cli.Context) error {
			src := configSource{File: c.String("config"), EnvPrefix: c.String("env-prefix")}
			cfg, err := src.load()
			if err != nil {
				return err
			}
			if c.Bool("check") {
				fmt.Fprintln(c.App.Writer, "configuration OK")
				return nil
			}
			return run(c.Context, cfg, src)
		},
	}
}

// configSource locates the configuration: an optional YAML file plus
// environment variables carrying EnvPrefix.
type configSource struct {
	File      string
	EnvPrefix string
}

// load reads defaults, file and environment, then validates the result.
func (src configSource) load() (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{confloader.WithEnvPrefix(src.EnvPrefix)}
	if src.File != "" {
		opts = append(opts, confloader.WithConfigFile(src.File))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	config.Normalize(cfg)

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
