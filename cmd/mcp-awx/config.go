package main

import (
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/danmuck/mcp-awx/internal/config"
)

const defaultConfigPath = "mcp-awx.toml"

type flagOptions struct {
	configPath string
	transport  string
	listen     string
	httpAddr   string
}

func bindFlags(fs *flag.FlagSet) *flagOptions {
	opts := &flagOptions{}
	fs.StringVar(&opts.configPath, "config", "", "path to TOML config (default ./mcp-awx.toml when present)")
	fs.StringVar(&opts.transport, "transport", "", "tool protocol transport: stdio or tcp")
	fs.StringVar(&opts.listen, "listen", "", "tcp listen address for the tool protocol")
	fs.StringVar(&opts.httpAddr, "http", "", "optional HTTP listen address")
	return opts
}

// resolveSettings loads the config file, if any, then applies flag overrides.
// An explicit -config must exist; the implicit default path is optional.
func resolveSettings(opts *flagOptions) (config.Settings, error) {
	cfg := config.DefaultSettings()

	path := strings.TrimSpace(opts.configPath)
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !errors.Is(err, os.ErrNotExist) {
			return config.Settings{}, err
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Settings{}, err
		}
		cfg = loaded
	}

	if v := strings.TrimSpace(opts.transport); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	if v := strings.TrimSpace(opts.listen); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(opts.httpAddr); v != "" {
		cfg.HTTPAddr = v
	}
	if err := config.Validate(cfg); err != nil {
		return config.Settings{}, err
	}
	return cfg, nil
}
