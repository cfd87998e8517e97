package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration for the server. Every value can also be
// set through a flag or SCREE_* environment variable, which takes
// precedence over the file.
type Config struct {
	HTTP struct {
		// Addr is the listen address for the registry itself.
		Addr string `yaml:"addr"`
		// DebugAddr, when set, serves /metrics and /debug/vars on a
		// second listener.
		DebugAddr string `yaml:"debug_addr"`
	} `yaml:"http"`
	Storage struct {
		// Root is the directory holding blobs, manifests and staged
		// uploads.
		Root string `yaml:"root"`
	} `yaml:"storage"`
	Auth struct {
		// HTPasswd points at a bcrypt htpasswd file. Takes
		// precedence over Username/Password.
		HTPasswd string `yaml:"htpasswd"`
		// Username and Password configure a single static
		// credential pair.
		Username string `yaml:"username"`
		Password string `yaml:"password"`
	} `yaml:"auth"`
	Webhook struct {
		// URL, when set, receives a POST per pushed manifest.
		URL string `yaml:"url"`
	} `yaml:"webhook"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func defaultConfig() *Config {
	cfg := new(Config)
	cfg.HTTP.Addr = ":5000"
	cfg.Storage.Root = "/var/lib/scree"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// loadConfig reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read configuration: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse configuration: %w", err)
	}
	return cfg, nil
}
