// Package config implements the crawler's configuration struct, layered the
// way the teacher's own Settings.go layers a YAML file beneath explicit
// overrides: spec §1 treats the configuration struct as an external
// collaborator the core only reads from.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every path and bind parameter the engine needs. The zero
// value leaves every field empty; Default returns the documented defaults
// (spec §9 / original_source/src/config.h).
type Config struct {
	LocalIPv4 string `yaml:"LocalIPv4"`
	LocalIPv6 string `yaml:"LocalIPv6"`
	LocalPort string `yaml:"LocalPort"`

	Seeds []string `yaml:"Seeds"`

	RestoreFile string `yaml:"RestoreFile"`
	DumpFile    string `yaml:"DumpFile"`
	LogFile     string `yaml:"LogFile"`

	// StatusAddr, if non-empty, starts the observability HTTP/WS server.
	StatusAddr string `yaml:"StatusAddr"`
	// PogrebDir, if non-empty, enables the durable dedup store.
	PogrebDir string `yaml:"PogrebDir"`

	// NetworkMagic selects which Bitcoin-family network to speak to:
	// "main", "testnet", "testnet3" (default), or "namecoin".
	NetworkMagic string `yaml:"NetworkMagic"`
}

// Default returns the documented defaults (original_source/src/config.h:
// dump file "nodemap.txt", log file "btclog.txt").
func Default() Config {
	return Config{
		DumpFile:     "nodemap.txt",
		LogFile:      "btclog.txt",
		NetworkMagic: "testnet3",
	}
}

// Load reads a YAML config file over the documented defaults. A missing
// file is not an error: the defaults (further overridable by CLI flags)
// apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
