package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ClaudeRoot string `toml:"claude_root"`
	DBPath     string `toml:"db_path"`
	StateFile  string `toml:"state_file"`
	RulesFile  string `toml:"rules_file"`
	ExportDir  string `toml:"export_dir"`
	Workers    int    `toml:"workers"`
}

// DefaultPath is the config file read when no path is given.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir(home), "config.toml"), nil
}

func configDir(home string) string {
	return filepath.Join(home, ".config", "aisx")
}

// Load returns the defaults overlaid with the TOML file at path. An empty
// path means DefaultPath; a missing default file is not an error, a
// missing explicit one is.
func Load(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	stateDir := filepath.Join(home, ".claude-code-chat-browser")
	cfg := &Config{
		ClaudeRoot: filepath.Join(home, ".claude", "projects"),
		DBPath:     filepath.Join(configDir(home), "aisx.db"),
		StateFile:  filepath.Join(stateDir, "export_state.json"),
		RulesFile:  filepath.Join(stateDir, "exclusion-rules.txt"),
		ExportDir:  cwd,
		Workers:    4,
	}

	explicit := path != ""
	if !explicit {
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	// expand ~ in paths
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.StateFile = expandHome(cfg.StateFile, home)
	cfg.RulesFile = expandHome(cfg.RulesFile, home)
	cfg.ExportDir = expandHome(cfg.ExportDir, home)
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	return cfg, nil
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
