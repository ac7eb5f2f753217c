package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file and wins over every other location
	EnvConfigPath = "HEIMDALL_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "heimdall.yaml"
	// ConfigDirName is the per-user and system directory holding config.yaml
	ConfigDirName = "heimdall"
)

// FindConfigPath returns the first config file that exists, checking
// $HEIMDALL_CONFIG, ./heimdall.yaml, $XDG_CONFIG_HOME/heimdall,
// ~/.config/heimdall and /etc/heimdall in that order. A missing file is
// not an error: the empty string means run on defaults.
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" && fileExists(path) {
		return path
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	for _, dir := range configDirs() {
		path := filepath.Join(dir, ConfigDirName, "config.yaml")
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// configDirs lists the directories that may hold a heimdall/ config dir
func configDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, xdg)
	}
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config"))
	}
	return append(dirs, "/etc")
}

// EnsureConfigDir creates the directory that will hold configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
