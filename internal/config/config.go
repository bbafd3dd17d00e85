package config

import (
	"os"
	"path/filepath"

	"github.com/strobo-inc/nrf52-desktop-dfu/internal/logger"
)

// AppName names the config directory and the binary
const AppName = "nrfdfu"

// Verbose enables debug output when true
var Verbose bool

// Debugf writes debug messages when Verbose is true
func Debugf(format string, args ...any) {
	if Verbose {
		logger.Debug("", format, args...)
	}
}

// Path returns the JSON file holding flag defaults. Keys are flag names with
// underscores, e.g. {"adv_name": "DfuTarg", "timeout": "15s", "prn": 12}.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		dir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(dir, AppName, "config.json")
}

// Apply sets the verbose gate and log level from the -v count and an
// explicit level name. The explicit level wins.
func Apply(verbosity int, level string) logger.LogLevel {
	lvl := logger.INFO
	switch {
	case level != "":
		lvl = logger.ParseLevel(level)
	case verbosity >= 2:
		lvl = logger.TRACE
	case verbosity == 1:
		lvl = logger.DEBUG
	}
	Verbose = lvl <= logger.DEBUG
	logger.SetLevel(lvl)
	return lvl
}
