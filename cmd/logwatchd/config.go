package main

import "github.com/tinytelemetry/logwatchd/internal/model"

const (
	defaultBindHost   = "127.0.0.1"
	defaultAPIPort    = model.DefaultAPIPort
	defaultLogcatPath = model.DefaultLogcatPath
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	StateDir        string `mapstructure:"state-dir"`
	LogFile         string `mapstructure:"log-file"`
	DebugLogEnabled bool   `mapstructure:"debug-log-enabled"`
	DebugLogFile    string `mapstructure:"debug-log-file"`
	SocketPath      string `mapstructure:"socket-path"`
	LogcatPath      string `mapstructure:"logcat-path"`
	APIEnabled      bool   `mapstructure:"api-enabled"`
	APIPort         int    `mapstructure:"api-port"`
	APIAddr         string `mapstructure:"api-addr"`
	ConfigPath      string `mapstructure:"-"` // not from config file
}
