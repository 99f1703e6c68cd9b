// Command logwatch-health runs the daemon's liveness probe once and, when
// the log source is readable, signals readiness over the control socket
// with a no-op command. Exit status 0 means the monitoring pipeline is
// usable end to end.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tinytelemetry/logwatchd/internal/control"
	"github.com/tinytelemetry/logwatchd/internal/logsource"
	"github.com/tinytelemetry/logwatchd/internal/model"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type checkConfig struct {
	LogcatPath string `mapstructure:"logcat-path" yaml:"logcat-path"`
	SocketPath string `mapstructure:"socket-path" yaml:"socket-path"`
}

func main() {
	var configPath string
	var printConfig bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/logwatchd/config.yml)")
	flag.BoolVar(&printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	flag.Parse()

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if printConfig {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error rendering config: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	if !logsource.Probe(cfg.LogcatPath) {
		fmt.Fprintf(os.Stderr, "unhealthy: log source %s is not readable\n", cfg.LogcatPath)
		os.Exit(1)
	}

	if err := control.Noop(cfg.SocketPath); err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("healthy")
}

func loadConfig(configPath string) (checkConfig, error) {
	var cfg checkConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("LOGWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("logcat-path", model.DefaultLogcatPath)
	v.SetDefault("socket-path", control.DefaultSocketPath())

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logwatchd", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if strings.HasPrefix(cfg.SocketPath, "~/") {
		cfg.SocketPath = filepath.Join(home, cfg.SocketPath[2:])
	}

	return cfg, nil
}
