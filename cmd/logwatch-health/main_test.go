package main

import (
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogcatPath == "" || cfg.SocketPath == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	body := "logcat-path: /system/bin/logcat\nsocket-path: /run/logwatchd.sock\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogcatPath != "/system/bin/logcat" || cfg.SocketPath != "/run/logwatchd.sock" {
		t.Fatalf("config not honored: %+v", cfg)
	}
}

func TestConfigRoundTripsThroughYAML(t *testing.T) {
	cfg := checkConfig{LogcatPath: "/system/bin/logcat", SocketPath: "/run/logwatchd.sock"}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back checkConfig
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back != cfg {
		t.Fatalf("round trip = %+v, want %+v", back, cfg)
	}
}
