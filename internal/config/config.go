// ABOUTME: YAML configuration for the player
// ABOUTME: File is optional; missing settings get practical defaults
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is everything the player reads at startup.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Device  DeviceConfig  `yaml:"device"`
	Audio   AudioConfig   `yaml:"audio"`
	Log     LogConfig     `yaml:"log"`
}

// ServiceConfig locates the catalog and streaming service.
type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DeviceConfig identifies this client for authentication.
type DeviceConfig struct {
	MAC    string `yaml:"mac"`
	ChipID string `yaml:"chip_id"`
	Secret string `yaml:"secret"`
}

// AudioConfig holds output device settings.
type AudioConfig struct {
	SampleRate int  `yaml:"sample_rate"`
	Volume     int  `yaml:"volume"`
	Lyrics     bool `yaml:"lyrics"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate: 44100,
			Volume:     80,
			Lyrics:     true,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. A missing file is not an error;
// a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > 100 {
		cfg.Audio.Volume = 80
	}
	return cfg, nil
}
