package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Strip struct {
	Dev        string `yaml:"dev"`         // e.g. /dev/spidev0.0
	SpeedHz    int    `yaml:"speed_hz"`    // e.g. 2500000
	ColorOrder string `yaml:"color_order"` // e.g. GRB
}

type Config struct {
	Driver     string  `yaml:"driver"` // "spi" | "fake"
	FPS        int     `yaml:"fps"`
	Brightness float64 `yaml:"brightness"` // 0..1 global cap
	Hue        int     `yaml:"hue"`        // starting global hue
	Addr       string  `yaml:"addr"`
	PresetDir  string  `yaml:"preset_dir"`
	Preset     string  `yaml:"preset"` // built-in preset loaded at start
	HopMS      int     `yaml:"hop_ms"` // audio hop cadence

	Strip Strip `yaml:"strip,omitempty"`
}

func Default() *Config {
	return &Config{
		Driver:     "fake",
		FPS:        60,
		Brightness: 0.8,
		Addr:       ":8080",
		PresetDir:  "presets",
		Preset:     "Triple Rings",
		HopMS:      12,
		Strip:      Strip{Dev: "/dev/spidev0.0", SpeedHz: 2500000, ColorOrder: "GRB"},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
