package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	CellsMeasured = "measured"
	CellsFixed    = "fixed"
)

// Config holds connection defaults and display tuning. Flags override it.
type Config struct {
	Host       string  `json:"host,omitempty"`
	Port       string  `json:"port,omitempty"`
	CellSize   string  `json:"cell_size,omitempty"`
	CellWidth  float64 `json:"cell_width,omitempty"`
	CellHeight float64 `json:"cell_height,omitempty"`
	OffsetX    float64 `json:"offset_x,omitempty"`
	OffsetY    float64 `json:"offset_y,omitempty"`
	RecordPath string  `json:"record_path,omitempty"`
}

// cellSizer picks the cell strategy. Fixed cells default to 10x17.
func (c *Config) cellSizer() (CellSizer, error) {
	switch c.CellSize {
	case "", CellsMeasured:
		return MeasuredCells{}, nil
	case CellsFixed:
		cells := DefaultFixedCells
		if c.CellWidth != 0 {
			cells.Width = c.CellWidth
		}
		if c.CellHeight != 0 {
			cells.Height = c.CellHeight
		}
		if !validCellSide(cells.Width) || !validCellSide(cells.Height) {
			return nil, fmt.Errorf("%w: %gx%g", ErrInvalidCellSize, cells.Width, cells.Height)
		}
		return cells, nil
	}
	return nil, fmt.Errorf("unknown cell size strategy %q (want %s or %s)", c.CellSize, CellsMeasured, CellsFixed)
}

func (c *Config) offsets() Offsets {
	return Offsets{Horizontal: c.OffsetX, Vertical: c.OffsetY}
}

// configPathOverride allows tests and --config to redirect the config file
var configPathOverride string

func getConfigPath() string {
	if configPathOverride != "" {
		dir := filepath.Dir(configPathOverride)
		os.MkdirAll(dir, 0700)
		return configPathOverride
	}
	home, _ := os.UserHomeDir()
	configDir := filepath.Join(home, ".remote-term-bridge")
	os.MkdirAll(configDir, 0700)
	return filepath.Join(configDir, "config.json")
}

func loadConfig() (*Config, error) {
	data, err := os.ReadFile(getConfigPath())
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", getConfigPath(), err)
	}
	return &config, nil
}

func saveConfig(config *Config) error {
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(getConfigPath(), data, 0600)
}
