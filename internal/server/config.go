package server

import (
	"encoding/json"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/navdash/navdash/internal/location"
	"github.com/navdash/navdash/internal/motion"
)

// Config holds all dashboard configuration.
type Config struct {
	mu sync.RWMutex

	Location LocationConfig `yaml:"location" json:"location"`
	Motion   MotionConfig   `yaml:"motion" json:"motion"`
	Display  DisplayConfig  `yaml:"display" json:"display"`
	Server   ServerConfig   `yaml:"server" json:"server"`

	path string // file path for save/load
}

// LocationConfig selects and configures the location backend.
type LocationConfig struct {
	Type string              `yaml:"type" json:"type"` // "nmea", "gpsd" or "demo"
	NMEA location.NMEAConfig `yaml:"nmea" json:"nmea"`
	GPSD location.GPSDConfig `yaml:"gpsd" json:"gpsd"`
}

// MotionConfig selects and configures the motion backend.
type MotionConfig struct {
	Type    string               `yaml:"type" json:"type"` // "mpu9250" or "demo"
	MPU9250 motion.MPU9250Config `yaml:"mpu9250" json:"mpu9250"`
}

// DisplayConfig holds presentation preferences, pushed to web clients on
// connect and on change.
type DisplayConfig struct {
	Units UnitsConfig `yaml:"units" json:"units"`
	Theme string      `yaml:"theme" json:"theme"` // "dark" or "light"
}

type UnitsConfig struct {
	Speed    string `yaml:"speed" json:"speed"`       // "kph" or "mph"
	Altitude string `yaml:"altitude" json:"altitude"` // "m" or "ft"
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
	LogLevel   string `yaml:"log_level" json:"logLevel"` // "debug" or "info"
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Location: LocationConfig{
			Type: "demo",
			NMEA: location.NMEAConfig{
				PortPath: "/dev/ttyGPS",
				BaudRate: 9600,
			},
			GPSD: location.GPSDConfig{
				Addr: "127.0.0.1:2947",
			},
		},
		Motion: MotionConfig{
			Type: "demo",
			MPU9250: motion.MPU9250Config{
				SPIDevice: "/dev/spidev0.0",
				CSPin:     "18",
			},
		},
		Display: DisplayConfig{
			Units: UnitsConfig{Speed: "kph", Altitude: "m"},
			Theme: "dark",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			LogLevel:   "info",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies environment
// variable overrides. Falls back to defaults if the file is missing or
// malformed.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			cfg = DefaultConfig()
			cfg.path = path
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: LOCATION_TYPE, GPS_PORT, GPS_BAUD, GPSD_ADDR, MOTION_TYPE,
// IMU_SPI, IMU_CS, LISTEN_ADDR, SPEED_UNIT, ALTITUDE_UNIT, LOG_LEVEL.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOCATION_TYPE"); v != "" {
		c.Location.Type = v
	}
	if v := os.Getenv("GPS_PORT"); v != "" {
		c.Location.NMEA.PortPath = v
	}
	if v := os.Getenv("GPS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Location.NMEA.BaudRate = n
		}
	}
	if v := os.Getenv("GPSD_ADDR"); v != "" {
		c.Location.GPSD.Addr = v
	}
	if v := os.Getenv("MOTION_TYPE"); v != "" {
		c.Motion.Type = v
	}
	if v := os.Getenv("IMU_SPI"); v != "" {
		c.Motion.MPU9250.SPIDevice = v
	}
	if v := os.Getenv("IMU_CS"); v != "" {
		c.Motion.MPU9250.CSPin = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := os.Getenv("SPEED_UNIT"); v != "" {
		c.Display.Units.Speed = v
	}
	if v := os.Getenv("ALTITUDE_UNIT"); v != "" {
		c.Display.Units.Altitude = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Save writes the config back to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "/etc/navdash/config.yaml"
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// ToJSON serializes the config for the API.
func (c *Config) ToJSON() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c)
}

// UpdateFromJSON applies a partial JSON update. Fields absent from the
// incoming document keep their current values.
func (c *Config) UpdateFromJSON(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return json.Unmarshal(data, c)
}

// DisplaySnapshot returns a copy of the display preferences.
func (c *Config) DisplaySnapshot() DisplayConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Display
}
