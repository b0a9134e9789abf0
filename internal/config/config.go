// Package config loads the server configuration from YAML with typed
// defaults. A missing file yields the defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// StorageConfig selects the durable profile backend.
type StorageConfig struct {
	// Backend is "flatfile" or "postgres".
	Backend  string         `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
}

// CurveConfig parameterizes an experience growth curve.
type CurveConfig struct {
	Formula    string  `yaml:"formula"` // linear | exponential
	Base       float64 `yaml:"base"`
	Multiplier float64 `yaml:"multiplier"`
	Exponent   float64 `yaml:"exponent"`
}

// XPConfig holds experience tuning.
type XPConfig struct {
	GlobalRate    float64            `yaml:"global_rate"`
	SkillRates    map[string]float64 `yaml:"skill_rates"`
	StartingLevel int                `yaml:"starting_level"`
	LevelCap      int                `yaml:"level_cap"`    // 0 = unlimited
	SkillCaps     map[string]int     `yaml:"skill_caps"`   // per-skill override
	ChildLevels   string             `yaml:"child_levels"` // average | min
	Curve         CurveConfig        `yaml:"curve"`
}

// PartyConfig holds party tuning.
type PartyConfig struct {
	ShareFraction   float64       `yaml:"share_fraction"`
	ShareRadius     int           `yaml:"share_radius"` // blocks, 0 = unlimited
	LevelXPFraction float64       `yaml:"level_xp_fraction"`
	InviteTTL       time.Duration `yaml:"invite_ttl"`
	Curve           CurveConfig   `yaml:"curve"`
}

// WorldConfig describes the vertical extent backing eligibility bitsets.
type WorldConfig struct {
	MinY   int `yaml:"min_y"`
	Height int `yaml:"height"`
}

// Server holds all configuration for the skill server.
type Server struct {
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	SaveInterval time.Duration `yaml:"save_interval"`

	Storage StorageConfig `yaml:"storage"`
	XP      XPConfig      `yaml:"xp"`
	Party   PartyConfig   `yaml:"party"`
	World   WorldConfig   `yaml:"world"`
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		LogLevel:     "info",
		DataDir:      "data",
		SaveInterval: 5 * time.Minute,
		Storage: StorageConfig{
			Backend: "flatfile",
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "voxmmo",
				Password: "voxmmo",
				DBName:   "voxmmo",
				SSLMode:  "disable",
			},
		},
		XP: XPConfig{
			GlobalRate:    1.0,
			StartingLevel: 0,
			LevelCap:      0,
			ChildLevels:   "average",
			Curve: CurveConfig{
				Formula:    "linear",
				Base:       1020,
				Multiplier: 20,
			},
		},
		Party: PartyConfig{
			ShareFraction:   0.5,
			ShareRadius:     75,
			LevelXPFraction: 0.25,
			InviteTTL:       time.Minute,
			Curve: CurveConfig{
				Formula:    "exponential",
				Base:       5000,
				Multiplier: 1000,
				Exponent:   1.5,
			},
		},
		World: WorldConfig{
			MinY:   -64,
			Height: 384,
		},
	}
}

// LoadServer loads server config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
