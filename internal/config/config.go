package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server Server `yaml:"server"`

	Database Database `yaml:"database"`

	JWT JWT `yaml:"jwt"`

	SMTP SMTP `yaml:"smtp"`

	Redis Redis `yaml:"redis"`

	Invitations Invitations `yaml:"invitations"`

	Authz Authz `yaml:"authz"`

	Log Log `yaml:"log"`
}

type Server struct {
	Address string `yaml:"address"`
	Mode    string `yaml:"mode"`

	// AllowedOrigins limits websocket upgrades. Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type JWT struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // In Hours
}

type Database struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	MaxOpenConns  int    `yaml:"max_open_conns"`
	MaxIdleConns  int    `yaml:"max_idle_conns"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type SMTP struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Redis backs the outbound email queue. An empty URL sends mail inline.
type Redis struct {
	URL     string `yaml:"url"`
	Workers int    `yaml:"workers"`
}

type Invitations struct {
	TTLDays   int    `yaml:"ttl_days"`
	AcceptURL string `yaml:"accept_url"`
}

type Authz struct {
	// LegacyRoleFallback consults users.role when no membership row exists
	// for the user's current location. Deprecated; kept for data that has not
	// been reconciled into location_user yet.
	LegacyRoleFallback   bool `yaml:"legacy_role_fallback"`
	MaxLocationsPerOwner int  `yaml:"max_locations_per_owner"` // 0 = unlimited
}

type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Load() (*Config, error) {
	configPath := "configs/development.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}

	f, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.JWT.Secret = v
	}
	if v := os.Getenv("DATABASE_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		c.SMTP.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
	if c.JWT.ExpiresIn == 0 {
		c.JWT.ExpiresIn = 24
	}
	if c.Invitations.TTLDays == 0 {
		c.Invitations.TTLDays = 7
	}
	if c.Redis.Workers == 0 {
		c.Redis.Workers = 2
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
