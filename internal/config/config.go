package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultMaxUploadBytes = 50 << 20
	defaultBatchSize      = 1000
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port           string `yaml:"port"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"` // "postgres" or "sqlite"
		URL    string `yaml:"url"`    // PostgreSQL DSN or SQLite path
	} `yaml:"database"`
	Auth struct {
		JWTSecret   string   `yaml:"jwt_secret"`
		UploadRoles []string `yaml:"upload_roles"`
	} `yaml:"auth"`
	Ingest struct {
		BatchSize int `yaml:"batch_size"`
	} `yaml:"ingest"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	if config.Database.Driver != DriverPostgres && config.Database.Driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8000"
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Driver == DriverSQLite && c.Database.URL == "" {
		c.Database.URL = "./data/sentiment_eval.db"
	}
	c.Database.URL = os.ExpandEnv(c.Database.URL)

	c.Auth.JWTSecret = os.ExpandEnv(c.Auth.JWTSecret)
	if len(c.Auth.UploadRoles) == 0 {
		c.Auth.UploadRoles = []string{"admin", "researcher"}
	}

	if c.Ingest.BatchSize == 0 {
		c.Ingest.BatchSize = defaultBatchSize
	}
}
