package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DB     DBConfig
	Server ServerConfig
	Atlas  AtlasConfig
	Seeder SeederConfig
}

// DBType represents database type
type DBType string

const (
	DBTypePostgreSQL DBType = "postgres"
	DBTypeMemory     DBType = "memory"
)

// DBConfig holds database configuration
type DBConfig struct {
	Type     DBType
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// AtlasConfig holds settings for the search pipeline and its remote
// sources. The Getty deadlines are configurable because the hard default
// exceeds most HTTP client timeouts.
type AtlasConfig struct {
	DataDir         string
	FlagDir         string
	FlagIndexURL    string
	GeonamesURL     string
	GeonamesUser    string
	GeonamesTimeout time.Duration
	GettyURL        string
	GettyTimeout    time.Duration
	GettySoftLimit  time.Duration
}

// SeederConfig holds settings for data import
type SeederConfig struct {
	BatchSize     int
	MinPopulation int
}

// DSN returns the database connection string
func (c DBConfig) DSN() string {
	if c.Type == DBTypeMemory {
		// SQLite in-memory database
		if c.Name != "" && c.Name != "atlas" {
			return fmt.Sprintf("file:%s?mode=memory&cache=shared", c.Name)
		}
		return "file::memory:?cache=shared"
	}
	// PostgreSQL connection string
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// IsMemory returns true if using in-memory database
func (c DBConfig) IsMemory() bool {
	return c.Type == DBTypeMemory
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbType := DBType(getEnv("DB_TYPE", "memory"))
	if dbType != DBTypePostgreSQL && dbType != DBTypeMemory {
		dbType = DBTypeMemory
	}

	// DB_PWD is the legacy name still used by some deployments
	password := getEnv("DB_PASSWORD", "")
	if password == "" {
		password = getEnv("DB_PWD", "atlas_password")
	}

	config := &Config{
		DB: DBConfig{
			Type:     dbType,
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "atlas"),
			Password: password,
			Name:     getEnv("DB_NAME", "atlas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Server: ServerConfig{
			Port: getEnv("PORT", getEnv("APP_PORT", "8080")),
		},
		Atlas: AtlasConfig{
			DataDir:         getEnv("ATLAS_DATA_DIR", "data"),
			FlagDir:         getEnv("ATLAS_FLAG_DIR", "public/flags"),
			FlagIndexURL:    getEnv("ATLAS_FLAG_INDEX_URL", ""),
			GeonamesURL:     getEnv("GEONAMES_URL", "http://api.geonames.org"),
			GeonamesUser:    getEnv("GEONAMES_USER", "skyview"),
			GeonamesTimeout: getEnvAsDuration("GEONAMES_TIMEOUT", 20*time.Second),
			GettyURL:        getEnv("GETTY_URL", "http://www.getty.edu"),
			GettyTimeout:    getEnvAsDuration("GETTY_TIMEOUT", 110*time.Second),
			GettySoftLimit:  getEnvAsDuration("GETTY_SOFT_LIMIT", 40*time.Second),
		},
		Seeder: SeederConfig{
			BatchSize:     getEnvAsInt("SEEDER_BATCH_SIZE", 10000),
			MinPopulation: getEnvAsInt("SEEDER_MIN_POPULATION", 500),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// bare numbers are seconds
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
