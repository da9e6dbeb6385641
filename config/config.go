package config

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MaxConcurrency    int
	MaxRetries        int
	RenderRateLimitMs int

	ExportPath    string
	ExportFormat  string
	SVGOutputPath string
	PNGOutputPath string
	PlotSteps     int
	ChromeBin     string

	LogLevel string
}

// Load reads the .env file, if any, and returns a populated Config struct.
func Load(files ...string) *Config {
	if err := godotenv.Load(files...); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "market"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "market123"),
		PostgresDB:       getEnv("POSTGRES_DB", "market_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MaxConcurrency:    getEnvInt("MAX_CONCURRENCY", 4),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RenderRateLimitMs: getEnvInt("RENDER_RATE_LIMIT_MS", 500),

		ExportPath:    getEnv("EXPORT_PATH", "./output/results.csv"),
		ExportFormat:  strings.ToLower(getEnv("EXPORT_FORMAT", "csv")),
		SVGOutputPath: getEnv("SVG_OUTPUT_PATH", ""),
		PNGOutputPath: getEnv("PNG_OUTPUT_PATH", ""),
		PlotSteps:     getEnvInt("PLOT_STEPS", 100),
		ChromeBin:     getEnv("CHROME_BIN", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := cast.ToIntE(strings.TrimSpace(val))
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := cast.ToBoolE(strings.TrimSpace(val))
		if err == nil {
			return b
		}
	}
	return fallback
}
