package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	ServerPort  string
	Environment string

	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Redis configuration
	RedisAddress string

	// Graph artifact store: http(s) base URL or a local directory
	// holding one serialized adjacency graph per layer name.
	GraphArtifactURL string

	// Edit lock configuration
	LockMaxIdle   time.Duration
	LockSweepTick time.Duration

	// Bulk import policy: whether a parent with exactly one child is
	// healed to parent level during import.
	ImportHealSingleChild bool

	FrontendAddress string
}

// Global application configuration
var AppConfig Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	// Find .env file
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		// Try to find .env in parent directories
		envPath = filepath.Join("..", ".env")
		if _, err := os.Stat(envPath); os.IsNotExist(err) {
			envPath = filepath.Join("..", "..", ".env")
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	AppConfig = Config{
		ServerPort:            getEnv("PORT", "8080"),
		Environment:           getEnv("ENV", "development"),
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", "postgres"),
		DBName:                getEnv("DB_NAME", "districtr"),
		RedisAddress:          getEnv("REDIS_ADDRESS", "localhost:6379"),
		GraphArtifactURL:      getEnv("GRAPH_ARTIFACT_URL", "./graphs"),
		LockMaxIdle:           getEnvDuration("LOCK_MAX_IDLE", 30*time.Minute),
		LockSweepTick:         getEnvDuration("LOCK_SWEEP_TICK", 5*time.Minute),
		ImportHealSingleChild: getEnvBool("IMPORT_HEAL_SINGLE_CHILD", false),
		FrontendAddress:       getEnv("FRONTEND_ADDRESS", "https://production-frontend.com"),
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration for %s: %v", key, err)
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid bool for %s: %v", key, err)
		return defaultValue
	}
	return b
}
