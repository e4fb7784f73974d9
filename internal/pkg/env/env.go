package env

import (
	"os"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok && val != "" {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// SetupEnvFile loads the first .env file it finds. Container deployments
// configure everything through real environment variables, so a missing
// file is fine.
func SetupEnvFile() {
	envFiles := []string{
		".env",    // Current directory
		"../.env", // From cmd subdirectories
	}

	for _, envFile := range envFiles {
		if m, err := godotenv.Read(envFile); err == nil {
			Env = m
			return
		}
	}
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
