package env

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetBool reads a boolean flag; only the exact string "true" enables it.
func GetBool(key string) bool {
	return strings.EqualFold(GetEnv(key, "false"), "true")
}

func SetupEnvFile() {
	// Look for .env file in project root
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/* to project root
		"../../../.env", // Fallback for deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			// Successfully loaded env file
			return
		}
	}

	// If we get here, no env file was found
	panic("No .env file found in any of the expected locations")
}

// coreKeys are required for the subscription pipeline to operate at all.
// Missing entries are a startup failure, not a per-request one.
var coreKeys = []string{
	"DB_USER",
	"DB_NAME",
	"STRIPE_API_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"MAGIC_LINK_SECRET",
	"CLIENT_APP_URL",
	"AUTH0_DOMAIN",
	"AUTH0_CLIENT_ID",
	"AUTH0_CLIENT_SECRET",
}

// ValidateCoreConfig reports every required key that is unset so operators
// see the full list in one pass instead of fixing them one by one.
func ValidateCoreConfig() error {
	var missing []string
	for _, key := range coreKeys {
		if GetEnv(key, "") == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
