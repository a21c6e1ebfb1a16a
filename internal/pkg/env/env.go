package env

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

var Env map[string]string

// GetEnv looks in the loaded .env map first, then the process environment.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok && val != "" {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetInt returns def when the key is unset or not an integer.
func GetInt(key string, def int) int {
	v, err := cast.ToIntE(GetEnv(key, ""))
	if err != nil || v == 0 {
		return def
	}
	return v
}

// GetDuration accepts Go duration strings ("90s", "10m").
func GetDuration(key string, def time.Duration) time.Duration {
	v, err := cast.ToDurationE(GetEnv(key, ""))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// SetupEnvFile loads the first .env found walking up from cmd/accshop.
// A missing file is tolerated so containers can rely on real environment
// variables.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",
		"../../../.env",
	}

	for _, envFile := range envFiles {
		values, err := godotenv.Read(envFile)
		if err == nil {
			Env = values
			return
		}
	}

	Env = map[string]string{}
	log.Println("[Env] no .env file found, using process environment")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
