package utils

import (
	"os"
	"strings"
)

// Environment returns ENVIRONMENT, defaulting to development.
func Environment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "" {
		return "development"
	}
	return env
}

func IsDev() bool {
	env := Environment()
	return env == "development" || env == "dev" || env == "local"
}
