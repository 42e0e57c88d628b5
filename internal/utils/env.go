package utils

import (
	"os"
	"strings"
)

// EnvPrefix is the prefix shared by every variable the binaries read,
// matching the viper env prefix in internal/config.
const EnvPrefix = "VOX_"

// SafeEnv returns the trimmed value of key, or fallback when it is unset or blank.
func SafeEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// Env is SafeEnv for a VOX_-prefixed name: Env("CONFIG", "") reads VOX_CONFIG.
func Env(name, fallback string) string {
	return SafeEnv(EnvPrefix+strings.ToUpper(name), fallback)
}
