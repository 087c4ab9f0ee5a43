package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	envVar         = "ENV"
	baseURLVar     = "BASE_URL"
	logLevelEnvVar = "LOG_LEVEL"
)

type EnvVars struct {
	file *fileConfig
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, e.fileValue(func(f *fileConfig) string { return f.Port }, "8080"))
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return GetEnv(appNameVar, e.fileValue(func(f *fileConfig) string { return f.AppName }, "Research Office Portal"))
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(GetEnv(envVar, e.fileValue(func(f *fileConfig) string { return f.Env }, "DEV")))
}

// GetBaseURL returns the externally visible base URL (e.g. "https://research.example.edu").
// It is used to build the Google OAuth redirect URL.
func (e EnvVars) GetBaseURL() string {
	return strings.TrimSuffix(GetEnv(baseURLVar, e.fileValue(func(f *fileConfig) string { return f.BaseURL }, "http://localhost:8080")), "/")
}

func (e EnvVars) GetLogLevel() string {
	return GetEnv(logLevelEnvVar, e.fileValue(func(f *fileConfig) string { return f.LogLevel }, "info"))
}

func (e EnvVars) fileValue(get func(*fileConfig) string, defaultValue string) string {
	return fileString(e.file, get, defaultValue)
}

// GetEnv returns the named environment variable or defaultValue when unset
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func fileString(file *fileConfig, get func(*fileConfig) string, defaultValue string) string {
	if file == nil {
		return defaultValue
	}
	if v := get(file); v != "" {
		return v
	}
	return defaultValue
}

func getDuration(envVar, fileValue string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(envVar, fileValue)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func getInt(envVar string, fileValue, defaultValue int) int {
	if raw := os.Getenv(envVar); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	if fileValue > 0 {
		return fileValue
	}
	return defaultValue
}

func getList(envVar string, fileValue []string) []string {
	raw := os.Getenv(envVar)
	if raw == "" {
		return fileValue
	}
	var list []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			list = append(list, item)
		}
	}
	return list
}
