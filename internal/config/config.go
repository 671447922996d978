package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "subconsole.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. SUBCONSOLE_API_OPERATORTOKEN.
const EnvPrefix = "SUBCONSOLE"

// ErrNoConfigFile is returned (wrapped) when the directory has no config
// file. Defaults are in effect; callers usually just log it.
var ErrNoConfigFile = errors.New("config file not found")

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("api.serverUrl", "http://127.0.0.1:5000")
	viper.SetDefault("api.probeUrl", "http://127.0.0.1:5000")
	viper.SetDefault("api.operatorToken", "")
	viper.SetDefault("api.timeout", "10s")

	viper.SetDefault("poll.telemetryInterval", "2s")
	viper.SetDefault("poll.eventsInterval", "3s")
	viper.SetDefault("poll.autoInterval", "5s")
	viper.SetDefault("poll.telemetryLimit", 30)
	viper.SetDefault("poll.eventsLimit", 20)

	viper.SetDefault("console.requireConnect", false)

	viper.SetDefault("mirror.enabled", false)
	viper.SetDefault("mirror.address", "127.0.0.1:8088")

	viper.SetDefault("recorder.enabled", false)
	viper.SetDefault("recorder.driver", "sqlite")
	viper.SetDefault("recorder.path", "./flightlog.db")
	viper.SetDefault("recorder.dsn", "")
	viper.SetDefault("recorder.flushInterval", "2s")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "subconsole")
	viper.SetDefault("influx.bucket", "telemetry")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "subconsole")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.statusFile", "")
	viper.SetDefault("monitor.interval", "1s")
}

// Load reads configuration from the JSON file in configDir and sets default
// values. A .env file in configDir is loaded into the process environment
// first (existing variables win), then SUBCONSOLE_* variables override file
// values. A missing config file yields ErrNoConfigFile with defaults applied.
func Load(configDir string) error {
	setDefaults()

	envFile := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading %s: %w", envFile, err)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return fmt.Errorf("%w in %s", ErrNoConfigFile, configDir)
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value ("2s", "500ms").
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// Set overrides a value at runtime, e.g. from a command-line flag.
func Set(key string, value any) {
	viper.Set(key, value)
}
