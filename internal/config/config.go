package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"gocombat/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Combat  CombatConfig
	Logging LoggingConfig
}

// CombatConfig holds batch-correction engine settings
type CombatConfig struct {
	MaxIterations int
	Tolerance     float64
	Workers       int
	Method        string // parametric | nonparametric
	DataScale     string // log2 | log10 | ln | linear
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

const (
	MethodParametric    = "parametric"
	MethodNonParametric = "nonparametric"

	ScaleLog2   = "log2"
	ScaleLog10  = "log10"
	ScaleLn     = "ln"
	ScaleLinear = "linear"
)

// lookupFunc resolves a configuration key
type lookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

// LoadFile reads a .env file and overlays it beneath the process
// environment: variables already set in the environment win.
func LoadFile(path string) (*Config, error) {
	fileValues, err := godotenv.Read(path)
	if err != nil {
		return nil, errors.Wrapf(errors.IOError("failed to read env file", err), "loading %s", path)
	}
	return load(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileValues[key]
		return v, ok
	})
}

func load(lookup lookupFunc) (*Config, error) {
	config := &Config{
		Combat:  *loadCombatConfig(lookup),
		Logging: *loadLoggingConfig(lookup),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	config, _ := load(func(string) (string, bool) { return "", false })
	return config
}

func loadCombatConfig(lookup lookupFunc) *CombatConfig {
	return &CombatConfig{
		MaxIterations: getEnvIntOrDefault(lookup, "COMBAT_MAX_ITERATIONS", 200),
		Tolerance:     getEnvFloatOrDefault(lookup, "COMBAT_TOLERANCE", 1e-4),
		Workers:       getEnvIntOrDefault(lookup, "COMBAT_WORKERS", runtime.GOMAXPROCS(0)),
		Method:        strings.ToLower(getEnvOrDefault(lookup, "COMBAT_METHOD", MethodParametric)),
		DataScale:     strings.ToLower(getEnvOrDefault(lookup, "COMBAT_DATA_SCALE", ScaleLog2)),
	}
}

func loadLoggingConfig(lookup lookupFunc) *LoggingConfig {
	return &LoggingConfig{
		Level: strings.ToUpper(getEnvOrDefault(lookup, "LOG_LEVEL", "INFO")),
	}
}

func validateConfig(config *Config) error {
	c := config.Combat
	if c.MaxIterations < 1 {
		return errors.ConfigInvalid("COMBAT_MAX_ITERATIONS must be >= 1")
	}
	if !(c.Tolerance > 0 && c.Tolerance < 1) {
		return errors.ConfigInvalid("COMBAT_TOLERANCE must be in (0, 1)")
	}
	if c.Workers < 1 {
		return errors.ConfigInvalid("COMBAT_WORKERS must be >= 1")
	}
	switch c.Method {
	case MethodParametric, MethodNonParametric:
	default:
		return errors.ConfigInvalid("COMBAT_METHOD must be parametric or nonparametric, got " + c.Method)
	}
	switch c.DataScale {
	case ScaleLog2, ScaleLog10, ScaleLn, ScaleLinear:
	default:
		return errors.ConfigInvalid("COMBAT_DATA_SCALE must be log2, log10, ln or linear, got " + c.DataScale)
	}
	switch config.Logging.Level {
	case "ERROR", "WARN", "INFO", "DEBUG", "TRACE":
	default:
		return errors.ConfigInvalid("LOG_LEVEL must be one of ERROR, WARN, INFO, DEBUG, TRACE")
	}
	return nil
}

func getEnvOrDefault(lookup lookupFunc, key, defaultValue string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvIntOrDefault(lookup lookupFunc, key string, defaultValue int) int {
	if value, ok := lookup(key); ok && value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(lookup lookupFunc, key string, defaultValue float64) float64 {
	if value, ok := lookup(key); ok && value != "" {
		if floatValue, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
