package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"dev/bravebird/wallet-verify/pkg/models"
)

const TaskQueue = "browser-verification"

// Config holds settings shared by the verify CLI, the worker and the API
type Config struct {
	TargetURL      string
	Role           string
	Name           string
	ArtifactDir    string
	VisibleTimeout time.Duration
	Headless       bool
	Strict         bool

	Driver            string
	ChromeBin         string
	InstallPlaywright bool

	TemporalHost  string
	MySQLDSN      string
	Port          string
	ScreenshotDir string
}

// Load reads a .env file if one exists and then the environment.
// Unset values fall back to the Connect Wallet defaults.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only
func FromEnv() Config {
	return Config{
		TargetURL:      getEnvOrDefault("TARGET_URL", models.DefaultTargetURL),
		Role:           getEnvOrDefault("TARGET_ROLE", models.DefaultRole),
		Name:           getEnvOrDefault("TARGET_NAME", models.DefaultName),
		ArtifactDir:    getEnvOrDefault("ARTIFACT_DIR", models.DefaultArtifactDir),
		VisibleTimeout: getDurationOrDefault("VISIBLE_TIMEOUT", models.DefaultVisibleTimeout),
		Headless:       getBoolOrDefault("HEADLESS", true),
		Strict:         getBoolOrDefault("VERIFY_STRICT", false),

		Driver:            getEnvOrDefault("BROWSER_DRIVER", "rod"),
		ChromeBin:         os.Getenv("CHROME_BIN"),
		InstallPlaywright: getBoolOrDefault("PLAYWRIGHT_INSTALL", false),

		TemporalHost:  getEnvOrDefault("TEMPORAL_HOST", "localhost:7233"),
		MySQLDSN:      getEnvOrDefault("MYSQL_DSN", "verifier:verifier@tcp(localhost:3306)/verifier?parseTime=true"),
		Port:          getEnvOrDefault("PORT", "8080"),
		ScreenshotDir: getEnvOrDefault("SCREENSHOT_DIR", "/tmp/screenshots"),
	}
}

// Scenario returns the scenario described by the config
func (c Config) Scenario() models.Scenario {
	return models.Scenario{
		URL:               c.TargetURL,
		Role:              c.Role,
		Name:              c.Name,
		SuccessScreenshot: filepath.Join(c.ArtifactDir, models.SuccessScreenshotName),
		ErrorScreenshot:   filepath.Join(c.ArtifactDir, models.ErrorScreenshotName),
		VisibleTimeout:    c.VisibleTimeout,
		Headless:          c.Headless,
	}.WithDefaults()
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

// getDurationOrDefault accepts Go durations ("5s") or bare milliseconds ("5000")
func getDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(val); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
