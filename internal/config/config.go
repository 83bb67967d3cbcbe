// Package config loads runtime settings from KERNELCMS_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads .env then .env.local when present. Variables already set in the
// environment win over both files.
func init() {
	for _, file := range []string{".env", ".env.local"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", file, err)
		}
	}
}

const prefix = "KERNELCMS_"

const (
	defaultPort          = "8080"
	defaultDBPath        = "kernelcms.db"
	defaultLogLevel      = "info"
	defaultLogFormat     = "text"
	defaultS3Region      = "us-east-1"
	defaultOffsitePrefix = "snapshots/"
	defaultRetentionDays = 30
	defaultImportLimit   = 10
)

// Config captures environment-driven settings.
type Config struct {
	Port      string
	DBPath    string
	LogLevel  string
	LogFormat string // text or json

	// SiteHost is stamped into exported manifests as their source.
	SiteHost string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	OffsitePrefix   string
	OffsiteInterval time.Duration // zero disables scheduled pushes
	RetentionDays   int

	// Tracing pretty-prints spans to stderr.
	Tracing bool

	// WSOrigins are extra origin patterns allowed to open /ws.
	WSOrigins []string

	// ImportRateLimit caps import and offsite requests per client per minute.
	ImportRateLimit int
}

// Load reads the environment and applies defaults. It fails on values that
// are set but malformed.
func Load() (Config, error) {
	cfg := Config{
		Port:          get("PORT", defaultPort),
		DBPath:        get("DB_PATH", defaultDBPath),
		LogLevel:      get("LOG_LEVEL", defaultLogLevel),
		LogFormat:     strings.ToLower(get("LOG_FORMAT", defaultLogFormat)),
		SiteHost:      get("SITE_HOST", ""),
		S3Endpoint:    get("S3_ENDPOINT", ""),
		S3Region:      get("S3_REGION", defaultS3Region),
		S3Bucket:      get("S3_BUCKET", ""),
		S3AccessKey:   get("S3_ACCESS_KEY", ""),
		S3SecretKey:   get("S3_SECRET_KEY", ""),
		OffsitePrefix: get("OFFSITE_PREFIX", defaultOffsitePrefix),
		WSOrigins:     list(get("WS_ORIGINS", "")),
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("%sLOG_FORMAT must be text or json, got %q", prefix, cfg.LogFormat)
	}

	var err error
	if cfg.OffsiteInterval, err = duration("OFFSITE_INTERVAL", 0); err != nil {
		return Config{}, err
	}
	if cfg.RetentionDays, err = integer("RETENTION_DAYS", defaultRetentionDays); err != nil {
		return Config{}, err
	}
	if cfg.ImportRateLimit, err = integer("IMPORT_RATE_LIMIT", defaultImportLimit); err != nil {
		return Config{}, err
	}
	if cfg.Tracing, err = boolean("TRACING", false); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// OffsiteEnabled reports whether bucket credentials are complete.
func (c Config) OffsiteEnabled() bool {
	return c.S3Bucket != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func get(key, def string) string {
	if v, ok := os.LookupEnv(prefix + key); ok && v != "" {
		return v
	}
	return def
}

func integer(key string, def int) (int, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s%s must be a non-negative integer, got %q", prefix, key, v)
	}
	return n, nil
}

func duration(key string, def time.Duration) (time.Duration, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s%s must be a duration like 24h, got %q", prefix, key, v)
	}
	return d, nil
}

func boolean(key string, def bool) (bool, error) {
	v := get(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s%s must be true or false, got %q", prefix, key, v)
	}
	return b, nil
}

func list(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
