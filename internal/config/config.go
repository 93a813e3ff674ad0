// Package config loads statehub's runtime configuration from the environment,
// with an optional YAML file providing defaults that env vars override.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the external interface section of the
// specification, already clamped to its documented range.
type Config struct {
	Port string

	PlayerTimeoutSec   float64
	EntityTimeoutSec   float64
	WaypointTimeoutSec float64

	SourceSwitchThresholdSec float64
	DigestIntervalSec        float64
	RefreshReqCooldownSec    float64
	RefreshReqLeadSec        float64
	TabReportTimeoutSec      float64

	EnableSameServerFilter bool

	OnlineOwnerTimeoutMultiplier float64

	MaxItemsPerScope int

	BroadcastHeartbeatInterval time.Duration

	AdminBearerToken string
	AdminJWTSecret   string

	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisEnabled  bool

	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBSSLMode       string
	AuditLogEnabled bool

	LogLevel  string
	LogPretty bool

	MapTileUpstream string
}

// fileOverrides is the subset of Config that may be supplied via an optional
// on-disk YAML file (config.yaml by default, path overridable via
// STATEHUB_CONFIG_FILE). Any field also present as an env var is overridden
// by the env var.
type fileOverrides struct {
	Port                         *string  `yaml:"port"`
	PlayerTimeoutSec             *float64 `yaml:"playerTimeoutSec"`
	EntityTimeoutSec             *float64 `yaml:"entityTimeoutSec"`
	WaypointTimeoutSec           *float64 `yaml:"waypointTimeoutSec"`
	SourceSwitchThresholdSec     *float64 `yaml:"sourceSwitchThresholdSec"`
	DigestIntervalSec            *float64 `yaml:"digestIntervalSec"`
	RefreshReqCooldownSec        *float64 `yaml:"refreshReqCooldownSec"`
	RefreshReqLeadSec            *float64 `yaml:"refreshReqLeadSec"`
	TabReportTimeoutSec          *float64 `yaml:"tabReportTimeoutSec"`
	EnableSameServerFilter       *bool    `yaml:"enableSameServerFilter"`
	OnlineOwnerTimeoutMultiplier *float64 `yaml:"onlineOwnerTimeoutMultiplier"`
	MapTileUpstream              *string  `yaml:"mapTileUpstream"`
}

// Load reads configuration from an optional YAML file and then from the
// environment, with env vars taking precedence, and clamps every range-bound
// value to its documented bounds rather than rejecting out-of-range input.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("STATEHUB_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	} else if data, err := os.ReadFile("config.yaml"); err == nil {
		if err := applyFileBytes(cfg, data); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("API_PORT", cfg.Port)
	cfg.PlayerTimeoutSec = clamp(getEnvFloat("PLAYER_TIMEOUT_SEC", cfg.PlayerTimeoutSec), 5, 30)
	cfg.EntityTimeoutSec = clamp(getEnvFloat("ENTITY_TIMEOUT_SEC", cfg.EntityTimeoutSec), 5, 30)
	cfg.WaypointTimeoutSec = clamp(getEnvFloat("WAYPOINT_TIMEOUT_SEC", cfg.WaypointTimeoutSec), 60, 120)
	cfg.SourceSwitchThresholdSec = getEnvFloat("SOURCE_SWITCH_THRESHOLD_SEC", cfg.SourceSwitchThresholdSec)
	cfg.DigestIntervalSec = getEnvFloat("DIGEST_INTERVAL_SEC", cfg.DigestIntervalSec)
	cfg.RefreshReqCooldownSec = getEnvFloat("REFRESH_REQ_COOLDOWN_SEC", cfg.RefreshReqCooldownSec)
	cfg.RefreshReqLeadSec = getEnvFloat("REFRESH_REQ_LEAD_SEC", cfg.RefreshReqLeadSec)
	cfg.TabReportTimeoutSec = getEnvFloat("TAB_REPORT_TIMEOUT_SEC", cfg.TabReportTimeoutSec)
	cfg.EnableSameServerFilter = getEnvBool("ENABLE_SAME_SERVER_FILTER", cfg.EnableSameServerFilter)
	cfg.OnlineOwnerTimeoutMultiplier = getEnvFloat("ONLINE_OWNER_TIMEOUT_MULTIPLIER", cfg.OnlineOwnerTimeoutMultiplier)
	cfg.MaxItemsPerScope = getEnvInt("MAX_ITEMS_PER_SCOPE", cfg.MaxItemsPerScope)

	cfg.AdminBearerToken = getEnv("ADMIN_BEARER_TOKEN", cfg.AdminBearerToken)
	cfg.AdminJWTSecret = getEnv("ADMIN_JWT_SECRET", cfg.AdminJWTSecret)

	cfg.RedisHost = getEnv("REDIS_HOST", cfg.RedisHost)
	cfg.RedisPort = getEnv("REDIS_PORT", cfg.RedisPort)
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisEnabled = getEnvBool("REDIS_ENABLED", cfg.RedisEnabled)

	cfg.DBHost = getEnv("DB_HOST", cfg.DBHost)
	cfg.DBPort = getEnv("DB_PORT", cfg.DBPort)
	cfg.DBUser = getEnv("DB_USER", cfg.DBUser)
	cfg.DBPassword = getEnv("DB_PASSWORD", cfg.DBPassword)
	cfg.DBName = getEnv("DB_NAME", cfg.DBName)
	cfg.DBSSLMode = getEnv("DB_SSL_MODE", cfg.DBSSLMode)
	cfg.AuditLogEnabled = getEnvBool("AUDIT_LOG_ENABLED", cfg.AuditLogEnabled)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogPretty = getEnvBool("LOG_PRETTY", cfg.LogPretty)

	cfg.MapTileUpstream = getEnv("MAP_TILE_UPSTREAM", cfg.MapTileUpstream)

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:                         "8000",
		PlayerTimeoutSec:             5,
		EntityTimeoutSec:             5,
		WaypointTimeoutSec:           120,
		SourceSwitchThresholdSec:     0.35,
		DigestIntervalSec:            10,
		RefreshReqCooldownSec:        1.5,
		RefreshReqLeadSec:            1.2,
		TabReportTimeoutSec:          45,
		EnableSameServerFilter:       false,
		OnlineOwnerTimeoutMultiplier: 8,
		MaxItemsPerScope:             64,
		BroadcastHeartbeatInterval:   250 * time.Millisecond,
		RedisHost:                    "localhost",
		RedisPort:                    "6379",
		RedisEnabled:                 false,
		DBHost:                       "localhost",
		DBPort:                       "5432",
		DBUser:                       "statehub",
		DBPassword:                   "statehub",
		DBName:                       "statehub",
		DBSSLMode:                    "disable",
		AuditLogEnabled:              true,
		LogLevel:                     "info",
		LogPretty:                    false,
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return applyFileBytes(cfg, data)
}

func applyFileBytes(cfg *Config, data []byte) error {
	var f fileOverrides
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Port != nil {
		cfg.Port = *f.Port
	}
	if f.PlayerTimeoutSec != nil {
		cfg.PlayerTimeoutSec = *f.PlayerTimeoutSec
	}
	if f.EntityTimeoutSec != nil {
		cfg.EntityTimeoutSec = *f.EntityTimeoutSec
	}
	if f.WaypointTimeoutSec != nil {
		cfg.WaypointTimeoutSec = *f.WaypointTimeoutSec
	}
	if f.SourceSwitchThresholdSec != nil {
		cfg.SourceSwitchThresholdSec = *f.SourceSwitchThresholdSec
	}
	if f.DigestIntervalSec != nil {
		cfg.DigestIntervalSec = *f.DigestIntervalSec
	}
	if f.RefreshReqCooldownSec != nil {
		cfg.RefreshReqCooldownSec = *f.RefreshReqCooldownSec
	}
	if f.RefreshReqLeadSec != nil {
		cfg.RefreshReqLeadSec = *f.RefreshReqLeadSec
	}
	if f.TabReportTimeoutSec != nil {
		cfg.TabReportTimeoutSec = *f.TabReportTimeoutSec
	}
	if f.EnableSameServerFilter != nil {
		cfg.EnableSameServerFilter = *f.EnableSameServerFilter
	}
	if f.OnlineOwnerTimeoutMultiplier != nil {
		cfg.OnlineOwnerTimeoutMultiplier = *f.OnlineOwnerTimeoutMultiplier
	}
	if f.MapTileUpstream != nil {
		cfg.MapTileUpstream = *f.MapTileUpstream
	}
	return nil
}

// WaypointTTLRange clamps a waypoint's ttlSeconds override per §6.
func WaypointTTLRange(v int) int {
	return clampInt(v, 5, 86400)
}

// QuickMarkCapRange clamps maxQuickMarks per §6/§8.
func QuickMarkCapRange(v int) int {
	return clampInt(v, 1, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
