package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// UptimePolicy selects the reference value the uptime score component
// is computed against.
type UptimePolicy string

const (
	// UptimeNetworkMax scores uptime relative to the highest uptime
	// observed in the current snapshot.
	UptimeNetworkMax UptimePolicy = "network-max"
	// UptimeFixedTarget scores uptime relative to a fixed duration.
	UptimeFixedTarget UptimePolicy = "fixed-target"
)

type Config struct {
	Environment string
	Port        string

	ValidAPIKeys []string
	RateLimitRPM int

	// Seed peer polling
	SeedPeers   []string
	RPCPort     string
	RPCEndpoint string
	RPCTimeout  time.Duration

	// Polling cycle
	PollInterval    time.Duration
	SafetyFloor     int
	StrikeThreshold int

	// Alert cooldowns
	OfflineCooldown  time.Duration
	CriticalCooldown time.Duration
	WarningCooldown  time.Duration
	DefaultCooldown  time.Duration
	SnoozeDuration   time.Duration
	IgnoreDuration   time.Duration

	// Scoring
	AcceptedVersions []string // accepted major.minor prefixes
	UptimePolicy     UptimePolicy
	UptimeTarget     time.Duration
	StorageTargetGB  float64

	// Redis
	RedisURL      string
	RedisPassword string
	RedisDB       int
	SnapshotTTL   time.Duration

	// History store
	HistoryDBPath       string
	HistoryMinInterval  time.Duration
	HistoryRetainedRows int

	// Credits lookup
	CreditsURL     string
	CreditsTimeout time.Duration

	// Telegram bot
	TelegramBotToken string

	// Firebase (watch-list persistence)
	FirebaseProjectID   string
	FirebasePrivateKey  string
	FirebaseClientEmail string

	// Gemini (AI network summaries)
	GeminiAPIKey string

	// GeoIP
	IP2LocationDBPath string
}

// Default public seeds from the Xandeum documentation.
var defaultSeeds = []string{
	"173.212.203.145", "173.212.220.65", "161.97.97.41",
	"192.190.136.36", "192.190.136.37", "192.190.136.38",
	"192.190.136.28", "192.190.136.29", "207.244.255.1",
}

func Load() *Config {
	seeds := defaultSeeds
	if s := getEnv("SEED_PEERS", ""); s != "" {
		seeds = splitAndTrim(s)
	}

	accepted := []string{"0.7", "0.8"}
	if s := getEnv("ACCEPTED_VERSIONS", ""); s != "" {
		accepted = splitAndTrim(s)
	}

	policy := UptimePolicy(getEnv("UPTIME_POLICY", string(UptimeNetworkMax)))
	if policy != UptimeNetworkMax && policy != UptimeFixedTarget {
		logrus.Warnf("Unknown UPTIME_POLICY %q, falling back to %s", policy, UptimeNetworkMax)
		policy = UptimeNetworkMax
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),

		ValidAPIKeys: splitAndTrim(getEnv("VALID_API_KEYS", "")),
		RateLimitRPM: getEnvAsInt("RATE_LIMIT_RPM", 100),

		SeedPeers:   seeds,
		RPCPort:     getEnv("RPC_PORT", "6000"),
		RPCEndpoint: getEnv("RPC_ENDPOINT", "/rpc"),
		RPCTimeout:  getEnvAsDuration("RPC_TIMEOUT", 2500*time.Millisecond),

		PollInterval:    getEnvAsDuration("POLL_INTERVAL", 5*time.Minute),
		SafetyFloor:     getEnvAsInt("SAFETY_FLOOR", 10),
		StrikeThreshold: getEnvAsInt("STRIKE_THRESHOLD", 2),

		OfflineCooldown:  getEnvAsDuration("OFFLINE_COOLDOWN", 10*time.Minute),
		CriticalCooldown: getEnvAsDuration("CRITICAL_COOLDOWN", time.Hour),
		WarningCooldown:  getEnvAsDuration("WARNING_COOLDOWN", 6*time.Hour),
		DefaultCooldown:  getEnvAsDuration("DEFAULT_COOLDOWN", time.Hour),
		SnoozeDuration:   getEnvAsDuration("SNOOZE_DURATION", 24*time.Hour),
		IgnoreDuration:   getEnvAsDuration("IGNORE_DURATION", 365*24*time.Hour),

		AcceptedVersions: accepted,
		UptimePolicy:     policy,
		UptimeTarget:     getEnvAsDuration("UPTIME_TARGET", 7*24*time.Hour),
		StorageTargetGB:  getEnvAsFloat("STORAGE_TARGET_GB", 0.1),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		SnapshotTTL:   getEnvAsDuration("SNAPSHOT_TTL", 2*time.Minute),

		HistoryDBPath:       getEnv("HISTORY_DB_PATH", "data/network_history.db"),
		HistoryMinInterval:  getEnvAsDuration("HISTORY_MIN_INTERVAL", 5*time.Minute),
		HistoryRetainedRows: getEnvAsInt("HISTORY_RETAINED_ROWS", 1000),

		CreditsURL:     getEnv("CREDITS_URL", ""),
		CreditsTimeout: getEnvAsDuration("CREDITS_TIMEOUT", 5*time.Second),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		FirebaseProjectID:   getEnv("FIREBASE_PROJECT_ID", ""),
		FirebasePrivateKey:  getEnv("FIREBASE_PRIVATE_KEY", ""),
		FirebaseClientEmail: getEnv("FIREBASE_CLIENT_EMAIL", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		IP2LocationDBPath: getEnv("IP2LOCATION_DB_PATH", "./location-db/IP2LOCATION-LITE-DB11.IPV6.BIN"),
	}

	if len(cfg.SeedPeers) == 0 {
		logrus.Fatal("SEED_PEERS resolved to an empty list")
	}

	if cfg.TelegramBotToken == "" {
		logrus.Info("TELEGRAM_BOT_TOKEN not set - Telegram bot will be disabled")
	}

	if cfg.CreditsURL == "" {
		logrus.Info("CREDITS_URL not set - reputation credits will read as 0")
	}

	if cfg.GeminiAPIKey == "" {
		logrus.Info("GEMINI_API_KEY not set - AI summaries will be disabled")
	}

	return cfg
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
