package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort       string
	MetricsPort    string
	GRPCHealthPort string

	APIKey      string
	StreamURL   string
	DialTimeout time.Duration

	PresetsFile   string
	DefaultPreset string
	SnapshotLimit int

	RedisAddr string
	RedisTTL  time.Duration

	KafkaBroker string
	KafkaTopic  string

	GRPCServer string

	MovesURL string
	MovesTZ  string

	LogLevel    string
	LogFile     string
	RawFrameLog bool
}

func Load() Config {
	return Config{
		HTTPPort:       getEnv("HTTP_PORT", "8080"),
		MetricsPort:    getEnv("METRICS_PORT", "9000"),
		GRPCHealthPort: getEnv("GRPC_HEALTH_PORT", "50052"),

		APIKey:      os.Getenv("AISSTREAM_API_KEY"),
		StreamURL:   getEnv("AISSTREAM_URL", "wss://stream.aisstream.io/v0/stream"),
		DialTimeout: getDuration("DIAL_TIMEOUT", 10*time.Second),

		PresetsFile:   os.Getenv("PRESETS_FILE"),
		DefaultPreset: os.Getenv("DEFAULT_PRESET"),
		SnapshotLimit: getInt("SNAPSHOT_LIMIT", 200),

		RedisAddr: os.Getenv("REDIS_ADDR"),
		RedisTTL:  getDuration("REDIS_TTL", 30*time.Minute),

		KafkaBroker: os.Getenv("KAFKA_BROKER"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "vessel_updates"),

		GRPCServer: os.Getenv("GRPC_SERVER"),

		MovesURL: os.Getenv("MOVES_URL"),
		MovesTZ:  getEnv("MOVES_TZ", "America/New_York"),

		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     os.Getenv("LOG_FILE"),
		RawFrameLog: getBool("RAW_FRAME_LOG", false),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return fallback
}
