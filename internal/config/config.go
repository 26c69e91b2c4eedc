package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultTimezone = "Asia/Colombo"

type Config struct {
	Port                       string
	DatabaseURL                string
	RedisURL                   string
	LookupURL                  string
	LookupToken                string
	LookupTimeout              time.Duration
	OfficeTimezone             string
	TerminalsFile              string
	JWTSecret                  string
	PassSigningKey             string
	RequirePassSignature       bool
	ScanHistorySize            int
	ScanHistoryTTL             time.Duration
	ResultDisplaySeconds       int
	AuditSink                  string
	AuditWebhookURL            string
	AuditWebhookToken          string
	AuditQueueSize             int
	AuditMaxAttempts           int
	RateLimitPerMinute         int
	RateLimitBurst             int
	TerminalRateLimitPerMinute int
	TerminalRateLimitBurst     int
	CORSOrigins                []string
	MaxUploadBytes             int64
	LogLevel                   string
}

// Load reads an optional .env file, then the process environment. Values
// already set in the environment win over the file.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	timezone := os.Getenv("OFFICE_TIMEZONE")
	if timezone == "" {
		timezone = defaultTimezone
	}
	terminals := os.Getenv("TERMINALS_FILE")
	if terminals == "" {
		terminals = "terminals.yaml"
	}
	auditSink := os.Getenv("AUDIT_SINK")
	if auditSink == "" {
		auditSink = "log"
	}

	return Config{
		Port:                       port,
		DatabaseURL:                os.Getenv("DB_DSN"),
		RedisURL:                   os.Getenv("REDIS_URL"),
		LookupURL:                  strings.TrimRight(os.Getenv("LOOKUP_URL"), "/"),
		LookupToken:                os.Getenv("LOOKUP_TOKEN"),
		LookupTimeout:              readDurationSeconds("LOOKUP_TIMEOUT_SECONDS", 5),
		OfficeTimezone:             timezone,
		TerminalsFile:              terminals,
		JWTSecret:                  os.Getenv("JWT_SECRET"),
		PassSigningKey:             os.Getenv("PASS_SIGNING_KEY"),
		RequirePassSignature:       readBool("REQUIRE_PASS_SIGNATURE", false),
		ScanHistorySize:            readInt("SCAN_HISTORY_SIZE", 5),
		ScanHistoryTTL:             readDurationSeconds("SCAN_HISTORY_TTL_SECONDS", 30),
		ResultDisplaySeconds:       readInt("RESULT_DISPLAY_SECONDS", 10),
		AuditSink:                  auditSink,
		AuditWebhookURL:            os.Getenv("AUDIT_WEBHOOK_URL"),
		AuditWebhookToken:          os.Getenv("AUDIT_WEBHOOK_TOKEN"),
		AuditQueueSize:             readInt("AUDIT_QUEUE_SIZE", 256),
		AuditMaxAttempts:           readInt("AUDIT_MAX_ATTEMPTS", 3),
		RateLimitPerMinute:         readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:             readInt("RATE_LIMIT_BURST", 30),
		TerminalRateLimitPerMinute: readInt("TERMINAL_RATE_LIMIT_PER_MIN", 60),
		TerminalRateLimitBurst:     readInt("TERMINAL_RATE_LIMIT_BURST", 10),
		CORSOrigins:                readList("CORS_ORIGINS"),
		MaxUploadBytes:             int64(readInt("MAX_UPLOAD_BYTES", 5<<20)),
		LogLevel:                   os.Getenv("LOG_LEVEL"),
	}
}

// Location resolves OfficeTimezone, falling back to UTC when the zone
// database does not know it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.OfficeTimezone)
	if err != nil {
		return time.UTC, err
	}
	return loc, nil
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func readList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}
