package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime settings. It is built once in main and passed to
// every component that needs it; nothing reads the environment after startup.
type Config struct {
	AppName  string
	AppEnv   string
	HTTPAddr string
	LogLevel string

	MaxInputLength       int
	AutoApproveThreshold float64
	ApprovalCategories   []string
	LegalRiskKeywords    []string

	ApprovalTTL time.Duration
	DedupTTL    time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SQLiteLogPath string

	WebhookSecret  string
	RateLimitRPM   int
	RateLimitBurst int

	ClassifierURL     string
	ClassifierAPIKey  string
	ClassifierTimeout time.Duration

	ApprovalQueueURL string

	OutputGuardEnabled bool
	URLAllowlist       []string
	OutputURLBehavior  string // "redact" or "reject"
}

// Default returns the baseline configuration used when an env var is unset.
func Default() Config {
	return Config{
		AppName:              "triage-agent",
		AppEnv:               "dev",
		HTTPAddr:             ":8080",
		LogLevel:             "info",
		MaxInputLength:       2000,
		AutoApproveThreshold: 0.85,
		ApprovalCategories:   []string{"billing"},
		LegalRiskKeywords:    []string{"lawyer", "lawsuit", "press", "gdpr"},
		ApprovalTTL:          time.Hour,
		DedupTTL:             24 * time.Hour,
		RedisAddr:            "localhost:6379",
		RateLimitRPM:         30,
		RateLimitBurst:       10,
		ClassifierTimeout:    20 * time.Second,
		OutputGuardEnabled:   true,
		OutputURLBehavior:    "redact",
	}
}

// FromEnv builds a Config from environment variables on top of Default.
func FromEnv() (Config, error) {
	cfg := Default()

	setString(&cfg.AppName, "APP_NAME")
	setString(&cfg.AppEnv, "APP_ENV")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.SQLiteLogPath, "SQLITE_LOG_PATH")
	setString(&cfg.WebhookSecret, "WEBHOOK_SECRET")
	setString(&cfg.ClassifierURL, "CLASSIFIER_URL")
	setString(&cfg.ClassifierAPIKey, "CLASSIFIER_API_KEY")
	setString(&cfg.ApprovalQueueURL, "APPROVAL_QUEUE_URL")
	setString(&cfg.OutputURLBehavior, "OUTPUT_URL_BEHAVIOR")

	if err := setInt(&cfg.MaxInputLength, "MAX_INPUT_LENGTH"); err != nil {
		return cfg, err
	}
	if err := setInt(&cfg.RedisDB, "REDIS_DB"); err != nil {
		return cfg, err
	}
	if err := setInt(&cfg.RateLimitRPM, "RATE_LIMIT_RPM"); err != nil {
		return cfg, err
	}
	if err := setInt(&cfg.RateLimitBurst, "RATE_LIMIT_BURST"); err != nil {
		return cfg, err
	}
	if err := setFloat(&cfg.AutoApproveThreshold, "AUTO_APPROVE_THRESHOLD"); err != nil {
		return cfg, err
	}
	if err := setSeconds(&cfg.ApprovalTTL, "APPROVAL_TTL_SECONDS"); err != nil {
		return cfg, err
	}
	if err := setSeconds(&cfg.DedupTTL, "DEDUP_TTL_SECONDS"); err != nil {
		return cfg, err
	}
	if err := setSeconds(&cfg.ClassifierTimeout, "CLASSIFIER_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	if err := setBool(&cfg.OutputGuardEnabled, "OUTPUT_GUARD_ENABLED"); err != nil {
		return cfg, err
	}

	setList(&cfg.ApprovalCategories, "APPROVAL_CATEGORIES")
	setList(&cfg.LegalRiskKeywords, "LEGAL_RISK_KEYWORDS")
	setList(&cfg.URLAllowlist, "URL_ALLOWLIST")

	if cfg.OutputURLBehavior != "redact" && cfg.OutputURLBehavior != "reject" {
		return cfg, fmt.Errorf("invalid OUTPUT_URL_BEHAVIOR %q: want redact or reject", cfg.OutputURLBehavior)
	}
	if cfg.AutoApproveThreshold < 0 || cfg.AutoApproveThreshold > 1 {
		return cfg, fmt.Errorf("AUTO_APPROVE_THRESHOLD %v out of range [0,1]", cfg.AutoApproveThreshold)
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setSeconds(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = time.Duration(n) * time.Second
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = b
	return nil
}

// setList parses a comma-separated env value, dropping empty parts.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
