package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/overlord/pkg/types"
	"gopkg.in/yaml.v3"
)

// fileOverrides mirrors the subset of types.Config that may be supplied by
// an optional YAML file. Environment variables always take precedence over
// values loaded from this file, matching the "environment variables or a
// config file" wording of the spec's minimum recognised options.
type fileOverrides struct {
	MaxConcurrent       *int     `yaml:"max_concurrent"`
	TimeoutMinutes      *int     `yaml:"timeout_minutes"`
	HealthPort          *int     `yaml:"health_port"`
	WatchedRepos        []string `yaml:"watched_repos"`
	DefaultRepo         *string  `yaml:"default_repo"`
	CronEnabled         *bool    `yaml:"cron_enabled"`
	CronSchedule        *string  `yaml:"cron_schedule"`
	StateDB             *string  `yaml:"state_db"`
	ContainerImage      *string  `yaml:"container_image"`
	ReadyLabel          *string  `yaml:"ready_label"`
	InProgressLabel     *string  `yaml:"in_progress_label"`
	InReviewLabel       *string  `yaml:"in_review_label"`
	NeedsAttentionLabel *string  `yaml:"needs_attention_label"`
}

const (
	defaultCronSchedule       = "0 2 * * *"
	defaultHeartbeatTimeout   = 5 * time.Minute
	defaultWatchdogInterval   = 60 * time.Second
	defaultCleanupInterval    = 5 * time.Minute
	defaultLLMWarmupTimeout   = 30 * time.Second
	defaultQuestionTTL        = 24 * time.Hour
	defaultReadyLabel         = "nebulus-ready"
	defaultInProgressLabel    = "nebulus-in-progress"
	defaultInReviewLabel      = "nebulus-in-review"
	defaultNeedsAttentionLabel = "nebulus-needs-attention"
	defaultContainerImage     = "overlord/minion:latest"
	defaultHealthPort         = 8080
	defaultMaxConcurrent      = 3
	defaultTimeoutMinutes     = 30
	defaultStateDB            = "/var/lib/overlord/state.db"
)

// Load builds a Configuration Snapshot from the environment, optionally
// seeded with defaults from a YAML file at configPath. An empty configPath
// skips the file entirely. Load does not validate; call Validate on the
// result before using it to construct the Orchestrator.
func Load(configPath string) (*types.Config, error) {
	var fo fileOverrides
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, &fo); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
		}
	}

	cfg := &types.Config{
		MaxConcurrent:       intOr(envInt("MAX_CONCURRENT"), fo.MaxConcurrent, defaultMaxConcurrent),
		TimeoutMinutes:      intOr(envInt("TIMEOUT_MINUTES"), fo.TimeoutMinutes, defaultTimeoutMinutes),
		HeartbeatTimeout:    durationOr(envInt("HEARTBEAT_TIMEOUT_SECONDS"), nil, defaultHeartbeatTimeout),
		WatchdogInterval:    durationOr(envInt("WATCHDOG_INTERVAL_SECONDS"), nil, defaultWatchdogInterval),
		CleanupInterval:     durationOr(envInt("CLEANUP_INTERVAL_SECONDS"), nil, defaultCleanupInterval),
		HealthPort:          intOr(envInt("HEALTH_PORT"), fo.HealthPort, defaultHealthPort),
		WatchedRepos:        stringsOr(envList("WATCHED_REPOS"), fo.WatchedRepos),
		DefaultRepo:         stringOr(os.Getenv("DEFAULT_REPO"), fo.DefaultRepo, ""),
		ReadyLabel:          stringOr(os.Getenv("READY_LABEL"), fo.ReadyLabel, defaultReadyLabel),
		InProgressLabel:     stringOr(os.Getenv("IN_PROGRESS_LABEL"), fo.InProgressLabel, defaultInProgressLabel),
		InReviewLabel:       stringOr(os.Getenv("IN_REVIEW_LABEL"), fo.InReviewLabel, defaultInReviewLabel),
		NeedsAttentionLabel: stringOr(os.Getenv("NEEDS_ATTENTION_LABEL"), fo.NeedsAttentionLabel, defaultNeedsAttentionLabel),
		GitHubToken:         os.Getenv("GITHUB_TOKEN"),
		CronEnabled:         boolOr(os.Getenv("CRON_ENABLED"), fo.CronEnabled, true),
		CronSchedule:        stringOr(os.Getenv("CRON_SCHEDULE"), fo.CronSchedule, defaultCronSchedule),
		ContainerImage:      stringOr(os.Getenv("CONTAINER_IMAGE"), fo.ContainerImage, defaultContainerImage),
		ContainerdSocket:    os.Getenv("CONTAINERD_SOCKET"),
		StubMode:            envBool("STUB_MODE"),
		SlackBotToken:       os.Getenv("SLACK_BOT_TOKEN"),
		SlackAppToken:       os.Getenv("SLACK_APP_TOKEN"),
		SlackChannelID:      os.Getenv("SLACK_CHANNEL_ID"),
		LLMBaseURL:          os.Getenv("LLM_BASE_URL"),
		LLMModel:            os.Getenv("LLM_MODEL"),
		LLMWarmupTimeout:    durationOr(envInt("LLM_WARMUP_TIMEOUT_SECONDS"), nil, defaultLLMWarmupTimeout),
		StateDB:             stringOr(os.Getenv("STATE_DB"), fo.StateDB, defaultStateDB),
		LogLevel:            stringOr(os.Getenv("LOG_LEVEL"), nil, "info"),
		LogFormat:           stringOr(os.Getenv("LOG_FORMAT"), nil, "console"),
		LogFile:             os.Getenv("LOG_FILE"),
		QuestionTTL:         defaultQuestionTTL,
	}

	return cfg, nil
}

// Validate enforces the invariants a Configuration Snapshot must satisfy
// before the Orchestrator starts. A non-nil error here is always fatal, per
// the ConfigInvalid error taxonomy: the process must refuse to run rather
// than start in a partially-configured state.
func Validate(cfg *types.Config) error {
	var errs []string

	if cfg.MaxConcurrent <= 0 {
		errs = append(errs, "MAX_CONCURRENT must be > 0")
	}
	if cfg.HealthPort <= 0 || cfg.HealthPort > 65535 {
		errs = append(errs, "HEALTH_PORT must be a valid TCP port")
	}
	if cfg.HeartbeatTimeout <= 0 {
		errs = append(errs, "heartbeat timeout must be positive")
	}
	if cfg.WatchdogInterval <= 0 {
		errs = append(errs, "watchdog interval must be positive")
	}
	if cfg.CronEnabled {
		if cfg.CronSchedule == "" {
			errs = append(errs, "CRON_SCHEDULE must be set when CRON_ENABLED is true")
		}
		if len(cfg.WatchedRepos) == 0 {
			errs = append(errs, "WATCHED_REPOS must be set when CRON_ENABLED is true")
		}
	}
	if cfg.StateDB == "" {
		errs = append(errs, "STATE_DB must not be empty")
	}
	if cfg.ContainerImage == "" {
		errs = append(errs, "CONTAINER_IMAGE must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func envInt(key string) *int {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "1" || v == "yes"
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func intOr(env *int, file *int, def int) int {
	if env != nil {
		return *env
	}
	if file != nil {
		return *file
	}
	return def
}

func durationOr(envSeconds *int, fileSeconds *int, def time.Duration) time.Duration {
	if envSeconds != nil {
		return time.Duration(*envSeconds) * time.Second
	}
	if fileSeconds != nil {
		return time.Duration(*fileSeconds) * time.Second
	}
	return def
}

func stringOr(env string, file *string, def string) string {
	if env != "" {
		return env
	}
	if file != nil && *file != "" {
		return *file
	}
	return def
}

func stringsOr(env []string, file []string) []string {
	if len(env) > 0 {
		return env
	}
	return file
}

func boolOr(env string, file *bool, def bool) bool {
	if env != "" {
		return strings.ToLower(env) == "true" || env == "1"
	}
	if file != nil {
		return *file
	}
	return def
}
