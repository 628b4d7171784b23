// Package config provides configuration management for Volition.
// It loads settings from environment variables with the VOLITION_ prefix
// and provides sensible defaults for all configuration options. The
// scheduler's work-pattern windows can additionally be loaded from a YAML
// file whose path is configured here (see internal/scheduler).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration settings for the Volition processes.
type Config struct {
	Storage   StorageConfig
	Reasoning ReasoningConfig
	Scheduler SchedulerConfig
	Agent     AgentConfig
	DeepThink DeepThinkConfig
	Safety    SafetyConfig
	Monitor   MonitorConfig
	Notify    NotifyConfig
}

// StorageConfig contains graph-store configuration.
type StorageConfig struct {
	StorageEngine string // Storage engine type: sqlite, postgres (default: sqlite)
	DataPath      string // Path to data directory (default: ./data)
	PostgresURL   string // Postgres connection string (used when engine=postgres)
}

// ReasoningConfig contains reasoning-service configuration.
type ReasoningConfig struct {
	Provider       string        // Provider: subprocess, ollama (default: subprocess)
	Command        string        // Subprocess command invoked with the prompt on stdin
	OllamaURL      string        // Ollama API URL (default: http://localhost:11434)
	OllamaModel    string        // Ollama model name (default: qwen2.5:7b)
	EmbeddingModel string        // Ollama embedding model (default: nomic-embed-text)
	Timeout        time.Duration // Per-attempt wall-clock timeout (default: 10m)
	MaxRetries     int           // Retry attempts for the main cycle call (default: 3)
	RatePerMinute  int           // Reasoning-call rate limit (default: 30)
}

// SchedulerConfig contains adaptive-scheduler interval bounds.
type SchedulerConfig struct {
	MinInterval     time.Duration // Aggressive baseline (default: 2m)
	BaseInterval    time.Duration // Normal baseline (default: 10m)
	MaxInterval     time.Duration // Low-mode baseline (default: 30m)
	WorkPatternPath string        // Optional YAML file with work-pattern windows
}

// AgentConfig contains main-cycle configuration.
type AgentConfig struct {
	StatePath       string        // Run-state JSON file path (default: {data}/agent_state.json)
	ActionLease     time.Duration // Lease duration for claimed actions (default: 15m)
	SubAgentContext int           // Context truncation for sub-agents (default: 2000)
}

// DeepThinkConfig contains deep-think gating thresholds.
type DeepThinkConfig struct {
	MinIdle      time.Duration // Minimum gap since last completed run (default: 5m)
	MinGoals     int           // Minimum active goals to bother thinking (default: 2)
	PollInterval time.Duration // Gate re-evaluation interval (default: 60s)
	StatePath    string        // Run-state JSON file path (default: {data}/deepthink_state.json)
}

// SafetyConfig contains command-safety-gate settings.
type SafetyConfig struct {
	// FailClosed flips the default tier: commands matching no pattern
	// require confirmation instead of executing freely. Default false
	// preserves the historical fail-open behavior for a trusted
	// single-operator environment.
	FailClosed bool
}

// MonitorConfig contains the embedded status server settings.
type MonitorConfig struct {
	Enabled bool // Enable the status server (default: true)
	Port    int  // Status server port (default: 6464)
	Host    string
}

// NotifyConfig contains notification-channel settings.
type NotifyConfig struct {
	WebhookURL string        // Destination for urgency notifications (empty disables)
	Timeout    time.Duration // Per-notification timeout (default: 5s)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the VOLITION_ prefix.
func LoadConfig() (*Config, error) {
	dataPath := getEnv("VOLITION_DATA_PATH", "./data")

	return &Config{
		Storage: StorageConfig{
			StorageEngine: getEnv("VOLITION_STORAGE_ENGINE", "sqlite"),
			DataPath:      dataPath,
			PostgresURL:   getEnv("VOLITION_POSTGRES_URL", ""),
		},
		Reasoning: ReasoningConfig{
			Provider:       getEnv("VOLITION_REASONING_PROVIDER", "subprocess"),
			Command:        getEnv("VOLITION_REASONING_COMMAND", ""),
			OllamaURL:      getEnv("VOLITION_OLLAMA_URL", "http://localhost:11434"),
			OllamaModel:    getEnv("VOLITION_OLLAMA_MODEL", "qwen2.5:7b"),
			EmbeddingModel: getEnv("VOLITION_EMBEDDING_MODEL", "nomic-embed-text"),
			Timeout:        getEnvDuration("VOLITION_REASONING_TIMEOUT", 10*time.Minute),
			MaxRetries:     getEnvInt("VOLITION_REASONING_RETRIES", 3),
			RatePerMinute:  getEnvInt("VOLITION_REASONING_RATE", 30),
		},
		Scheduler: SchedulerConfig{
			MinInterval:     getEnvDuration("VOLITION_MIN_INTERVAL", 2*time.Minute),
			BaseInterval:    getEnvDuration("VOLITION_BASE_INTERVAL", 10*time.Minute),
			MaxInterval:     getEnvDuration("VOLITION_MAX_INTERVAL", 30*time.Minute),
			WorkPatternPath: getEnv("VOLITION_WORK_PATTERN", ""),
		},
		Agent: AgentConfig{
			StatePath:       getEnv("VOLITION_AGENT_STATE", dataPath+"/agent_state.json"),
			ActionLease:     getEnvDuration("VOLITION_ACTION_LEASE", 15*time.Minute),
			SubAgentContext: getEnvInt("VOLITION_SUBAGENT_CONTEXT", 2000),
		},
		DeepThink: DeepThinkConfig{
			MinIdle:      getEnvDuration("VOLITION_DEEPTHINK_MIN_IDLE", 5*time.Minute),
			MinGoals:     getEnvInt("VOLITION_DEEPTHINK_MIN_GOALS", 2),
			PollInterval: getEnvDuration("VOLITION_DEEPTHINK_POLL", 60*time.Second),
			StatePath:    getEnv("VOLITION_DEEPTHINK_STATE", dataPath+"/deepthink_state.json"),
		},
		Safety: SafetyConfig{
			FailClosed: getEnvBool("VOLITION_SAFETY_FAIL_CLOSED", false),
		},
		Monitor: MonitorConfig{
			Enabled: getEnvBool("VOLITION_MONITOR_ENABLED", true),
			Port:    getEnvInt("VOLITION_MONITOR_PORT", 6464),
			Host:    getEnv("VOLITION_MONITOR_HOST", "127.0.0.1"),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("VOLITION_NOTIFY_WEBHOOK", ""),
			Timeout:    getEnvDuration("VOLITION_NOTIFY_TIMEOUT", 5*time.Second),
		},
	}, nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. Unparseable values fall back to the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default
// value. It recognizes "true", "1", "yes" and "false", "0", "no".
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go duration
// syntax, e.g. "90s", "10m") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
