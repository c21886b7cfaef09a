// Package config loads AVA's environment-derived configuration: server
// ports, generative-model credentials, MSWIM defaults, batching knobs, job
// schedules and drift thresholds, following the teacher's singleton +
// YAML-file + env-override + built-in-defaults pattern.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v2"

	"ava/internal/core"
)

// Config is AVA's process-wide configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Generative GenerativeConfig `yaml:"generative"`
	MSWIM      MSWIMConfig      `yaml:"mswim"`
	Session    SessionConfig    `yaml:"session"`
	Shadow     ShadowConfig     `yaml:"shadow"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Drift      DriftConfig      `yaml:"drift"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Cache      CacheConfig      `yaml:"cache"`
}

// ServerConfig carries the HTTP/WS listen addresses and CORS policy.
type ServerConfig struct {
	Port             string   `yaml:"port"`
	WSPort           string   `yaml:"ws_port"`
	Env              string   `yaml:"env"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
	AdminTokenHash   string   `yaml:"admin_token_hash"`
}

// StorageConfig selects and configures the backing repository stores.
type StorageConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Spanner  SpannerConfig  `yaml:"spanner"`

	// ScoringConfigBackend selects the ScoringConfigRepo implementation:
	// "postgres" (default) or "spanner".
	ScoringConfigBackend string `yaml:"scoring_config_backend"`
}

// PostgresConfig configures the lib/pq-backed hot-path repos.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SupabaseConfig configures the analytics-oriented Supabase repos.
type SupabaseConfig struct {
	URL        string `yaml:"url"`
	ServiceKey string `yaml:"service_key"`
}

// SpannerConfig configures the alternate ScoringConfigRepo backend.
type SpannerConfig struct {
	ProjectID  string `yaml:"project_id"`
	InstanceID string `yaml:"instance_id"`
	DatabaseID string `yaml:"database_id"`
}

// GenerativeConfig configures the generative-model gRPC client.
type GenerativeConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Addr      string `yaml:"addr"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// MSWIMConfig carries the built-in default weights/thresholds used when no
// persisted ScoringConfig can be resolved.
type MSWIMConfig struct {
	DefaultWeights    core.SignalWeights  `yaml:"default_weights"`
	DefaultThresholds core.TierThresholds `yaml:"default_thresholds"`
}

// SessionConfig carries the session evaluator's batching knobs.
type SessionConfig struct {
	BatchIntervalMs       int    `yaml:"batch_interval_ms"`
	BatchMaxEvents        int    `yaml:"batch_max_events"`
	MaxContextEvents      int    `yaml:"max_context_events"`
	EvalEngine            string `yaml:"eval_engine"`
	IdleThresholdSec      int    `yaml:"idle_threshold_sec"`
	AutoEngineCooldownSec int    `yaml:"auto_engine_cooldown_sec"`
}

// ShadowConfig toggles the shadow-evaluation comparator.
type ShadowConfig struct {
	Enabled bool `yaml:"enabled"`
}

// JobsConfig carries the job runner's timer schedule.
type JobsConfig struct {
	NightlyHourUTC           int  `yaml:"nightly_hour_utc"`
	CanaryCheckIntervalHours int  `yaml:"canary_check_interval_hours"`
	HourlySnapshotEnabled    bool `yaml:"hourly_snapshot_enabled"`
	JobRunRetentionDays      int  `yaml:"job_run_retention_days"`
}

// DriftConfig carries the drift detector's thresholds.
type DriftConfig struct {
	core.DriftThresholds `yaml:",inline"`
}

// BroadcastConfig holds Pub/Sub settings loaded from the config file and
// env. The broadcast hub is in-process only and does not read them.
type BroadcastConfig struct {
	PubSubEnabled bool   `yaml:"pubsub_enabled"`
	ProjectID     string `yaml:"project_id"`
	TopicID       string `yaml:"topic_id"`
}

// CacheConfig configures the config loader's optional Redis L2 tier.
type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTLSec    int    `yaml:"ttl_sec"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton config, loading it from
// CONFIG_PATH (default "config.yaml") and applying env overrides and
// defaults on first call.
func Get() *Config {
	once.Do(func() {
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.WSPort = getEnv("WS_PORT", c.Server.WSPort)
	c.Server.Env = getEnv("AVA_ENV", c.Server.Env)
	c.Server.AdminTokenHash = getEnv("AVA_ADMIN_TOKEN_HASH", c.Server.AdminTokenHash)
	if v := getEnv("CORS_ALLOW_ORIGINS", ""); v != "" {
		c.Server.CORSAllowOrigins = splitCSV(v)
	}

	c.Storage.Postgres.DSN = getEnv("POSTGRES_DSN", c.Storage.Postgres.DSN)
	c.Storage.Supabase.URL = getEnv("SUPABASE_URL", c.Storage.Supabase.URL)
	c.Storage.Supabase.ServiceKey = getEnv("SUPABASE_SERVICE_KEY", c.Storage.Supabase.ServiceKey)
	c.Storage.Spanner.ProjectID = getEnv("SPANNER_PROJECT_ID", c.Storage.Spanner.ProjectID)
	c.Storage.Spanner.InstanceID = getEnv("SPANNER_INSTANCE_ID", c.Storage.Spanner.InstanceID)
	c.Storage.Spanner.DatabaseID = getEnv("SPANNER_DATABASE_ID", c.Storage.Spanner.DatabaseID)
	c.Storage.ScoringConfigBackend = getEnv("SCORING_CONFIG_BACKEND", c.Storage.ScoringConfigBackend)

	c.Generative.APIKey = getEnv("GENERATIVE_API_KEY", c.Generative.APIKey)
	c.Generative.Model = getEnv("GENERATIVE_MODEL", c.Generative.Model)
	c.Generative.Addr = getEnv("GENERATIVE_ADDR", c.Generative.Addr)
	if v := getEnvInt("GENERATIVE_TIMEOUT_MS", 0); v > 0 {
		c.Generative.TimeoutMs = v
	}

	c.Session.EvalEngine = getEnv("EVAL_ENGINE", c.Session.EvalEngine)
	if v := getEnvInt("BATCH_INTERVAL_MS", 0); v > 0 {
		c.Session.BatchIntervalMs = v
	}
	if v := getEnvInt("BATCH_MAX_EVENTS", 0); v > 0 {
		c.Session.BatchMaxEvents = v
	}
	if v := getEnvInt("MAX_CONTEXT_EVENTS", 0); v > 0 {
		c.Session.MaxContextEvents = v
	}

	c.Shadow.Enabled = getEnvBool("SHADOW_ENABLED", c.Shadow.Enabled)

	if v := getEnvInt("NIGHTLY_HOUR_UTC", -1); v >= 0 {
		c.Jobs.NightlyHourUTC = v
	}
	if v := getEnvInt("CANARY_CHECK_INTERVAL_HOURS", 0); v > 0 {
		c.Jobs.CanaryCheckIntervalHours = v
	}
	c.Jobs.HourlySnapshotEnabled = getEnvBool("HOURLY_SNAPSHOT_ENABLED", c.Jobs.HourlySnapshotEnabled)
	if v := getEnvInt("JOB_RUN_RETENTION_DAYS", 0); v > 0 {
		c.Jobs.JobRunRetentionDays = v
	}

	c.Broadcast.PubSubEnabled = getEnvBool("BROADCAST_PUBSUB_ENABLED", c.Broadcast.PubSubEnabled)
	c.Broadcast.ProjectID = getEnv("BROADCAST_PROJECT_ID", c.Broadcast.ProjectID)
	c.Broadcast.TopicID = getEnv("BROADCAST_TOPIC_ID", c.Broadcast.TopicID)

	c.Cache.RedisAddr = getEnv("CONFIG_CACHE_REDIS_ADDR", c.Cache.RedisAddr)
	if v := getEnvInt("CONFIG_CACHE_TTL_SEC", 0); v > 0 {
		c.Cache.TTLSec = v
	}
}

// applyDefaults fills any still-zero field with the documented built-in
// defaults (spec §6 configuration).
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WSPort == "" {
		c.Server.WSPort = "8081"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}

	def := core.DefaultScoringConfig()
	if c.MSWIM.DefaultWeights.Sum() == 0 {
		c.MSWIM.DefaultWeights = def.Weights
	}
	if !c.MSWIM.DefaultThresholds.Monotonic() {
		c.MSWIM.DefaultThresholds = def.Thresholds
	}

	if c.Session.BatchIntervalMs == 0 {
		c.Session.BatchIntervalMs = 5000
	}
	if c.Session.BatchMaxEvents == 0 {
		c.Session.BatchMaxEvents = 10
	}
	if c.Session.MaxContextEvents == 0 {
		c.Session.MaxContextEvents = 50
	}
	if c.Session.EvalEngine == "" {
		c.Session.EvalEngine = "auto"
	}
	if c.Session.IdleThresholdSec == 0 {
		c.Session.IdleThresholdSec = 900
	}
	if c.Session.AutoEngineCooldownSec == 0 {
		c.Session.AutoEngineCooldownSec = 120
	}

	if c.Jobs.NightlyHourUTC == 0 {
		c.Jobs.NightlyHourUTC = 2
	}
	if c.Jobs.CanaryCheckIntervalHours == 0 {
		c.Jobs.CanaryCheckIntervalHours = 4
	}
	if c.Jobs.JobRunRetentionDays == 0 {
		c.Jobs.JobRunRetentionDays = 30
	}

	driftDefaults := core.DefaultDriftThresholds()
	if c.Drift.TierAgreementFloor == 0 {
		c.Drift.TierAgreementFloor = driftDefaults.TierAgreementFloor
	}
	if c.Drift.DecisionAgreementFloor == 0 {
		c.Drift.DecisionAgreementFloor = driftDefaults.DecisionAgreementFloor
	}
	if c.Drift.MaxCompositeDivergence == 0 {
		c.Drift.MaxCompositeDivergence = driftDefaults.MaxCompositeDivergence
	}
	if c.Drift.SignalShiftThreshold == 0 {
		c.Drift.SignalShiftThreshold = driftDefaults.SignalShiftThreshold
	}
	if c.Drift.ConversionDropPercent == 0 {
		c.Drift.ConversionDropPercent = driftDefaults.ConversionDropPercent
	}
	if c.Drift.RetentionDays == 0 {
		c.Drift.RetentionDays = driftDefaults.RetentionDays
	}

	if c.Broadcast.TopicID == "" {
		c.Broadcast.TopicID = "ava-events"
	}
	if c.Storage.ScoringConfigBackend == "" {
		c.Storage.ScoringConfigBackend = "postgres"
	}
	if c.Cache.TTLSec == 0 {
		c.Cache.TTLSec = 60
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// IsProduction reports whether the server env is "production".
func (c *Config) IsProduction() bool { return c.Server.Env == "production" }

// GetSupabaseURL returns the configured Supabase project URL.
func (c *Config) GetSupabaseURL() string { return c.Storage.Supabase.URL }

// GetSupabaseKey returns the configured Supabase service key.
func (c *Config) GetSupabaseKey() string { return c.Storage.Supabase.ServiceKey }
