package config

import "time"

// Config is the complete engine configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Redis holds shared-cache settings (L2 cache, dedup, rate counters).
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database holds durable-store settings (L3).
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Archive holds the optional full-history archive settings.
	Archive ArchiveConfig `yaml:"archive" env:"ARCHIVE"`

	// Telemetry holds OpenTelemetry settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Engine holds the qualification/handoff pipeline settings.
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Providers holds external collaborator endpoints. A collaborator with
	// no base URL runs on the in-memory fake, for local development.
	Providers ProvidersConfig `yaml:"providers" env:"PROVIDERS"`
}

// ProvidersConfig holds the external collaborator endpoints.
type ProvidersConfig struct {
	CRM       CollaboratorConfig `yaml:"crm" env:"CRM"`
	Messenger CollaboratorConfig `yaml:"messenger" env:"MESSENGER"`
	Calendar  CollaboratorConfig `yaml:"calendar" env:"CALENDAR"`
}

// CollaboratorConfig configures one HTTP collaborator client.
type CollaboratorConfig struct {
	BaseURL string        `yaml:"base_url" env:"BASE_URL"`
	APIKey  string        `yaml:"api_key" env:"API_KEY"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Listen address, e.g. ":8080".
	Addr string `yaml:"addr" env:"ADDR"`
	// Read timeout.
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// Write timeout.
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// Idle timeout.
	IdleTimeout time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	// Graceful shutdown timeout.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// Per-IP webhook rate limit (requests per second).
	RateLimitRPS float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// Per-IP webhook burst.
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// HMAC secret for webhook signature verification. Empty disables the check.
	WebhookSecret string `yaml:"webhook_secret" env:"WEBHOOK_SECRET"`
	// JWT signing secret for admin/override endpoints.
	AdminJWTSecret string `yaml:"admin_jwt_secret" env:"ADMIN_JWT_SECRET"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
	// Output paths.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// Include caller information.
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	DefaultTTL   time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
	// Health check interval; zero disables the loop.
	HealthCheckInterval time.Duration `yaml:"health_check_interval" env:"HEALTH_CHECK_INTERVAL"`
}

// DatabaseConfig holds durable-store settings.
type DatabaseConfig struct {
	// Driver: postgres, mysql, sqlite.
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// ArchiveConfig holds the optional MongoDB full-history archive settings.
type ArchiveConfig struct {
	// Enabled toggles the archive; when false, "earlier discussion" lookups
	// fall back to the recent window in the durable store.
	Enabled    bool          `yaml:"enabled" env:"ENABLED"`
	URI        string        `yaml:"uri" env:"URI"`
	Database   string        `yaml:"database" env:"DATABASE"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// EngineConfig holds the turn pipeline settings.
type EngineConfig struct {
	// TurnDeadline bounds one turn end-to-end; a turn exceeding it is
	// aborted without partial state mutation.
	TurnDeadline time.Duration `yaml:"turn_deadline" env:"TURN_DEADLINE"`

	Dedup         DedupConfig         `yaml:"dedup" env:"DEDUP"`
	Compliance    ComplianceConfig    `yaml:"compliance" env:"COMPLIANCE"`
	Cache         CacheConfig         `yaml:"cache" env:"CACHE"`
	Qualification QualificationConfig `yaml:"qualification" env:"QUALIFICATION"`
	Handoff       HandoffConfig       `yaml:"handoff" env:"HANDOFF"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" env:"RATE_LIMIT"`
	Worker        WorkerConfig        `yaml:"worker" env:"WORKER"`
}

// DedupConfig holds dedup guard settings.
type DedupConfig struct {
	// EventWindow bounds how long a delivered event ID is remembered.
	EventWindow time.Duration `yaml:"event_window" env:"EVENT_WINDOW"`
	// LeaseTTL bounds how long a crashed worker can hold a contact.
	LeaseTTL time.Duration `yaml:"lease_ttl" env:"LEASE_TTL"`
}

// ComplianceConfig holds compliance filter settings.
type ComplianceConfig struct {
	// OptOutPhrases is the case-insensitive opt-out phrase set.
	OptOutPhrases []string `yaml:"opt_out_phrases" env:"OPT_OUT_PHRASES"`
	// DisallowedPatterns are regular expressions for regulated content.
	DisallowedPatterns []string `yaml:"disallowed_patterns" env:"DISALLOWED_PATTERNS"`
	// DisclosureSuffix is appended to every outbound message when set.
	DisclosureSuffix string `yaml:"disclosure_suffix" env:"DISCLOSURE_SUFFIX"`
	// MaxLength is the hard outbound length ceiling.
	MaxLength int `yaml:"max_length" env:"MAX_LENGTH"`
}

// CacheConfig holds tiered conversation cache settings.
type CacheConfig struct {
	// L1MaxContacts bounds the in-process cache.
	L1MaxContacts int `yaml:"l1_max_contacts" env:"L1_MAX_CONTACTS"`
	// L1TTL is the in-process entry TTL.
	L1TTL time.Duration `yaml:"l1_ttl" env:"L1_TTL"`
	// L2TTL is the shared-cache entry TTL.
	L2TTL time.Duration `yaml:"l2_ttl" env:"L2_TTL"`
	// RecentWindow is how many recent messages a snapshot carries.
	RecentWindow int `yaml:"recent_window" env:"RECENT_WINDOW"`
	// LookupTimeout bounds a single-tier lookup.
	LookupTimeout time.Duration `yaml:"lookup_timeout" env:"LOOKUP_TIMEOUT"`
}

// QualificationConfig holds state machine settings.
type QualificationConfig struct {
	// VagueStreakThreshold is how many consecutive vague turns trigger the
	// disengagement branch.
	VagueStreakThreshold int `yaml:"vague_streak_threshold" env:"VAGUE_STREAK_THRESHOLD"`
	// ReengagePolicy controls what happens when a Terminal contact writes
	// again: "restart" or "ignore".
	ReengagePolicy string `yaml:"reengage_policy" env:"REENGAGE_POLICY"`
}

// HandoffConfig holds handoff coordinator settings.
type HandoffConfig struct {
	// ConfidenceThreshold below which no handoff occurs.
	ConfidenceThreshold float64 `yaml:"confidence_threshold" env:"CONFIDENCE_THRESHOLD"`
	// CooldownWindow within which the same from->to pair is rejected.
	CooldownWindow time.Duration `yaml:"cooldown_window" env:"COOLDOWN_WINDOW"`
	// DailyCap bounds total handoffs per contact per rolling day.
	DailyCap int `yaml:"daily_cap" env:"DAILY_CAP"`
}

// RateLimitConfig holds outbound rate limiter settings.
type RateLimitConfig struct {
	// PerHour caps outbound messages per contact per rolling hour.
	PerHour int `yaml:"per_hour" env:"PER_HOUR"`
	// PerDay caps outbound messages per contact per rolling day.
	PerDay int `yaml:"per_day" env:"PER_DAY"`
	// QuietStartHour..QuietEndHour is the local no-send window.
	QuietStartHour int `yaml:"quiet_start_hour" env:"QUIET_START_HOUR"`
	QuietEndHour   int `yaml:"quiet_end_hour" env:"QUIET_END_HOUR"`
	// Timezone for quiet hours, IANA name.
	Timezone string `yaml:"timezone" env:"TIMEZONE"`
	// InitiatedGrace allows replies outside quiet hours this soon after a
	// contact-initiated message.
	InitiatedGrace time.Duration `yaml:"initiated_grace" env:"INITIATED_GRACE"`
}

// WorkerConfig holds side-effect queue settings.
type WorkerConfig struct {
	// Workers consuming the side-effect queue.
	Workers int `yaml:"workers" env:"WORKERS"`
	// QueueSize bounds pending side effects.
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE"`
	// MaxRetries per side effect on collaborator failure.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// RetryBackoff between side-effect retries.
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"RETRY_BACKOFF"`
}
