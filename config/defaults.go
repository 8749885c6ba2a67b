package config

import "time"

// DefaultConfig returns the complete default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Archive:   DefaultArchiveConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Engine:    DefaultEngineConfig(),
		Providers: DefaultProvidersConfig(),
	}
}

// DefaultProvidersConfig returns default collaborator settings: no endpoints,
// so local runs use the in-memory fakes.
func DefaultProvidersConfig() ProvidersConfig {
	c := CollaboratorConfig{Timeout: 3 * time.Second}
	return ProvidersConfig{CRM: c, Messenger: c, Calendar: c}
}

// DefaultServerConfig returns default HTTP server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

// DefaultLogConfig returns default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultRedisConfig returns default Redis settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:                "localhost:6379",
		DB:                  0,
		PoolSize:            10,
		MinIdleConns:        2,
		MaxRetries:          3,
		DefaultTTL:          5 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// DefaultDatabaseConfig returns default durable-store settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "leadflow",
		Name:            "leadflow",
		SSLMode:         "disable",
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultArchiveConfig returns default archive settings (disabled).
func DefaultArchiveConfig() ArchiveConfig {
	return ArchiveConfig{
		Enabled:    false,
		URI:        "mongodb://localhost:27017",
		Database:   "leadflow",
		Collection: "conversations",
		Timeout:    2 * time.Second,
	}
}

// DefaultTelemetryConfig returns default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "leadflow",
		SampleRate:   1.0,
	}
}

// DefaultEngineConfig returns default pipeline settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		TurnDeadline:  10 * time.Second,
		Dedup:         DefaultDedupConfig(),
		Compliance:    DefaultComplianceConfig(),
		Cache:         DefaultCacheConfig(),
		Qualification: DefaultQualificationConfig(),
		Handoff:       DefaultHandoffConfig(),
		RateLimit:     DefaultRateLimitConfig(),
		Worker:        DefaultWorkerConfig(),
	}
}

// DefaultDedupConfig returns default dedup guard settings.
func DefaultDedupConfig() DedupConfig {
	return DedupConfig{
		EventWindow: 10 * time.Minute,
		LeaseTTL:    30 * time.Second,
	}
}

// DefaultComplianceConfig returns default compliance filter settings.
func DefaultComplianceConfig() ComplianceConfig {
	return ComplianceConfig{
		OptOutPhrases: []string{
			"stop", "unsubscribe", "opt out", "remove me", "cancel",
			"not interested", "parar", "cancelar", "no más",
		},
		DisallowedPatterns: []string{
			`(?i)\bno (?:kids|children|families)\b`,
			`(?i)\b(?:whites?|blacks?|asians?|hispanics?) only\b`,
			`(?i)\bperfect for (?:young|single|christian|white)\b`,
			`(?i)\bexclusive(?:ly)? for\b.{0,24}\b(?:families|couples|professionals)\b`,
		},
		DisclosureSuffix: "",
		MaxLength:        160,
	}
}

// DefaultCacheConfig returns default tiered cache settings.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		L1MaxContacts: 2048,
		L1TTL:         60 * time.Second,
		L2TTL:         30 * time.Minute,
		RecentWindow:  20,
		LookupTimeout: 50 * time.Millisecond,
	}
}

// DefaultQualificationConfig returns default state machine settings.
func DefaultQualificationConfig() QualificationConfig {
	return QualificationConfig{
		VagueStreakThreshold: 2,
		ReengagePolicy:       "restart",
	}
}

// DefaultHandoffConfig returns default handoff coordinator settings.
func DefaultHandoffConfig() HandoffConfig {
	return HandoffConfig{
		ConfidenceThreshold: 0.7,
		CooldownWindow:      time.Hour,
		DailyCap:            3,
	}
}

// DefaultRateLimitConfig returns default outbound limiter settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PerHour:        4,
		PerDay:         12,
		QuietStartHour: 21,
		QuietEndHour:   8,
		Timezone:       "America/Phoenix",
		InitiatedGrace: 5 * time.Minute,
	}
}

// DefaultWorkerConfig returns default side-effect queue settings.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:      4,
		QueueSize:    1024,
		MaxRetries:   3,
		RetryBackoff: 2 * time.Second,
	}
}
