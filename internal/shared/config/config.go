package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIVersion     string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	SSO        SSOConfig
	Scheduling SchedulingConfig
	Kafka      KafkaConfig

	// Admin accounts allowed to sign in with a password
	Admins []AdminAccount

	// Browser origins allowed by CORS
	CORSOrigins []string

	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	Addr      string
	KeyPrefix string

	// Upper bound for a single store operation
	OpTimeout time.Duration
	// How long the public slot listing may be served from cache
	CacheTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	Issuer       string
	JWTExpiresIn time.Duration
}

// TierLimit is the ceiling and window of one rate-limit tier
type TierLimit struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled    bool
	Global     TierLimit
	Auth       TierLimit
	Booking    TierLimit
	Admin      TierLimit
	Slots      TierLimit
	AdminLogin TierLimit
	// Verified emails that skip every tier
	BypassEmails []string
}

// SSOConfig holds the handoff token settings shared with the identity service
type SSOConfig struct {
	Secret           string
	AllowedOrigin    string
	ClockSkew        time.Duration
	MaxTokenLength   int
	AllowedProviders []string
	RedirectPath     string
}

// SchedulingConfig describes slot generation
type SchedulingConfig struct {
	Timezone            string
	TutorID             string
	WeeklyTemplate      string
	WeeksAhead          int
	LowInventoryFloor   int
	LocationType        string
	LocationValue       string
	MaintenanceInterval time.Duration
	MaintenanceEnabled  bool
}

// KafkaConfig holds the notification producer settings
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	BookingTopic  string
	OperatorTopic string
}

// AdminAccount is one email and bcrypt hash pair
type AdminAccount struct {
	Email        string
	PasswordHash string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIVersion:     getEnv("API_VERSION", "v1"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "tutorbook_db"),
			User:     getEnv("DB_USER", "tutorbook_user"),
			Password: getEnv("DB_PASSWORD", "tutorbook_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getIntEnv("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "tutorbook"),
			OpTimeout: getDurationEnv("STORE_OP_TIMEOUT", 3*time.Second),
			CacheTTL:  getDurationEnv("REDIS_CACHE_TTL", 30*time.Second),
		},

		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			Issuer:       getEnv("JWT_ISSUER", "tutorbook"),
			JWTExpiresIn: getDurationEnvSeconds("JWT_EXPIRES_IN", 8*time.Hour),
		},

		RateLimit: RateLimitConfig{
			Enabled:      getBoolEnv("RATE_LIMIT_ENABLED", true),
			Global:       getTierEnv("RATE_LIMIT_GLOBAL", TierLimit{Limit: 1000, Window: time.Hour}),
			Auth:         getTierEnv("RATE_LIMIT_AUTH", TierLimit{Limit: 10, Window: 15 * time.Minute}),
			Booking:      getTierEnv("RATE_LIMIT_BOOKING", TierLimit{Limit: 5, Window: time.Hour}),
			Admin:        getTierEnv("RATE_LIMIT_ADMIN", TierLimit{Limit: 200, Window: time.Hour}),
			Slots:        getTierEnv("RATE_LIMIT_SLOTS", TierLimit{Limit: 50, Window: time.Hour}),
			AdminLogin:   getTierEnv("RATE_LIMIT_ADMIN_LOGIN", TierLimit{Limit: 5, Window: time.Hour}),
			BypassEmails: getStringSliceEnv("RATE_LIMIT_BYPASS_EMAILS", []string{}),
		},

		SSO: SSOConfig{
			Secret:           getEnv("SSO_SHARED_SECRET", ""),
			AllowedOrigin:    getEnv("SSO_ALLOWED_ORIGIN", "http://localhost:3000"),
			ClockSkew:        getDurationEnvSeconds("SSO_CLOCK_SKEW", 120*time.Second),
			MaxTokenLength:   getIntEnv("SSO_MAX_TOKEN_LENGTH", 2000),
			AllowedProviders: getStringSliceEnv("SSO_ALLOWED_PROVIDERS", []string{"google", "microsoft"}),
			RedirectPath:     getEnv("SSO_REDIRECT_PATH", "/book"),
		},

		Scheduling: SchedulingConfig{
			Timezone:            getEnv("BUSINESS_TIMEZONE", "America/New_York"),
			TutorID:             getEnv("TUTOR_ID", "tutor1"),
			WeeklyTemplate:      getEnv("WEEKLY_TEMPLATE", "TUE=11:00,12:00,13:00;WED=14:00,15:00;THU=12:00,13:00;FRI=11:00,12:00,13:00"),
			WeeksAhead:          getIntEnv("SLOT_WEEKS_AHEAD", 6),
			LowInventoryFloor:   getIntEnv("LOW_INVENTORY_FLOOR", 15),
			LocationType:        getEnv("SLOT_LOCATION_TYPE", "room"),
			LocationValue:       getEnv("SLOT_LOCATION_VALUE", "Library Room 204"),
			MaintenanceInterval: getDurationEnv("MAINTENANCE_INTERVAL", time.Hour),
			MaintenanceEnabled:  getBoolEnv("MAINTENANCE_ENABLED", true),
		},

		Kafka: KafkaConfig{
			Enabled:       getBoolEnv("KAFKA_ENABLED", false),
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			BookingTopic:  getEnv("KAFKA_BOOKING_TOPIC", "tutorbook.bookings"),
			OperatorTopic: getEnv("KAFKA_OPERATOR_TOPIC", "tutorbook.operator"),
		},

		CORSOrigins: getStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),

		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	cfg.Admins = parseAdminAccounts(os.Getenv("ADMIN_ACCOUNTS"))

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// Validate reports settings the service cannot start without
func (c *Config) Validate() error {
	if c.SSO.Secret == "" {
		return fmt.Errorf("SSO_SHARED_SECRET is required")
	}
	if c.IsProduction() && c.JWT.Secret == "your-super-secret-jwt-key" {
		return fmt.Errorf("JWT_SECRET must be set in release mode")
	}
	if c.Scheduling.WeeksAhead <= 0 {
		return fmt.Errorf("SLOT_WEEKS_AHEAD must be positive, got %d", c.Scheduling.WeeksAhead)
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", c.Scheduling.Timezone, err)
	}
	if c.Scheduling.MaintenanceInterval <= 0 {
		return fmt.Errorf("MAINTENANCE_INTERVAL must be positive, got %s", c.Scheduling.MaintenanceInterval)
	}
	for prefix, tier := range map[string]TierLimit{
		"RATE_LIMIT_GLOBAL":      c.RateLimit.Global,
		"RATE_LIMIT_AUTH":        c.RateLimit.Auth,
		"RATE_LIMIT_BOOKING":     c.RateLimit.Booking,
		"RATE_LIMIT_ADMIN":       c.RateLimit.Admin,
		"RATE_LIMIT_SLOTS":       c.RateLimit.Slots,
		"RATE_LIMIT_ADMIN_LOGIN": c.RateLimit.AdminLogin,
	} {
		if tier.Window <= 0 {
			return fmt.Errorf("%s_WINDOW must be positive, got %s", prefix, tier.Window)
		}
		if tier.Limit <= 0 {
			return fmt.Errorf("%s_REQUESTS must be positive, got %d", prefix, tier.Limit)
		}
	}
	return nil
}

// parseAdminAccounts reads "email:hash,email:hash". bcrypt hashes never
// contain ':' or ','.
func parseAdminAccounts(raw string) []AdminAccount {
	var accounts []AdminAccount
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		email, hash, ok := strings.Cut(entry, ":")
		if !ok || email == "" || hash == "" {
			continue
		}
		accounts = append(accounts, AdminAccount{
			Email:        strings.ToLower(strings.TrimSpace(email)),
			PasswordHash: strings.TrimSpace(hash),
		})
	}
	return accounts
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getTierEnv reads <PREFIX>_REQUESTS and <PREFIX>_WINDOW
func getTierEnv(prefix string, fallback TierLimit) TierLimit {
	return TierLimit{
		Limit:  getIntEnv(prefix+"_REQUESTS", fallback.Limit),
		Window: getDurationEnv(prefix+"_WINDOW", fallback.Window),
	}
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
