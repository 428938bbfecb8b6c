package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/spec-kit/warranty-portal/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Events   EventsConfig
	Workflow WorkflowConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
	// SlowQuery logs statements slower than this at Warn; zero disables it.
	SlowQuery time.Duration
}

// RedisConfig holds Redis connection values. An empty Addr disables Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is json (default) or console.
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	// BootstrapStaffEmails register directly with the staff role.
	BootstrapStaffEmails []string
}

// StorageConfig configures the attachment blob store.
type StorageConfig struct {
	Dir           string
	PublicBaseURL string
	MaxUploadMB   int
}

// MaxUploadBytes returns the per-file upload cap.
func (s StorageConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) << 20
}

// EventsConfig configures where committed domain events are relayed.
type EventsConfig struct {
	RedisChannel string
	KafkaBrokers []string
	KafkaTopic   string
	Buffer       int
}

// WorkflowConfig holds the ticket workflow policy.
type WorkflowConfig struct {
	ReopenOnMessage  bool
	RestrictedBrands string
	MinIssueLength   int
}

// BrandPolicy parses RestrictedBrands. Entries are comma separated; each is
// either `Brand` (batch number and manufacturing date required) or
// `Brand:field|field`.
func (w WorkflowConfig) BrandPolicy() (domain.BrandPolicy, error) {
	rules := map[string][]domain.ConditionalField{}
	for _, entry := range strings.Split(w.RestrictedBrands, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		brand, fieldList, hasFields := strings.Cut(entry, ":")
		brand = strings.TrimSpace(brand)
		if brand == "" {
			return domain.BrandPolicy{}, fmt.Errorf("invalid WORKFLOW_RESTRICTED_BRANDS entry %q: empty brand", entry)
		}
		if !hasFields {
			rules[brand] = []domain.ConditionalField{domain.FieldBatchNumber, domain.FieldManufacturingDate}
			continue
		}
		var fields []domain.ConditionalField
		for _, name := range strings.Split(fieldList, "|") {
			field := domain.ConditionalField(strings.TrimSpace(name))
			if !field.Valid() {
				return domain.BrandPolicy{}, fmt.Errorf("invalid WORKFLOW_RESTRICTED_BRANDS entry %q: unknown field %q", entry, field)
			}
			fields = append(fields, field)
		}
		rules[brand] = fields
	}
	return domain.NewBrandPolicy(rules), nil
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "warranty-portal"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
			SlowQuery:      time.Duration(getEnvAsInt("POSTGRES_SLOW_QUERY_MS", 200)) * time.Millisecond,
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapStaffEmails:  getEnvAsList("AUTH_BOOTSTRAP_STAFF_EMAILS"),
		},
		Storage: StorageConfig{
			Dir:           getEnv("STORAGE_DIR", "./data/blobs"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "/files"),
			MaxUploadMB:   getEnvAsInt("STORAGE_MAX_UPLOAD_MB", 10),
		},
		Events: EventsConfig{
			RedisChannel: getEnv("EVENTS_REDIS_CHANNEL", "warranty:events"),
			KafkaBrokers: getEnvAsList("EVENTS_KAFKA_BROKERS"),
			KafkaTopic:   getEnv("EVENTS_KAFKA_TOPIC", "warranty.events"),
			Buffer:       getEnvAsInt("EVENTS_BUFFER", 256),
		},
		Workflow: WorkflowConfig{
			ReopenOnMessage:  getEnvAsBool("WORKFLOW_REOPEN_ON_MESSAGE", false),
			RestrictedBrands: getEnv("WORKFLOW_RESTRICTED_BRANDS", "MET,Hutchinson"),
			MinIssueLength:   getEnvAsInt("WORKFLOW_MIN_ISSUE_LENGTH", 20),
		},
	}

	if _, err := cfg.Workflow.BrandPolicy(); err != nil {
		return nil, err
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return nil, fmt.Errorf("invalid AUTH_BCRYPT_COST: %d", cfg.Auth.BcryptCost)
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
