package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"safeclicker/models"
)

var (
	DB        *gorm.DB
	AppConfig Config
	envLoaded bool
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment string `json:"environment"`
	ServerPort  string `json:"server_port"`
	LogLevel    string `json:"log_level"`
	SentryDSN   string `json:"-"`
	JWTSecret   string `json:"-"`

	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     string `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"-"`
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`

	// Tracking links are AppBaseURL + TrackingEndpoint + "/<token>"; a visit
	// redirects to FrontendURL + LandingPath with ?token=<token>.
	AppBaseURL       string `json:"app_base_url"`
	TrackingEndpoint string `json:"tracking_endpoint"`
	FrontendURL      string `json:"frontend_url"`
	LandingPath      string `json:"landing_path"`

	Redis             RedisConfig   `json:"redis"`
	RateLimitDispatch int           `json:"rate_limit_dispatch"`
	DispatchWorkers   int           `json:"dispatch_workers"`
	DispatchLockTTL   time.Duration `json:"dispatch_lock_ttl"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	cfg := Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  getEnv("SERVER_PORT", "8000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "safeclicker"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 100),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		FromEmail:    getEnv("SMTP_FROM_EMAIL", "no-reply@localhost"),
		FromName:     getEnv("SMTP_FROM_NAME", "Safe Clicker"),

		AppBaseURL:       getEnv("APP_BASE_URL", "http://localhost:8000"),
		TrackingEndpoint: getEnv("TRACKING_ENDPOINT", "/campaigns/track"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		LandingPath:      getEnv("LANDING_PATH", "/click-alert"),

		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		RateLimitDispatch: getEnvAsInt("RATE_LIMIT_DISPATCH", 5),
		DispatchWorkers:   getEnvAsInt("DISPATCH_WORKERS", 1),
		DispatchLockTTL:   getEnvAsDuration("DISPATCH_LOCK_TTL", 10*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	AppConfig = cfg

	logConfig()
	return nil
}

// Validate checks the settings the service cannot run without.
func (c Config) Validate() error {
	if c.DBPassword == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	for key, raw := range map[string]string{"APP_BASE_URL": c.AppBaseURL, "FRONTEND_URL": c.FrontendURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
		}
	}
	if c.DispatchWorkers < 1 {
		return fmt.Errorf("DISPATCH_WORKERS must be at least 1")
	}
	return nil
}

// LandingURL is the training page a tracking visit is redirected to.
func (c Config) LandingURL() string {
	return strings.TrimRight(c.FrontendURL, "/") + "/" + strings.TrimLeft(c.LandingPath, "/")
}

func ConnectDB() error {
	logrus.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		AppConfig.DBHost,
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBSSLMode,
	)
	logrus.WithField("dsn", maskPassword(dsn)).Info("Using connection string")

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(AppConfig.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(AppConfig.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logrus.Info("Successfully connected to the database")

	logrus.Info("Starting database migration...")
	if err := models.Migrate(DB); err != nil {
		return fmt.Errorf("database migration failed: %w", err)
	}
	if err := models.CreateDefaultDepartments(DB); err != nil {
		return fmt.Errorf("failed to seed departments: %w", err)
	}
	logrus.Info("Database migration completed")
	return nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":   AppConfig.Environment,
		"server_port":   AppConfig.ServerPort,
		"database":      fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"app_base_url":  AppConfig.AppBaseURL,
		"frontend_url":  AppConfig.FrontendURL,
		"redis_enabled": AppConfig.Redis.Enabled,
		"workers":       AppConfig.DispatchWorkers,
	}).Info("Loaded configuration")
}
