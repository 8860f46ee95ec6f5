package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Pipeline PipelineConfig
	SMTP     SMTPConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ResultTTL bounds how long a cached latest result row is served.
	ResultTTL time.Duration
}

type KafkaConfig struct {
	Brokers           []string
	TopicObservations string
	GroupID           string
	BatchSize         int
	FlushInterval     time.Duration
}

// PipelineConfig carries the knobs of the forecasting/anomaly batch job.
type PipelineConfig struct {
	ModelsDir       string
	Lookback        time.Duration
	CityPageSize    int
	ZScoreThreshold float64
	MinHistory      int
	Contamination   float64
	ModelCacheTTL   time.Duration
	// HourlyDelay is how far past the top of the hour a scheduled run fires.
	HourlyDelay time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Enabled reports whether the mailer has enough configuration to send.
func (s SMTPConfig) Enabled() bool {
	return s.Username != "" && s.To != ""
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "aqi_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			ResultTTL: getEnvAsDuration("REDIS_RESULT_TTL", 2*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:           strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicObservations: getEnv("KAFKA_TOPIC_OBSERVATIONS", "aqi.observations.raw"),
			GroupID:           getEnv("KAFKA_GROUP_ID", "aqi-ingest"),
			BatchSize:         getEnvAsInt("KAFKA_BATCH_SIZE", 100),
			FlushInterval:     getEnvAsDuration("KAFKA_FLUSH_INTERVAL", 10*time.Second),
		},
		Pipeline: PipelineConfig{
			ModelsDir:       getEnv("MODELS_DIR", "models"),
			Lookback:        getEnvAsDuration("PIPELINE_LOOKBACK", 24*time.Hour),
			CityPageSize:    getEnvAsInt("PIPELINE_CITY_PAGE_SIZE", 1000),
			ZScoreThreshold: getEnvAsFloat("PIPELINE_ZSCORE_THRESHOLD", 2.5),
			MinHistory:      getEnvAsInt("PIPELINE_MIN_HISTORY", 8),
			Contamination:   getEnvAsFloat("PIPELINE_CONTAMINATION", 0.05),
			ModelCacheTTL:   getEnvAsDuration("PIPELINE_MODEL_CACHE_TTL", 6*time.Hour),
			HourlyDelay:     getEnvAsDuration("PIPELINE_HOURLY_DELAY", 5*time.Minute),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "aqi-pipeline@example.com"),
			To:       getEnv("SMTP_TO", ""),
		},
	}

	return config, nil
}

// Validate rejects configuration the services cannot start without.
func (c *Config) Validate() error {
	if c.Database.User == "" || c.Database.Password == "" {
		return fmt.Errorf("DB_USER and DB_PASSWORD must be set (env or .env)")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME must be set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
