package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicHost string
}

type Twitter struct {
	ConsumerKey    string
	ConsumerSecret string
	APIURL         string
	UploadURL      string
}

type Instagram struct {
	GraphURL     string
	PollInterval time.Duration
	PollAttempts int
}

type LinkedIn struct {
	APIURL     string
	APIVersion string
}

type Schedule struct {
	CronEnabled      bool
	SweepSpec        string
	MetricsSpec      string
	TokenRefreshSpec string
	BatchSize        int
	SyncBatchSize    int
	MetricsRPS       float64
}

type Config struct {
	Port               string
	GoogleClientID     string
	GoogleClientSecret string
	PostgresURI        string
	RedisURI           string
	SecretKey          string
	CookieName         string
	CronSecret         string
	R2                 R2
	Twitter            Twitter
	Instagram          Instagram
	LinkedIn           LinkedIn
	Schedule           Schedule
}

func LoadConfig() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		PostgresURI:        getEnv("POSTGRES_URI", ""),
		RedisURI:           getEnv("REDIS_URI", ""),
		SecretKey:          getEnv("SECRET_KEY", ""),
		CookieName:         getEnv("COOKIE_NAME", "crosspost_session"),
		CronSecret:         getEnv("CRON_SECRET", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
			PublicHost: getEnv("R2_PUBLIC_HOST", ""),
		},
		Twitter: Twitter{
			ConsumerKey:    getEnv("TWITTER_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("TWITTER_CONSUMER_SECRET", ""),
			APIURL:         getEnv("TWITTER_API_URL", "https://api.twitter.com"),
			UploadURL:      getEnv("TWITTER_UPLOAD_URL", "https://upload.twitter.com"),
		},
		Instagram: Instagram{
			GraphURL:     getEnv("INSTAGRAM_GRAPH_URL", "https://graph.instagram.com/v21.0"),
			PollInterval: getEnvDuration("INSTAGRAM_POLL_INTERVAL", 5*time.Second),
			PollAttempts: getEnvInt("INSTAGRAM_POLL_ATTEMPTS", 10),
		},
		LinkedIn: LinkedIn{
			APIURL:     getEnv("LINKEDIN_API_URL", "https://api.linkedin.com"),
			APIVersion: getEnv("LINKEDIN_API_VERSION", "202401"),
		},
		Schedule: Schedule{
			CronEnabled:      getEnvBool("CRON_ENABLED", false),
			SweepSpec:        getEnv("SWEEP_SPEC", "@every 1m"),
			MetricsSpec:      getEnv("METRICS_SPEC", "@every 1h"),
			TokenRefreshSpec: getEnv("TOKEN_REFRESH_SPEC", "@every 10m"),
			BatchSize:        getEnvInt("SCHEDULE_BATCH_SIZE", 20),
			SyncBatchSize:    getEnvInt("SYNC_BATCH_SIZE", 50),
			MetricsRPS:       getEnvFloat("METRICS_RPS", 2),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
