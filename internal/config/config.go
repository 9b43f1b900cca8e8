package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Host string `mapstructure:"HOST"`
	Env  string `mapstructure:"APP_ENV"`

	CollectionBackend  string `mapstructure:"COLLECTION_BACKEND"`
	FirestoreProject   string `mapstructure:"FIRESTORE_PROJECT"`
	FirestoreCredsFile string `mapstructure:"FIRESTORE_CREDENTIALS_FILE"`
	DbConn             string `mapstructure:"DB_CONN"`
	LocalStorePath     string `mapstructure:"LOCAL_STORE_PATH"`

	ObjectStoreBackend string `mapstructure:"OBJECT_STORE_BACKEND"`
	CloudinaryCloud    string `mapstructure:"CLOUDINARY_CLOUD"`
	CloudinaryKey      string `mapstructure:"CLOUDINARY_KEY"`
	CloudinarySecret   string `mapstructure:"CLOUDINARY_SECRET"`
	S3Bucket           string `mapstructure:"S3_BUCKET"`
	S3Region           string `mapstructure:"S3_REGION"`

	StripeSecret        string `mapstructure:"STRIPE_SECRET"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	MembershipPrice     int64  `mapstructure:"MEMBERSHIP_PRICE"`
	MembershipCurrency  string `mapstructure:"MEMBERSHIP_CURRENCY"`
	MembershipBypass    bool   `mapstructure:"MEMBERSHIP_BYPASS"`

	RabbitMQConn  string `mapstructure:"RABBIT_MQ_CONN"`
	RabbitMQQueue string `mapstructure:"RABBIT_MQ_QUEUE"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	SessionSecret      string `mapstructure:"SESSION_SECRET"`
	SessionSecure      bool   `mapstructure:"SESSION_SECURE"`
	JwtSecret          string `mapstructure:"JWT_SECRET"`

	FeedPageSize     int           `mapstructure:"FEED_PAGE_SIZE"`
	FeedTimeout      time.Duration `mapstructure:"FEED_TIMEOUT"`
	FeedMaxAttempts  int           `mapstructure:"FEED_MAX_ATTEMPTS"`
	FeedBackoffStep  time.Duration `mapstructure:"FEED_BACKOFF_STEP"`
	ProgressDebounce time.Duration `mapstructure:"PROGRESS_DEBOUNCE"`
	SearchDebounce   time.Duration `mapstructure:"SEARCH_DEBOUNCE"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
}

var defaults = map[string]any{
	"HOST":                       "http://localhost:8080",
	"APP_ENV":                    "dev",
	"COLLECTION_BACKEND":         "memory",
	"FIRESTORE_PROJECT":          "",
	"FIRESTORE_CREDENTIALS_FILE": "",
	"DB_CONN":                    "",
	"LOCAL_STORE_PATH":           "data/local",
	"OBJECT_STORE_BACKEND":       "cloudinary",
	"CLOUDINARY_CLOUD":           "",
	"CLOUDINARY_KEY":             "",
	"CLOUDINARY_SECRET":          "",
	"S3_BUCKET":                  "novelnest",
	"S3_REGION":                  "us-west-2",
	"STRIPE_SECRET":              "",
	"STRIPE_WEBHOOK_SECRET":      "",
	"MEMBERSHIP_PRICE":           999,
	"MEMBERSHIP_CURRENCY":        "usd",
	"MEMBERSHIP_BYPASS":          false,
	"RABBIT_MQ_CONN":             "",
	"RABBIT_MQ_QUEUE":            "novel.viewed",
	"GOOGLE_CLIENT_ID":           "",
	"GOOGLE_CLIENT_SECRET":       "",
	"SESSION_SECRET":             "",
	"SESSION_SECURE":             false,
	"JWT_SECRET":                 "",
	"FEED_PAGE_SIZE":             6,
	"FEED_TIMEOUT":               8 * time.Second,
	"FEED_MAX_ATTEMPTS":          3,
	"FEED_BACKOFF_STEP":          2 * time.Second,
	"PROGRESS_DEBOUNCE":          time.Second,
	"SEARCH_DEBOUNCE":            300 * time.Millisecond,
	"SESSION_TTL":                30 * time.Minute,
}

// Load reads the env file at path (if present) and the process environment.
// Environment variables win over the file.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(path)

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading in config: %w", err)
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case "dev", "prod":
	default:
		return fmt.Errorf("environment can only be dev or prod, got %q", c.Env)
	}

	switch c.CollectionBackend {
	case "memory":
	case "firestore":
		if c.FirestoreProject == "" {
			return errors.New("FIRESTORE_PROJECT is required for the firestore backend")
		}
	case "postgres":
		if c.DbConn == "" {
			return errors.New("DB_CONN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown collection backend %q", c.CollectionBackend)
	}

	if c.FeedPageSize < 1 {
		return errors.New("FEED_PAGE_SIZE must be positive")
	}

	if c.FeedMaxAttempts < 1 {
		return errors.New("FEED_MAX_ATTEMPTS must be positive")
	}

	return nil
}
