package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// JWT verification. Tokens are issued by the marketplace auth service.
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// Message store backend: "sqlite" or "mongo".
	StoreBackend  string `mapstructure:"store_backend" yaml:"store_backend"`
	DatabasePath  string `mapstructure:"database_path" yaml:"database_path"`
	MongoURI      string `mapstructure:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`

	// Attachment blob backend: "local" or "s3".
	BlobBackend string `mapstructure:"blob_backend" yaml:"blob_backend"`
	UploadDir   string `mapstructure:"upload_dir" yaml:"upload_dir"`
	BaseURL     string `mapstructure:"base_url" yaml:"base_url"`
	S3Region    string `mapstructure:"s3_region" yaml:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket" yaml:"s3_bucket"`

	// MaxUploadBytes caps attachment uploads.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	// RedisAddr enables the presence mirror when non-empty.
	RedisAddr   string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix" yaml:"redis_prefix"`

	// KafkaBrokers enables message-created publishing when non-empty.
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" yaml:"kafka_topic"`

	// SendRateLimit caps send_message frames per connection per minute.
	// Zero disables the limit.
	SendRateLimit int `mapstructure:"send_rate_limit" yaml:"send_rate_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		JWTIssuer:         "skillbridge-auth",
		JWTAudience:       "skillbridge-messaging",
		StoreBackend:      "sqlite",
		DatabasePath:      "messaging.db",
		MongoDatabase:     "skillbridge",
		BlobBackend:       "local",
		UploadDir:         "uploads",
		BaseURL:           "http://localhost:8080",
		S3Region:          "us-east-1",
		MaxUploadBytes:    10 << 20,
		RedisPrefix:       "msg",
		KafkaTopic:        "messaging.message-created",
		SendRateLimit:     120,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.StoreBackend != "" {
		c.StoreBackend = other.StoreBackend
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
