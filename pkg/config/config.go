package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port    string `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`

	MongoSQL   DatabaseConfig  `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig  `mapstructure:"pg"`
	Redis      RedisConfig     `mapstructure:"redis"`
	Kafka      KafkaConfig     `mapstructure:"kafka"`
	MinIO      MinIOConfig     `mapstructure:"minio"`
	SendPulse  SendPulseConfig `mapstructure:"sendpulse"`
	OTP        OTPConfig       `mapstructure:"otp"`
	Reactor    ReactorConfig   `mapstructure:"reactor"`
	Digest     DigestConfig    `mapstructure:"digest"`
}

// Digest definition digest_service YAML structure
type Digest struct {
	Port string `mapstructure:"port"`

	MongoSQL   DatabaseConfig  `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig  `mapstructure:"pg"`
	SendPulse  SendPulseConfig `mapstructure:"sendpulse"`
	Digest     DigestConfig    `mapstructure:"digest"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	Options       string `mapstructure:"options"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting for message-created events
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	GroupID       string   `mapstructure:"group_id"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// MinIOConfig definition attachment bucket
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	PublicURL     string `mapstructure:"public_url"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	BucketName    string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// SendPulseConfig definition notification provider credentials
type SendPulseConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	FromName     string        `mapstructure:"from_name"`
	FromEmail    string        `mapstructure:"from_email"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// OTPConfig definition phone code settings
type OTPConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	ResendLimit time.Duration `mapstructure:"resend_limit"`
}

// ReactorConfig definition message-created fan-out settings
type ReactorConfig struct {
	FanOutLimit    int           `mapstructure:"fan_out_limit"`
	OutboxInterval time.Duration `mapstructure:"outbox_interval"`
	OutboxGrace    time.Duration `mapstructure:"outbox_grace"`
}

// DigestConfig definition daily digest settings
type DigestConfig struct {
	Hour            int           `mapstructure:"hour"`
	Minute          int           `mapstructure:"minute"`
	TimeZone        string        `mapstructure:"time_zone"`
	Cooldown        time.Duration `mapstructure:"cooldown"`
	Concurrency     int           `mapstructure:"concurrency"`
	DispatchTimeout time.Duration `mapstructure:"dispatch_timeout"`
	RunBudget       time.Duration `mapstructure:"run_budget"`
	AppURL          string        `mapstructure:"app_url"`
}
