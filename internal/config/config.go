package config

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
}

var (
	instance *Config
	once     sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	DSN string
}

type RedisConfig struct {
	// URI enables the presence snapshot store when non-empty.
	URI string
}

type KafkaConfig struct {
	// Brokers enables the event firehose when non-empty.
	Brokers []string
	Topic   string
}

type JWTConfig struct {
	Secret string
}

func LoadConfig() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("CHAT_HOST", "0.0.0.0")
		viper.SetDefault("CHAT_PORT", "8080")
		viper.SetDefault("CHAT_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHAT_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("CHAT_DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=chat port=5432 sslmode=disable")
		viper.SetDefault("CHAT_REDIS_URI", "")
		viper.SetDefault("CHAT_KAFKA_BROKERS", "")
		viper.SetDefault("CHAT_KAFKA_TOPIC", "chat-events")
		viper.SetDefault("CHAT_JWT_SECRET", "secret")

		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("CHAT_HOST"),
				Port:         viper.GetString("CHAT_PORT"),
				ReadTimeout:  viper.GetDuration("CHAT_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("CHAT_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("CHAT_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				DSN: viper.GetString("CHAT_DATABASE_DSN"),
			},
			Redis: RedisConfig{
				URI: viper.GetString("CHAT_REDIS_URI"),
			},
			Kafka: KafkaConfig{
				Brokers: splitList(viper.GetString("CHAT_KAFKA_BROKERS")),
				Topic:   viper.GetString("CHAT_KAFKA_TOPIC"),
			},
			JWT: JWTConfig{
				Secret: viper.GetString("CHAT_JWT_SECRET"),
			},
		}
	})

	return instance, nil
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
