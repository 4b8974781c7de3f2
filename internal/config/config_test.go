package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.NotEmpty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Redis.URI, "redis is opt-in")
	assert.Empty(t, cfg.Kafka.Brokers, "kafka is opt-in")
	assert.Equal(t, "chat-events", cfg.Kafka.Topic)
}

func TestLoadConfigIsSingleton(t *testing.T) {
	first, err := LoadConfig()
	require.NoError(t, err)
	second, err := LoadConfig()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a"}, splitList("a"))
	assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, splitList("kafka-1:9092 ,kafka-2:9092,"))
}
