package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agendapro/agenda-api/pkg/config"
)

func TestNewRedisDisabled(t *testing.T) {
	client, err := NewRedis(context.Background(), config.RedisConfig{Enabled: false})
	assert.NoError(t, err)
	assert.Nil(t, client)
}
