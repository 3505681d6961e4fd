package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisClientRejectsEmptyAddr(t *testing.T) {
	_, err := NewRedisClient(context.Background(), " ", "", 0)
	assert.EqualError(t, err, "redis: addr is empty")
}

func TestNewRedisClientFailsPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
