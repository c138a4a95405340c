package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

func TestRiskCache_Key(t *testing.T) {
	c := NewRiskCache(config.CacheConfig{Addr: "127.0.0.1:6379", TTL: time.Hour})
	defer c.Close()

	assert.Equal(t, "risk:12345", c.riskKey("12345"))
}

func TestRiskCache_UnreachableServerReturnsErrors(t *testing.T) {
	c := NewRiskCache(config.CacheConfig{Addr: "127.0.0.1:1", TTL: time.Hour})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	record, err := c.Get(ctx, "1")
	assert.Error(t, err)
	assert.Nil(t, record)

	err = c.Set(ctx, models.RiskRecord{PostID: "1"})
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))
}
