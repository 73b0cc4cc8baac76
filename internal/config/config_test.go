package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, BackendPostgres, cfg.Backend())
	assert.Equal(t, 1500*time.Millisecond, cfg.CheckoutDelay)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RedisURL)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("PKSTORE_PRODUCT_BACKEND", "Mongo")
	t.Setenv("PKSTORE_SESSION_IDLE", "5m")
	t.Setenv("PKSTORE_CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.Backend())
	assert.Equal(t, 5*time.Minute, cfg.SessionIdle)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestFromEnv_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("PKSTORE_PRODUCT_BACKEND", "sqlite")
	_, err := FromEnv()
	assert.Error(t, err)
}
