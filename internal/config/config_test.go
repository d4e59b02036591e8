package config_test

import (
	"testing"
	"time"

	"storefront/internal/config"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "mock", cfg.Payment.Provider)
	assert.Equal(t, 10*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.True(t, cfg.Payment.RefundOnCancel)
	assert.False(t, cfg.RabbitMQ.Enabled)
	assert.Equal(t, "order", cfg.RabbitMQ.Exchange)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_PORT", ":9090")
	t.Setenv("PAYMENT_PROVIDER", "toss")
	t.Setenv("TOSS_SECRET_KEY", "test_sk_123")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("REFUND_ON_CANCEL", "false")

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, "toss", cfg.Payment.Provider)
	assert.Equal(t, "test_sk_123", cfg.Payment.TossSecretKey)
	assert.Equal(t, 3*time.Second, cfg.Payment.Timeout)
	assert.False(t, cfg.Payment.RefundOnCancel)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"unknown provider", map[string]string{"PAYMENT_PROVIDER": "paypal"}},
		{"toss without secret", map[string]string{"PAYMENT_PROVIDER": "toss"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load(viper.New())
			assert.Error(t, err)
		})
	}
}
