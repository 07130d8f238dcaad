package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setGatewayEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GATEWAY_STORE_ID", "store-test")
	t.Setenv("GATEWAY_API_TOKEN", "token-test")
	t.Setenv("GATEWAY_CHECKOUT_ID", "chkt-test")
	t.Setenv("GATEWAY_CHECKOUT_URL", "http://gateway.local/checkout")
	t.Setenv("GATEWAY_PURCHASE_URL", "http://gateway.local/purchase")
}

func TestLoad_Defaults(t *testing.T) {
	setGatewayEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "qa", cfg.Gateway.Environment)
	require.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
	require.Nil(t, cfg.Checkout.AmountCeiling)
	require.Equal(t, StoreMemory, cfg.Checkout.SessionStore)
	require.Equal(t, LockLocal, cfg.Checkout.LockBackend)
}

func TestLoad_MissingCredentialsFails(t *testing.T) {
	for _, key := range []string{
		"GATEWAY_STORE_ID",
		"GATEWAY_API_TOKEN",
		"GATEWAY_CHECKOUT_ID",
		"GATEWAY_CHECKOUT_URL",
		"GATEWAY_PURCHASE_URL",
	} {
		t.Run(key, func(t *testing.T) {
			setGatewayEnv(t)
			t.Setenv(key, "")

			_, err := Load()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrInvalidConfig))
			require.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_AmountCeiling(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("CHECKOUT_AMOUNT_CEILING", "11.00")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Checkout.AmountCeiling)
	require.Equal(t, "11", cfg.Checkout.AmountCeiling.String())
}

func TestLoad_InvalidAmountCeiling(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("CHECKOUT_AMOUNT_CEILING", "eleven")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate_RedisBackendsRequireRedis(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("SESSION_STORE", StoreRedis)
	t.Setenv("LOCK_BACKEND", LockRedis)

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.Contains(t, err.Error(), "SESSION_STORE=redis")
	require.Contains(t, err.Error(), "LOCK_BACKEND=redis")

	t.Setenv("REDIS_ENABLED", "true")
	_, err = Load()
	require.NoError(t, err)
}

func TestValidate_UnknownEnvironment(t *testing.T) {
	setGatewayEnv(t)
	t.Setenv("GATEWAY_ENVIRONMENT", "staging")

	_, err := Load()
	require.ErrorIs(t, err, ErrInvalidConfig)
}
