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

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 600, cfg.Server.RateLimitPerMinute)
	assert.Equal(t, 5*time.Minute, cfg.Pricing.CacheTTL)
	assert.Equal(t, 10*time.Second, cfg.Pricing.ProviderTimeout)
	assert.Equal(t, "2999.99", cfg.Compliance.CashCeiling.String())
	assert.Equal(t, "10000", cfg.Compliance.ReportingThreshold.String())
	assert.Equal(t, []string{"GOLD"}, cfg.Compliance.ReportableMetals)
	assert.Equal(t, 10, cfg.Compliance.HoldingDays)
	assert.Equal(t, 30, cfg.Compliance.HighValueDays)
	assert.Equal(t, 365*24*time.Hour, cfg.Compliance.AMLValidity)
	assert.Equal(t, 3, cfg.Fixing.RenewalMonths)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("METAL_CACHE_MINUTES", "2")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")
	t.Setenv("AML_REPORTABLE_METALS", "GOLD,PLATINUM")
	t.Setenv("AML_CASH_MAX", "1999.99")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 2*time.Minute, cfg.Pricing.CacheTTL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"GOLD", "PLATINUM"}, cfg.Compliance.ReportableMetals)
	assert.Equal(t, "1999.99", cfg.Compliance.CashCeiling.String())
}

func TestFromEnv_ReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("METAL_CACHE_MINUTES", "five")
	t.Setenv("METAL_API_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METAL_CACHE_MINUTES")
	assert.Contains(t, err.Error(), "METAL_API_TIMEOUT")
}
