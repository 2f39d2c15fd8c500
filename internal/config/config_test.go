package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 15*time.Minute, cfg.Permit.PaymentTimeout)
	assert.Equal(t, 12, cfg.Permit.MaxExtensionMonths)

	loc, err := cfg.Permit.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Helsinki", loc.String())
}

func TestValidateRejectsUnknownTimezone(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Permit.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMissingPaymentTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Permit.PaymentTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestNewConfigReadsEnvironment(t *testing.T) {
	t.Setenv("PARKINGPERMITS_PERMIT_PAYMENT_TIMEOUT", "20m")
	t.Setenv("PARKINGPERMITS_SERVER_ADDRESS", ":9090")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, cfg.Permit.PaymentTimeout)
	assert.Equal(t, ":9090", cfg.Server.Address)
}

func TestGetDSN(t *testing.T) {
	c := PostgresConfig{User: "u", Password: "p", DBName: "db", Host: "h", Port: 5432, SSLMode: "disable"}
	assert.Equal(t, "user=u password=p dbname=db host=h port=5432 sslmode=disable", c.GetDSN())
}
