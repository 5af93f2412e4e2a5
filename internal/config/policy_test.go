package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPolicyHolderDefaultsWithoutFile(t *testing.T) {
	chdir(t, t.TempDir())

	holder, err := NewPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 15, policy.ExpireMinutes)
	assert.True(t, policy.EnforcePeriodWindow)
	assert.Equal(t, 15*time.Minute, policy.Expiry())
	assert.Equal(t, 30*time.Second, policy.CallbackLockTTL())
}

func TestNewPolicyHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := []byte("payment:\n  expireMinutes: 20\n  enforcePeriodWindow: false\n  callbackLockTTLSeconds: 5\n  timezone: UTC\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payment-policy.yml"), content, 0o600))

	holder, err := NewPolicyHolder(zap.NewNop())
	require.NoError(t, err)

	policy := holder.Get()
	assert.Equal(t, 20, policy.ExpireMinutes)
	assert.False(t, policy.EnforcePeriodWindow)
	assert.Equal(t, time.UTC.String(), policy.Location().String())
}

func TestNewPolicyHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	content := []byte("payment:\n  expireMinutes: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payment-policy.yml"), content, 0o600))

	_, err := NewPolicyHolder(zap.NewNop())
	assert.Error(t, err)
}

func TestPolicyLocationFallsBackToFixedZone(t *testing.T) {
	policy := PaymentPolicy{Timezone: "Nowhere/Invalid"}
	_, offset := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).In(policy.Location()).Zone()
	assert.Equal(t, 7*60*60, offset)
}

func TestNilPolicyHolderReturnsDefaults(t *testing.T) {
	var holder *PolicyHolder
	assert.Equal(t, DefaultPaymentPolicy(), holder.Get())
}

func TestLoadGatewayDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("VNPAY_TMN_CODE", " TMN01 ")
	t.Setenv("FRONTEND_URL", "https://portal.example.vn/")

	cfg := Load()
	assert.Equal(t, "TMN01", cfg.Gateway.TmnCode)
	assert.Equal(t, DefaultPayURL, cfg.Gateway.PayURL)
	assert.Equal(t, DefaultReturnURL, cfg.Gateway.ReturnURL)
	assert.Equal(t, "https://portal.example.vn", cfg.Gateway.FrontendURL)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadTrustedProxies(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("TRUSTED_PROXIES", "")
	assert.Empty(t, Load().TrustedProxies)

	t.Setenv("TRUSTED_PROXIES", " 10.0.0.0/8, ,192.168.1.10 ")
	assert.Equal(t, []string{"10.0.0.0/8", "192.168.1.10"}, Load().TrustedProxies)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores the previous one when the test ends.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}
