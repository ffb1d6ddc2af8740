package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("SACEL_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "SACEL API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, 20*time.Second, cfg.OracleTimeout)
	require.Equal(t, 168*time.Hour, cfg.CacheTTLs.PeerReview)
	require.Equal(t, 30*time.Minute, cfg.CacheTTLs.Class)
	require.Equal(t, 5*time.Minute, cfg.CacheTTLs.Assignment)
	require.Equal(t, 30.0, cfg.ReportPercent)
	require.Equal(t, 80.0, cfg.FlagPercent)
	require.Equal(t, 0.2, cfg.PeerWeight)
	require.Equal(t, "sacel:events", cfg.EventChannel)
	require.Equal(t, 20, cfg.DBPool.MaxOpenConns)
	require.Equal(t, 30*time.Minute, cfg.DBPool.ConnMaxLifetime)
	require.False(t, cfg.OracleEnabled())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("SACEL_JWT_SECRET", "secret")
	t.Setenv("SACEL_APP_PORT", ":9090")
	t.Setenv("SACEL_CACHE_STUDENT_TTL", "15m")
	t.Setenv("SACEL_OPENAI_API_KEY", "sk-test")
	t.Setenv("SACEL_GRADING_PEER_WEIGHT", "0.3")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, 15*time.Minute, cfg.CacheTTLs.Student)
	require.Equal(t, 0.3, cfg.PeerWeight)
	require.True(t, cfg.OracleEnabled())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("SACEL_JWT_SECRET", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("SACEL_JWT_SECRET", "secret")
		t.Setenv("SACEL_ORACLE_TIMEOUT", "soon")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("inverted thresholds", func(t *testing.T) {
		t.Setenv("SACEL_JWT_SECRET", "secret")
		t.Setenv("SACEL_PLAGIARISM_REPORT_THRESHOLD", "90")
		t.Setenv("SACEL_PLAGIARISM_FLAG_THRESHOLD", "50")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("peer weight out of range", func(t *testing.T) {
		t.Setenv("SACEL_JWT_SECRET", "secret")
		t.Setenv("SACEL_GRADING_PEER_WEIGHT", "1.5")
		_, err := Load()
		require.Error(t, err)
	})
}
