package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Capitan-Parrot/distributed-video-system/sentry/internal/models"
)

const baseYAML = `
node:
  name: test-node
monitoring:
  start: "18:00"
  end: "08:00"
alert:
  cooldown_seconds: 300
detection:
  threshold: 0.5
  min_area: 3000
  endpoint: http://classifier:8000
capture:
  source: http
  snapshot_url: http://camera/snapshot.jpg
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func requireConfigError(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var cerr *models.ConfigError
	require.True(t, errors.As(err, &cerr), "expected ConfigError, got %T: %v", err, err)
	assert.Equal(t, field, cerr.Field)
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "test-node", cfg.Node.Name)
	assert.Equal(t, 300*time.Second, cfg.Cooldown())
	assert.Equal(t, 0.5, cfg.Detection.Threshold)
	assert.Equal(t, 3000, cfg.Detection.MinArea)

	start, end, err := cfg.Window()
	require.NoError(t, err)
	assert.Equal(t, models.Clock(18, 0, 0), start)
	assert.Equal(t, models.Clock(8, 0, 0), end)

	// operational defaults survive
	assert.Equal(t, "jpg", cfg.Evidence.Ext)
	assert.Equal(t, 8, cfg.Alert.QueueSize)
}

func TestLoadConfig_ShippedLocalFile(t *testing.T) {
	cfg, err := LoadConfig("local.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"person"}, cfg.Detection.Labels)
	assert.Equal(t, 30*time.Minute, cfg.Capture.MaxOutage)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("ALERT_COOLDOWN_SECONDS", "60")
	t.Setenv("DETECTION_LABELS", "person,cat")

	cfg, err := LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)
	assert.Equal(t, time.Minute, cfg.Cooldown())
	assert.Equal(t, []string{"person", "cat"}, cfg.Detection.Labels)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	var cerr *models.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "cannot read", cerr.Reason)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		to    string
		field string
	}{
		{"missing cooldown", "  cooldown_seconds: 300\n", "", "alert.cooldown_seconds"},
		{"negative cooldown", "cooldown_seconds: 300", "cooldown_seconds: -1", "alert.cooldown_seconds"},
		{"zero threshold", "threshold: 0.5", "threshold: 0", "detection.threshold"},
		{"threshold above one", "threshold: 0.5", "threshold: 1.5", "detection.threshold"},
		{"zero area", "min_area: 3000", "min_area: 0", "detection.min_area"},
		{"malformed start", `start: "18:00"`, `start: "25:00"`, "monitoring.start"},
		{"malformed end", `end: "08:00"`, `end: "8 am"`, "monitoring.end"},
		{"empty window", `end: "08:00"`, `end: "18:00"`, "monitoring"},
		{"unknown source", "source: http", "source: rtsp", "capture.source"},
		{"missing snapshot url", "  snapshot_url: http://camera/snapshot.jpg\n", "", "capture.snapshot_url"},
		{"missing classifier", "  endpoint: http://classifier:8000\n", "", "detection.endpoint"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Replace(baseYAML, tt.from, tt.to, 1)
			require.NotEqual(t, baseYAML, body)

			_, err := LoadConfig(writeConfig(t, body))
			requireConfigError(t, err, tt.field)
		})
	}
}

func TestLoadConfig_EnabledChannelNeedsCredentials(t *testing.T) {
	body := baseYAML + `
email:
  enabled: true
  smtp_port: 587
  sender_email: cam@example.com
  recipient_email: me@example.com
`
	_, err := LoadConfig(writeConfig(t, body))
	requireConfigError(t, err, "email.smtp_server")

	body = baseYAML + `
telegram:
  enabled: true
  bot_token: token
`
	_, err = LoadConfig(writeConfig(t, body))
	requireConfigError(t, err, "telegram.chat_id")
}

func TestLoadConfig_DisabledChannelSkipsCredentials(t *testing.T) {
	body := baseYAML + `
pushbullet:
  enabled: false
`
	_, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)
}

func TestLoadConfig_KafkaSourceNeedsBrokers(t *testing.T) {
	body := strings.Replace(baseYAML, "source: http", "source: kafka", 1)
	_, err := LoadConfig(writeConfig(t, body))
	requireConfigError(t, err, "kafka.brokers")
}

func TestLocation(t *testing.T) {
	cfg := Default()
	cfg.Monitoring.Timezone = "Europe/Helsinki"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Helsinki", loc.String())

	cfg.Monitoring.Timezone = "Mars/Olympus"
	_, err = cfg.Location()
	var cerr *models.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "monitoring.timezone", cerr.Field)
}

func TestLoadConfig_CooldownValues(t *testing.T) {
	body := strings.Replace(baseYAML, "cooldown_seconds: 300", "cooldown_seconds: 0", 1)
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Cooldown())

	t.Setenv("ALERT_COOLDOWN_SECONDS", "45")
	cfg, err = LoadConfig(writeConfig(t, baseYAML))
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Cooldown())
}

func TestLoadConfig_CooldownOnlyFromEnv(t *testing.T) {
	t.Setenv("ALERT_COOLDOWN_SECONDS", "120")
	body := strings.Replace(baseYAML, "  cooldown_seconds: 300\n", "", 1)
	cfg, err := LoadConfig(writeConfig(t, body))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.Cooldown())
}
