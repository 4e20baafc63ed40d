package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/tsiconverter/pkg/validation"
)

func TestDefaults(t *testing.T) {
	config := Default()
	require.NoError(t, config.Validate())

	assert.Equal(t, ":8080", config.Server.Listen)
	assert.Equal(t, 4, config.Workers)
	assert.Equal(t, 1024, config.QueueSize)
	assert.Equal(t, 5*time.Minute, config.JobTimeout.Duration())
	assert.Equal(t, time.Hour, config.ArtifactTTL.Duration())
	assert.Equal(t, BackendMemory, config.Queue.Backend)
	assert.Equal(t, "UNA:+.? '", config.Edifact.UNA)
	assert.False(t, config.UsesRedis())
}

func TestParseDuration(t *testing.T) {
	for input, expected := range map[string]time.Duration{
		"90s":    90 * time.Second,
		"1h30m":  90 * time.Minute,
		"PT5M":   5 * time.Minute,
		"pt1h":   time.Hour,
		"P1DT2H": 26 * time.Hour,
	} {
		d, err := ParseDuration(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, d.Duration(), input)
	}

	_, err := ParseDuration("soon")
	assert.Error(t, err)
	_, err = ParseDuration("PXM")
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  listen: ":9000"
workers: 8
job_timeout: PT2M
artifact_ttl: 30m
queue:
  backend: redis
redis:
  address: "redis:6379"
  database: 2
edifact:
  sender: ZSSK
validation:
  custom_rules:
    - code: LongDwell
      format: edifact
      severity: warning
      entity: call
      when: dwell > 600
`), 0o644))

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", config.Server.Listen)
	assert.Equal(t, 8, config.Workers)
	assert.Equal(t, 1024, config.QueueSize)
	assert.Equal(t, 2*time.Minute, config.JobTimeout.Duration())
	assert.Equal(t, 30*time.Minute, config.ArtifactTTL.Duration())
	assert.Equal(t, 2*time.Hour, config.RecordRetention.Duration())
	assert.True(t, config.UsesRedis())
	assert.Equal(t, 2, config.Redis.Database)
	assert.Equal(t, "ZSSK", config.Edifact.Sender)
	assert.Equal(t, "RECEIVER", config.Edifact.Receiver)
	require.Len(t, config.Validation.CustomRules, 1)
	assert.Equal(t, "LongDwell", config.Validation.CustomRules[0].Code)
}

func TestValidateRejectsBadValues(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"workers":    func(c *Config) { c.Workers = 0 },
		"backend":    func(c *Config) { c.Queue.Backend = "kafka" },
		"una":        func(c *Config) { c.Edifact.UNA = "UNA::.? '" },
		"una length": func(c *Config) { c.Edifact.UNA = "UNA" },
		"timeout":    func(c *Config) { c.JobTimeout = 0 },
		"redis": func(c *Config) {
			c.Artifacts.Backend = BackendRedis
			c.Redis.Address = ""
		},
		"custom rule": func(c *Config) {
			c.Validation.CustomRules = []validation.CustomRuleDefinition{
				{Code: "Broken", Format: "csv", Severity: "error", Entity: "call", When: "true"},
			}
		},
	} {
		config := Default()
		mutate(config)

		assert.Error(t, config.Validate(), name)
	}
}

func TestApplyEnvironment(t *testing.T) {
	config := Default()

	require.NoError(t, config.ApplyEnvironment(map[string]string{
		"TSICONV_LISTEN":        ":7000",
		"TSICONV_WORKERS":       "16",
		"TSICONV_ARTIFACT_TTL":  "PT10M",
		"TSICONV_QUEUE_BACKEND": "redis",
		"UNRELATED":             "value",
	}))

	assert.Equal(t, ":7000", config.Server.Listen)
	assert.Equal(t, 16, config.Workers)
	assert.Equal(t, 10*time.Minute, config.ArtifactTTL.Duration())
	assert.Equal(t, BackendRedis, config.Queue.Backend)

	assert.Error(t, config.ApplyEnvironment(map[string]string{"TSICONV_WORKERS": "many"}))
	assert.Error(t, config.ApplyEnvironment(map[string]string{"TSICONV_JOB_TIMEOUT": "forever"}))
}
