package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/travigo/tsiconverter/pkg/edifact"
	"github.com/travigo/tsiconverter/pkg/util"
	"github.com/travigo/tsiconverter/pkg/validation"
	"gopkg.in/yaml.v3"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server ServerConfig `yaml:"server"`

	Workers   int `yaml:"workers" validate:"gt=0"`
	QueueSize int `yaml:"queue_size" validate:"gt=0"`

	JobTimeout         Duration `yaml:"job_timeout" validate:"gt=0"`
	ArtifactTTL        Duration `yaml:"artifact_ttl" validate:"gt=0"`
	RecordRetention    Duration `yaml:"record_retention" validate:"gt=0"`
	SupervisorInterval Duration `yaml:"supervisor_interval" validate:"gt=0"`

	Queue     BackendConfig `yaml:"queue"`
	Artifacts BackendConfig `yaml:"artifacts"`

	Redis RedisConfig `yaml:"redis"`

	Edifact EdifactConfig `yaml:"edifact"`

	Validation ValidationConfig `yaml:"validation"`
}

type ServerConfig struct {
	Listen string `yaml:"listen" validate:"required"`
}

type BackendConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory redis"`
}

type RedisConfig struct {
	Address  string `yaml:"address" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`

	Enabled bool `yaml:"-"`
}

type EdifactConfig struct {
	Sender   string `yaml:"sender" validate:"max=35"`
	Receiver string `yaml:"receiver" validate:"required,max=35"`
	UNA      string `yaml:"una" validate:"len=9,startswith=UNA"`
	Version  string `yaml:"version" validate:"required"`
}

type ValidationConfig struct {
	CustomRules []validation.CustomRuleDefinition `yaml:"custom_rules" validate:"dive"`
}

func Default() *Config {
	return &Config{
		Server:             ServerConfig{Listen: ":8080"},
		Workers:            4,
		QueueSize:          1024,
		JobTimeout:         Duration(5 * time.Minute),
		ArtifactTTL:        Duration(time.Hour),
		RecordRetention:    Duration(2 * time.Hour),
		SupervisorInterval: Duration(time.Second),
		Queue:              BackendConfig{Backend: BackendMemory},
		Artifacts:          BackendConfig{Backend: BackendMemory},
		Redis:              RedisConfig{Address: "localhost:6379"},
		Edifact: EdifactConfig{
			Receiver: edifact.DefaultReceiver,
			UNA:      edifact.DefaultUNA,
			Version:  edifact.DefaultVersion,
		},
	}
}

// Load reads the YAML file at path over the defaults, applies TSICONV_*
// environment overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := config.ApplyEnvironment(util.GetEnvironmentVariables()); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) UsesRedis() bool {
	return c.Queue.Backend == BackendRedis || c.Artifacts.Backend == BackendRedis
}

func (c *Config) Validate() error {
	c.Redis.Enabled = c.UsesRedis()

	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	if _, err := edifact.ParseUNA(c.Edifact.UNA); err != nil {
		return fmt.Errorf("edifact.una: %w", err)
	}

	return nil
}

// ApplyEnvironment overrides values from TSICONV_* variables
func (c *Config) ApplyEnvironment(env map[string]string) error {
	texts := map[string]*string{
		"TSICONV_LISTEN":            &c.Server.Listen,
		"TSICONV_QUEUE_BACKEND":     &c.Queue.Backend,
		"TSICONV_ARTIFACTS_BACKEND": &c.Artifacts.Backend,
		"TSICONV_REDIS_ADDRESS":     &c.Redis.Address,
		"TSICONV_REDIS_PASSWORD":    &c.Redis.Password,
		"TSICONV_EDIFACT_SENDER":    &c.Edifact.Sender,
		"TSICONV_EDIFACT_RECEIVER":  &c.Edifact.Receiver,
		"TSICONV_EDIFACT_UNA":       &c.Edifact.UNA,
		"TSICONV_EDIFACT_VERSION":   &c.Edifact.Version,
	}
	for key, target := range texts {
		if value := env[key]; value != "" {
			*target = value
		}
	}

	integers := map[string]*int{
		"TSICONV_WORKERS":        &c.Workers,
		"TSICONV_QUEUE_SIZE":     &c.QueueSize,
		"TSICONV_REDIS_DATABASE": &c.Redis.Database,
	}
	for key, target := range integers {
		if value := env[key]; value != "" {
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*target = n
		}
	}

	durations := map[string]*Duration{
		"TSICONV_JOB_TIMEOUT":         &c.JobTimeout,
		"TSICONV_ARTIFACT_TTL":        &c.ArtifactTTL,
		"TSICONV_RECORD_RETENTION":    &c.RecordRetention,
		"TSICONV_SUPERVISOR_INTERVAL": &c.SupervisorInterval,
	}
	for key, target := range durations {
		if value := env[key]; value != "" {
			d, err := ParseDuration(value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*target = d
		}
	}

	return nil
}
