// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.


package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	DefaultCloudDomain       = "myhuaweicloud.com"
	DefaultHealthCheckPort   = 8000
	DefaultPageLimit         = 50
	DefaultRetryInitInterval = time.Second
	DefaultRetryMaxInterval  = 30 * time.Second
)

// Config aggregates configuration for the application.
type Config struct {
	Cloud    CloudConfig    `mapstructure:"cloud"`
	RDS      RDSConfig      `mapstructure:"rds"`
	OBS      OBSConfig      `mapstructure:"obs"`
	Storage  StorageConfig  `mapstructure:"storage"`
	AuditLog AuditLogConfig `mapstructure:"auditlog"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Health   HealthConfig   `mapstructure:"health"`
}

type CloudConfig struct {
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	ProjectID string `mapstructure:"project_id"`
	Domain    string `mapstructure:"domain"`
}

type RDSConfig struct {
	InstanceID string `mapstructure:"instance_id"`
	Region     string `mapstructure:"region"`
}

type OBSConfig struct {
	Bucket       string `mapstructure:"bucket"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	InsecureTLS  bool   `mapstructure:"insecure_tls"`
}

type StorageConfig struct {
	// Backend is "obs" or "file".
	Backend  string `mapstructure:"backend"`
	FileRoot string `mapstructure:"file_root"`
}

type AuditLogConfig struct {
	Lookback             time.Duration `mapstructure:"lookback"`
	PageLimit            int           `mapstructure:"page_limit"`
	Concurrency          int           `mapstructure:"concurrency"`
	ContinueOnEntryError bool          `mapstructure:"continue_on_entry_error"`
}

type FetchConfig struct {
	// Timeout bounds a single download. Zero means no timeout.
	Timeout time.Duration `mapstructure:"timeout"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// binding maps a config key to its environment variable.
type binding struct {
	key      string
	env      string
	required bool
}

var bindings = []binding{
	{key: "cloud.access_key", env: "HUAWEI_CLOUD_AK", required: true},
	{key: "cloud.secret_key", env: "HUAWEI_CLOUD_SK", required: true},
	{key: "cloud.project_id", env: "HUAWEI_CLOUD_PROJECT_ID", required: true},
	{key: "cloud.domain", env: "HUAWEI_CLOUD_DOMAIN"},
	{key: "rds.instance_id", env: "RDS_INSTANCE_ID", required: true},
	{key: "rds.region", env: "RDS_REGION", required: true},
	{key: "obs.bucket", env: "OBS_BUCKET_NAME", required: true},
	{key: "obs.endpoint", env: "OBS_ENDPOINT"},
	{key: "obs.use_path_style", env: "OBS_USE_PATH_STYLE"},
	{key: "obs.insecure_tls", env: "OBS_INSECURE_TLS"},
	{key: "storage.backend", env: "STORAGE_BACKEND"},
	{key: "storage.file_root", env: "STORAGE_FILE_ROOT"},
	{key: "auditlog.lookback", env: "AUDITLOG_LOOKBACK"},
	{key: "auditlog.page_limit", env: "AUDITLOG_PAGE_LIMIT"},
	{key: "auditlog.concurrency", env: "AUDITLOG_CONCURRENCY"},
	{key: "auditlog.continue_on_entry_error", env: "AUDITLOG_CONTINUE_ON_ENTRY_ERROR"},
	{key: "fetch.timeout", env: "FETCH_TIMEOUT"},
	{key: "retry.max_attempts", env: "RETRY_MAX_ATTEMPTS"},
	{key: "retry.initial_interval", env: "RETRY_INITIAL_INTERVAL"},
	{key: "retry.max_interval", env: "RETRY_MAX_INTERVAL"},
	{key: "health.port", env: "HEALTH_CHECK_PORT"},
}

// MissingError lists required environment variables that were not set.
type MissingError struct {
	Variables []string
}

func (e *MissingError) Error() string {
	return "missing required environment variables: " + strings.Join(e.Variables, ", ")
}

// Load reads configuration from an optional config.yaml in the working
// directory and from environment variables. Environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("cloud.domain", DefaultCloudDomain)
	v.SetDefault("storage.backend", "obs")
	v.SetDefault("auditlog.lookback", 24*time.Hour)
	v.SetDefault("auditlog.page_limit", DefaultPageLimit)
	v.SetDefault("auditlog.concurrency", 1)
	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_interval", DefaultRetryInitInterval)
	v.SetDefault("retry.max_interval", DefaultRetryMaxInterval)
	v.SetDefault("health.port", DefaultHealthCheckPort)

	for _, b := range bindings {
		_ = v.BindEnv(b.key, b.env)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate reports every problem at once. Missing required variables are
// returned as a *MissingError inside the aggregate.
func (c *Config) Validate() error {
	var merr *multierror.Error

	values := map[string]string{
		"cloud.access_key": c.Cloud.AccessKey,
		"cloud.secret_key": c.Cloud.SecretKey,
		"cloud.project_id": c.Cloud.ProjectID,
		"rds.instance_id":  c.RDS.InstanceID,
		"rds.region":       c.RDS.Region,
		"obs.bucket":       c.OBS.Bucket,
	}
	var missing []string
	for _, b := range bindings {
		if b.required && strings.TrimSpace(values[b.key]) == "" {
			missing = append(missing, b.env)
		}
	}
	if len(missing) > 0 {
		merr = multierror.Append(merr, &MissingError{Variables: missing})
	}

	switch c.Storage.Backend {
	case "obs", "":
	case "file":
		if c.Storage.FileRoot == "" {
			merr = multierror.Append(merr, errors.New("STORAGE_FILE_ROOT is required when STORAGE_BACKEND=file"))
		}
	default:
		merr = multierror.Append(merr, fmt.Errorf("STORAGE_BACKEND must be obs or file, got %q", c.Storage.Backend))
	}

	if c.AuditLog.Lookback < 0 {
		merr = multierror.Append(merr, fmt.Errorf("AUDITLOG_LOOKBACK must not be negative, got %s", c.AuditLog.Lookback))
	}
	if c.AuditLog.PageLimit < 0 {
		merr = multierror.Append(merr, fmt.Errorf("AUDITLOG_PAGE_LIMIT must not be negative, got %d", c.AuditLog.PageLimit))
	}
	if c.AuditLog.Concurrency < 0 {
		merr = multierror.Append(merr, fmt.Errorf("AUDITLOG_CONCURRENCY must not be negative, got %d", c.AuditLog.Concurrency))
	}
	if c.Fetch.Timeout < 0 {
		merr = multierror.Append(merr, fmt.Errorf("FETCH_TIMEOUT must not be negative, got %s", c.Fetch.Timeout))
	}
	if c.Health.Port <= 0 || c.Health.Port > 65535 {
		merr = multierror.Append(merr, fmt.Errorf("HEALTH_CHECK_PORT out of range: %d", c.Health.Port))
	}

	return merr.ErrorOrNil()
}

// OBSEndpoint returns the configured endpoint, or the regional endpoint
// derived from the RDS region and cloud domain.
func (c *Config) OBSEndpoint() string {
	if c.OBS.Endpoint != "" {
		return c.OBS.Endpoint
	}
	domain := c.Cloud.Domain
	if domain == "" {
		domain = DefaultCloudDomain
	}
	return fmt.Sprintf("https://obs.%s.%s", c.RDS.Region, domain)
}
