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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requiredEnv = map[string]string{
	"HUAWEI_CLOUD_AK":         "ak",
	"HUAWEI_CLOUD_SK":         "sk",
	"HUAWEI_CLOUD_PROJECT_ID": "project-1",
	"RDS_INSTANCE_ID":         "inst-1",
	"RDS_REGION":              "ap-southeast-1",
	"OBS_BUCKET_NAME":         "audit-bucket",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range bindings {
		t.Setenv(b.env, "")
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range requiredEnv {
		t.Setenv(k, v)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ak", cfg.Cloud.AccessKey)
	assert.Equal(t, "sk", cfg.Cloud.SecretKey)
	assert.Equal(t, "project-1", cfg.Cloud.ProjectID)
	assert.Equal(t, DefaultCloudDomain, cfg.Cloud.Domain)
	assert.Equal(t, "inst-1", cfg.RDS.InstanceID)
	assert.Equal(t, "ap-southeast-1", cfg.RDS.Region)
	assert.Equal(t, "audit-bucket", cfg.OBS.Bucket)
	assert.Equal(t, "obs", cfg.Storage.Backend)
	assert.Equal(t, 24*time.Hour, cfg.AuditLog.Lookback)
	assert.Equal(t, 50, cfg.AuditLog.PageLimit)
	assert.Equal(t, 1, cfg.AuditLog.Concurrency)
	assert.False(t, cfg.AuditLog.ContinueOnEntryError)
	assert.Zero(t, cfg.Fetch.Timeout)
	assert.Equal(t, 1, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Retry.InitialInterval)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxInterval)
	assert.Equal(t, 8000, cfg.Health.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("HUAWEI_CLOUD_DOMAIN", "myhuaweicloud.eu")
	t.Setenv("OBS_USE_PATH_STYLE", "true")
	t.Setenv("AUDITLOG_LOOKBACK", "6h")
	t.Setenv("AUDITLOG_PAGE_LIMIT", "20")
	t.Setenv("AUDITLOG_CONCURRENCY", "4")
	t.Setenv("AUDITLOG_CONTINUE_ON_ENTRY_ERROR", "true")
	t.Setenv("FETCH_TIMEOUT", "90s")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("RETRY_INITIAL_INTERVAL", "250ms")
	t.Setenv("HEALTH_CHECK_PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "myhuaweicloud.eu", cfg.Cloud.Domain)
	assert.True(t, cfg.OBS.UsePathStyle)
	assert.Equal(t, 6*time.Hour, cfg.AuditLog.Lookback)
	assert.Equal(t, 20, cfg.AuditLog.PageLimit)
	assert.Equal(t, 4, cfg.AuditLog.Concurrency)
	assert.True(t, cfg.AuditLog.ContinueOnEntryError)
	assert.Equal(t, 90*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, 9090, cfg.Health.Port)
}

func TestValidateListsEveryMissingVariable(t *testing.T) {
	clearEnv(t)
	t.Setenv("RDS_REGION", "ap-southeast-1")

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)

	var missing *MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{
		"HUAWEI_CLOUD_AK",
		"HUAWEI_CLOUD_SK",
		"HUAWEI_CLOUD_PROJECT_ID",
		"RDS_INSTANCE_ID",
		"OBS_BUCKET_NAME",
	}, missing.Variables)
	assert.Contains(t, err.Error(), "OBS_BUCKET_NAME")
	assert.NotContains(t, missing.Error(), "RDS_REGION")
}

func TestValidateStorageBackend(t *testing.T) {
	clearEnv(t)
	setRequired(t)

	t.Setenv("STORAGE_BACKEND", "file")
	cfg, err := Load()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_FILE_ROOT")

	t.Setenv("STORAGE_FILE_ROOT", t.TempDir())
	cfg, err = Load()
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())

	t.Setenv("STORAGE_BACKEND", "azure")
	cfg, err = Load()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "azure")

	var missing *MissingError
	assert.False(t, errors.As(err, &missing))
}

func TestValidateRejectsNegativeValues(t *testing.T) {
	clearEnv(t)
	setRequired(t)
	t.Setenv("AUDITLOG_CONCURRENCY", "-2")
	t.Setenv("FETCH_TIMEOUT", "-1s")

	cfg, err := Load()
	require.NoError(t, err)
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUDITLOG_CONCURRENCY")
	assert.Contains(t, err.Error(), "FETCH_TIMEOUT")
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yaml := `
cloud:
  access_key: file-ak
  secret_key: file-sk
  project_id: file-project
rds:
  instance_id: file-inst
  region: cn-north-4
obs:
  bucket: file-bucket
auditlog:
  concurrency: 2
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Chdir(dir)
	t.Setenv("OBS_BUCKET_NAME", "env-bucket")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "file-ak", cfg.Cloud.AccessKey)
	assert.Equal(t, "cn-north-4", cfg.RDS.Region)
	assert.Equal(t, "env-bucket", cfg.OBS.Bucket)
	assert.Equal(t, 2, cfg.AuditLog.Concurrency)
}

func TestOBSEndpoint(t *testing.T) {
	cfg := &Config{RDS: RDSConfig{Region: "ap-southeast-1"}}
	assert.Equal(t, "https://obs.ap-southeast-1.myhuaweicloud.com", cfg.OBSEndpoint())

	cfg.Cloud.Domain = "myhuaweicloud.eu"
	assert.Equal(t, "https://obs.ap-southeast-1.myhuaweicloud.eu", cfg.OBSEndpoint())

	cfg.OBS.Endpoint = "http://localhost:9000"
	assert.Equal(t, "http://localhost:9000", cfg.OBSEndpoint())
}
