package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-agent/backend/pkg/models"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "environment: DEV\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsDev())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 10, cfg.Workflow.LookupLimit)
	assert.Equal(t, 4, cfg.Workflow.BulkWorkers)
	assert.Equal(t, "changeit@123", cfg.Provisioning.TemporaryPassword)
	assert.Equal(t, "simulated", cfg.Directory.Mode)
	assert.True(t, cfg.Directory.SimulateOnFailure)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.Auth.Scopes)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
db:
  driver: sqlite
  path: /tmp/agent.db
provisioning:
  domain: corp.test
auth:
  issuer: https://login.example.com/tenant/v2.0/
`)
	t.Setenv("MAILAGENT_SMTP_HOST", "mail.corp.test")
	t.Setenv("MAILAGENT_WORKFLOW_BULK_WORKERS", "6")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "/tmp/agent.db", cfg.DB.Path)
	assert.Equal(t, "corp.test", cfg.Provisioning.Domain)
	assert.Equal(t, "mail.corp.test", cfg.SMTP.Host)
	assert.Equal(t, 6, cfg.Workflow.BulkWorkers)
	assert.Equal(t, "https://login.example.com/tenant/v2.0", cfg.Auth.Issuer)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := writeConfig(t, "db: [unterminated\n")
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad driver", func(c *Config) { c.DB.Driver = "mongo" }, "db.driver"},
		{"too many workers", func(c *Config) { c.Workflow.BulkWorkers = 9 }, "workflow.bulk_workers"},
		{"zero workers", func(c *Config) { c.Workflow.BulkWorkers = 0 }, "workflow.bulk_workers"},
		{"bad smtp mode", func(c *Config) { c.SMTP.Mode = "pigeon" }, "smtp.mode"},
		{"bad directory mode", func(c *Config) { c.Directory.Mode = "ldap" }, "directory.mode"},
		{"no timeout", func(c *Config) { c.LLM.Timeout = 0 }, "llm.timeout"},
		{"no domain", func(c *Config) { c.Provisioning.Domain = " " }, "provisioning.domain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, "{}\n"))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()

			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrValidation))
			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
