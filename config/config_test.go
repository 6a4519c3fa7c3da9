package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:80", cfg.Addr)
	assert.Equal(t, "http://localhost:80", cfg.Url())
	assert.Equal(t, "sqlite://quickforms.sqlite", cfg.DBUrl)
	assert.Equal(t, 120*time.Second, cfg.TokenTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Error(t, cfg.RequireTokenSecret())
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "qf.yaml", `
port: 8080
db_url: sqlite://from-file.sqlite
log:
  format: json
submit:
  burst: 2
`)
	t.Setenv("QF_DB_URL", "postgres://env/qf")
	t.Setenv("QF_TOKEN_SECRET", "s3cret")

	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.Int("port", 80, "")
	flags.Bool("debug", false, "")
	require.NoError(t, flags.Parse([]string{"--port", "9090", "--debug"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
	assert.Equal(t, "postgres://env/qf", cfg.DBUrl)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.SubmitBurst)
	assert.NoError(t, cfg.RequireTokenSecret())
}

func TestLoad_RejectsSecretInFile(t *testing.T) {
	path := writeFile(t, "qf.yaml", "token_secret: oops\n")
	_, err := Load(path, nil)
	assert.ErrorContains(t, err, "QF_TOKEN_SECRET")
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("QF_PORT", "70000")
	_, err := Load("", nil)
	assert.Error(t, err)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("QF_LOG_LEVEL", "loud")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "log.level")
}

func TestLoad_TrustProxy(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.False(t, cfg.TrustProxy)

	t.Setenv("QF_TRUST_PROXY", "true")
	cfg, err = Load("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.TrustProxy)
}
