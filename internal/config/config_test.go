package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validConfig = `
[db]
host = 10.0.0.5
user = portalbox
password = secret
database = MakerspaceDB
use_persistent_connection = yes

[email]
smtp_server = smtp.example.org
smtp_port = 587
auth_user = notifier@example.org
auth_password = secret
from_address = notifier@example.org
to_address = admin@example.org

[watchdog]
enabled = true
`

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, validConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", cfg.Database.Host)
	assert.True(t, cfg.Database.UsePersistentConnection)
	assert.Equal(t, "smtp.example.org", cfg.Email.SMTPServer)
	assert.True(t, cfg.Watchdog.Enabled)
	assert.Equal(t, "error", cfg.Logging.Level, "default logging level")
	assert.Equal(t, "text", cfg.Logging.Format, "default logging format")
	assert.Equal(t, "auto", cfg.Display.Driver)
	assert.Equal(t, 15, cfg.Display.LEDCount)
	assert.Equal(t, "0000FF", cfg.Display.SleepColor)
}

func TestLoadMissingRequiredKeyFailsFast(t *testing.T) {
	body := `
[db]
host = 10.0.0.5
user = portalbox
password = secret
`
	path := writeConfig(t, body)
	_, err := Load(path)
	require.Error(t, err)

	var missing *ErrMissingKey
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "db", missing.Section)
	assert.Equal(t, "database", missing.Key)
}

func TestLoadNonexistentFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	assert.Error(t, err)
}
