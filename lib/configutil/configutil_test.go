package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type portalConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	SiteId   string `json:"site_id"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	err := os.WriteFile(path, []byte(`{
		// json5 comments should be tolerated
		username: 'installer@example.com',
		password: 'hunter2',
		site_id: '1234567',
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[portalConfig](path)
	require.NoError(t, err)
	require.Equal(t, "installer@example.com", cfg.Username)
	require.Equal(t, "hunter2", cfg.Password)
	require.Equal(t, "1234567", cfg.SiteId)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(
		filepath.Join(dir, "config.json5"),
		[]byte(`{username: "a", site_id: "1"}`),
		0600,
	)
	require.NoError(t, err)
	err = os.WriteFile(
		filepath.Join(dir, "config.local.json5"),
		[]byte(`{site_id: "2"}`),
		0600,
	)
	require.NoError(t, err)

	cfg, err := ReadConfig[portalConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "a", cfg.Username)
	require.Equal(t, "2", cfg.SiteId)
}

func TestReadConfigNotFound(t *testing.T) {
	_, err := ReadConfig[portalConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
