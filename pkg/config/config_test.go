package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	content := `catalogs:
  - catalog.xml
checksum_manifest: checksums.md5
force_schema_validation: true
file_filters:
  - "*.xml"
  - "*.lblx"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog.xml"}, cfg.Catalogs)
	assert.Equal(t, "checksums.md5", cfg.ChecksumManifest)
	assert.True(t, cfg.ForceSchemaValidation)
	assert.False(t, cfg.SkipProductValidation)
	assert.Equal(t, []string{"*.xml", "*.lblx"}, cfg.FileFilters)
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte("catalogs: [unclosed"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}
