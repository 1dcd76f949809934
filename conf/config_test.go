package conf

import (
	"encoding/json"
	"testing"

	"github.com/dosco/mongopipe/core"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const devConfig = `
connection_string: mongodb://db:27017
database: shop
log_level: debug
entity_cache_size: 500
read_preference: secondaryPreferred
batch_size: 100
collections:
  SaleRecord: sales
`

func TestReadInConfigFS(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(devConfig), 0o644))

	c, err := ReadInConfigFS("/config/dev.yml", fs)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://db:27017", c.ConnString)
	assert.Equal(t, "shop", c.Database)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "plain", c.LogFormat)
	assert.Equal(t, 500, c.EntityCacheSize)
	assert.Equal(t, core.ReadSecondaryPreferred, c.ReadPreference)
	assert.Equal(t, int32(100), c.BatchSize)
	assert.Equal(t, uint(3), c.ConnectRetries)
	assert.Equal(t, "sales", c.Collections["salerecord"])
}

func TestReadInConfigEnv(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(devConfig), 0o644))

	t.Setenv("MP_DATABASE", "shop_test")
	t.Setenv("MP_ALLOW_DISK_USE", "true")

	c, err := ReadInConfigFS("/config/dev.yml", fs)
	require.NoError(t, err)
	assert.Equal(t, "shop_test", c.Database)
	assert.True(t, c.AllowDiskUse)
}

func TestReadInConfigDefaultName(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/prod.yml", []byte("database: live\n"), 0o644))

	t.Setenv("GO_ENV", "production")
	c, err := ReadInConfigFS("/config/"+GetConfigName(), fs)
	require.NoError(t, err)
	assert.Equal(t, "live", c.Database)
	assert.Equal(t, "mongodb://localhost:27017", c.ConnString)
}

func TestReadInConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := ReadInConfigFS("/config/missing.yml", fs)
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/config/bad.yml", []byte("log_level: loud\ndatabase: x\n"), 0o644))
	_, err = ReadInConfigFS("/config/bad.yml", fs)
	assert.ErrorContains(t, err, "invalid config")

	require.NoError(t, afero.WriteFile(fs, "/config/nodb.yml", []byte("log_level: info\n"), 0o644))
	_, err = ReadInConfigFS("/config/nodb.yml", fs)
	assert.Error(t, err)
}

func TestNewConfig(t *testing.T) {
	c, err := NewConfig(`{"database": "shop", "date_time_as_string": true}`, "json")
	require.NoError(t, err)
	assert.Equal(t, "shop", c.Database)
	assert.True(t, c.DateTimeAsString)
	assert.Equal(t, core.ReadPrimary, c.ReadPreference)

	_, err = NewConfig("database: [", "")
	assert.Error(t, err)
}

func TestGetConfigName(t *testing.T) {
	tests := map[string]string{
		"":            "dev",
		"development": "dev",
		"PROD":        "prod",
		"staging":     "stage",
		"test":        "test",
		"qa":          "qa",
	}
	for env, want := range tests {
		t.Setenv("GO_ENV", env)
		assert.Equal(t, want, GetConfigName(), env)
	}
}

func TestConfigSchema(t *testing.T) {
	b, err := ConfigSchema()
	require.NoError(t, err)

	var s map[string]any
	require.NoError(t, json.Unmarshal(b, &s))
	assert.Equal(t, "mongopipe config", s["title"])
	assert.Contains(t, string(b), "read_preference")
	assert.Contains(t, string(b), "secondaryPreferred")
}
