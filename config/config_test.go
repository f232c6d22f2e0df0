package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMap_Defaults(t *testing.T) {
	cfg, err := FromMap(nil)

	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "deploy.db", cfg.DBPath)
	assert.Equal(t, 42, cfg.HorizonDays)
	assert.True(t, cfg.RollEnabled)
	assert.Equal(t, time.Hour, cfg.RollInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestFromMap_Overrides(t *testing.T) {
	cfg, err := FromMap(map[string]string{
		"PORT":          "9090",
		"STORE":         "Memory",
		"HORIZON_DAYS":  "30",
		"ROLL_INTERVAL": "15m",
		"CORS_ORIGINS":  "http://a.example,http://b.example",
		"TIMEZONE":      "UTC",
	})

	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 30, cfg.HorizonDays)
	assert.Equal(t, 15*time.Minute, cfg.RollInterval)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"zero horizon", map[string]string{"HORIZON_DAYS": "0"}},
		{"negative horizon", map[string]string{"HORIZON_DAYS": "-1"}},
		{"unknown store", map[string]string{"STORE": "postgres"}},
		{"mongo without uri", map[string]string{"STORE": "mongo"}},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{"bad port", map[string]string{"PORT": "70000"}},
		{"not a number", map[string]string{"PORT": "eighty"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromMap(tt.vars)
			if err == nil {
				err = cfg.Validate()
			}
			assert.Error(t, err)
		})
	}
}

func TestFromMap_LeavesValidationToCaller(t *testing.T) {
	// GIVEN: mongo selected but its uri supplied later (by a flag)
	cfg, err := FromMap(map[string]string{"STORE": " Mongo "})
	require.NoError(t, err)
	assert.Equal(t, StoreMongo, cfg.Store)
	assert.Error(t, cfg.Validate())

	// WHEN
	cfg.MongoURI = "mongodb://localhost:27017"

	// THEN
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ReadsEnvFile(t *testing.T) {
	// GIVEN: an env file that sets the store; the process env is clean for
	// the keys under test
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("DEPLOY_STORE=memory\nDEPLOY_HORIZON_DAYS=21\n"), 0o600))
	t.Setenv("DEPLOY_STORE", "")
	t.Setenv("DEPLOY_HORIZON_DAYS", "")
	os.Unsetenv("DEPLOY_STORE")
	os.Unsetenv("DEPLOY_HORIZON_DAYS")

	// WHEN
	cfg, err := Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, 21, cfg.HorizonDays)
}

func TestLoad_MissingFileIsFine(t *testing.T) {
	t.Setenv("DEPLOY_STORE", "memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))

	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.Store)
}
