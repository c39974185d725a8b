package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadJSON writes body as the config file of a temp dir and loads it.
func loadJSON(t *testing.T, body string) {
	t.Helper()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFile), []byte(body), 0o644))
	require.NoError(t, Load(dir))
}

func TestLoad_Defaults(t *testing.T) {
	loadJSON(t, `{}`)

	for key, want := range map[string]any{
		"logLevel":                      "info",
		"defaultTag":                    "Drill",
		"logsDir":                       "./evaclogs",
		"site.anchor":                   "13.4050,52.5200,34",
		"api.serverUrl":                 "http://localhost:5000",
		"api.upload":                    false,
		"db.host":                       "localhost",
		"db.port":                       "5432",
		"db.database":                   "evacsim",
		"graylog.address":               "localhost:12201",
		"storage.type":                  "memory",
		"storage.memory.compressOutput": true,
		"storage.sqlite.dumpInterval":   "1m",
		"otel.serviceName":              "evacsim",
		"otel.insecure":                 true,
		"sim.panicMode":                 "dynamic",
		"sim.dataset":                   "smoke.bin",
	} {
		assert.EqualValues(t, want, viper.Get(key), key)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	loadJSON(t, `{
		"logLevel": "debug",
		"defaultTag": "Night",
		"db": { "host": "10.0.0.1", "port": "5433" }
	}`)

	assert.Equal(t, "debug", GetString("logLevel"))
	assert.Equal(t, "Night", GetString("defaultTag"))
	assert.Equal(t, "10.0.0.1", GetString("db.host"))
	assert.Equal(t, "5433", GetString("db.port"))
	assert.Equal(t, "postgres", GetString("db.username"), "untouched keys keep defaults")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load("/nonexistent/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestTypedGetters(t *testing.T) {
	t.Cleanup(viper.Reset)
	viper.Set("sim.occupants", 42)
	viper.Set("api.upload", true)

	assert.Equal(t, 42, GetInt("sim.occupants"))
	assert.True(t, GetBool("api.upload"))
	assert.Empty(t, GetString("no.such.key"))
}

func TestGetStorageConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		loadJSON(t, `{}`)
		sc := GetStorageConfig()
		assert.Equal(t, StorageConfig{
			Type:   "memory",
			Memory: MemoryConfig{OutputDir: "./results", CompressOutput: true},
			SQLite: SQLiteConfig{DumpInterval: time.Minute},
		}, sc)
	})

	t.Run("sqlite", func(t *testing.T) {
		loadJSON(t, `{"storage": {
			"type": "sqlite",
			"memory": { "outputDir": "/tmp/out", "compressOutput": false },
			"sqlite": { "dumpInterval": "10m", "dumpPath": "/tmp/run.db" }
		}}`)
		sc := GetStorageConfig()
		assert.Equal(t, "sqlite", sc.Type)
		assert.Equal(t, MemoryConfig{OutputDir: "/tmp/out"}, sc.Memory)
		assert.Equal(t, SQLiteConfig{DumpInterval: 10 * time.Minute, DumpPath: "/tmp/run.db"}, sc.SQLite)
	})
}

func TestGetOTelConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		loadJSON(t, `{}`)
		assert.Equal(t, OTelConfig{ServiceName: "evacsim", BatchTimeout: 5 * time.Second, Insecure: true}, GetOTelConfig())
	})

	t.Run("collector", func(t *testing.T) {
		loadJSON(t, `{"otel": {
			"enabled": true, "serviceName": "evac-night", "batchTimeout": "30s",
			"endpoint": "collector:4318", "insecure": false
		}}`)
		assert.Equal(t, OTelConfig{
			Enabled:      true,
			ServiceName:  "evac-night",
			BatchTimeout: 30 * time.Second,
			Endpoint:     "collector:4318",
		}, GetOTelConfig())
	})
}

func TestGetSimConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Cleanup(viper.Reset)
		SetDefaults()

		sc := GetSimConfig()
		assert.Equal(t, "dynamic", sc.PanicMode)
		assert.Equal(t, 10, sc.Episodes)
		assert.Equal(t, 8, sc.Workers)
		assert.InDelta(t, 0.02, sc.Dt, 1e-12)
		assert.InDelta(t, 150.0, sc.EpisodeTimeout, 1e-12)
		assert.InDelta(t, 1.0, sc.SnapshotEvery, 1e-12)
		assert.Zero(t, sc.Seed)
		assert.Equal(t, "./results", sc.ResultsDir)
	})

	t.Run("file", func(t *testing.T) {
		loadJSON(t, `{"sim": {
			"dataset": "/data/fire.bin.zst",
			"panicMode": "mixed",
			"episodes": 100,
			"dt": 0.05,
			"seed": 1234,
			"policyUrl": "http://policy:8000"
		}}`)

		sc := GetSimConfig()
		assert.Equal(t, "/data/fire.bin.zst", sc.Dataset)
		assert.Equal(t, "mixed", sc.PanicMode)
		assert.Equal(t, 100, sc.Episodes)
		assert.InDelta(t, 0.05, sc.Dt, 1e-12)
		assert.Equal(t, int64(1234), sc.Seed)
		assert.Equal(t, "http://policy:8000", sc.PolicyURL)
		assert.Equal(t, 8, sc.Workers)
	})
}

func TestGetInfluxConfig(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("influx.enabled", true)
	viper.Set("influx.host", "influx.local")

	ic := GetInfluxConfig()
	assert.True(t, ic.Enabled)
	assert.Equal(t, "influx.local", ic.Host)
	assert.Equal(t, "8086", ic.Port)
	assert.Equal(t, "population", ic.Bucket)
	assert.Equal(t, "evacsim", ic.Org)
}
