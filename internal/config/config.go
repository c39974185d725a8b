package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFile is the name of the JSON config file looked up in the config directory.
const ConfigFile = "evacsim.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings.
type SQLiteConfig struct {
	DumpInterval time.Duration
	DumpPath     string
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
}

// OTelConfig holds the OpenTelemetry logging settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// InfluxConfig holds the population metrics sink settings.
type InfluxConfig struct {
	Enabled  bool
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string
}

// SimConfig holds the run parameters read from the config file. Flags override them.
type SimConfig struct {
	Dataset        string
	Layout         string
	Tuning         string
	PanicMode      string
	Episodes       int
	Occupants      int
	Workers        int
	Dt             float64
	EpisodeTimeout float64
	TargetDuration float64
	SnapshotEvery  float64
	Seed           int64
	ResultsDir     string
	PolicyURL      string
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(ConfigFile)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers every default value. Load calls it; commands that run without a
// config file call it directly.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("defaultTag", "Drill")
	viper.SetDefault("logsDir", "./evaclogs")

	viper.SetDefault("site.anchor", "13.4050,52.5200,34")
	viper.SetDefault("statusFile", "")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.upload", false)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "evacsim")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "evacsim")
	viper.SetDefault("influx.bucket", "population")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./results")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.sqlite.dumpPath", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "evacsim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("sim.dataset", "smoke.bin")
	viper.SetDefault("sim.layout", "")
	viper.SetDefault("sim.tuning", "")
	viper.SetDefault("sim.panicMode", "dynamic")
	viper.SetDefault("sim.episodes", 10)
	viper.SetDefault("sim.occupants", 0)
	viper.SetDefault("sim.workers", 8)
	viper.SetDefault("sim.dt", 0.02)
	viper.SetDefault("sim.episodeTimeout", 150.0)
	viper.SetDefault("sim.targetDuration", 0.0)
	viper.SetDefault("sim.snapshotEvery", 1.0)
	viper.SetDefault("sim.seed", 0)
	viper.SetDefault("sim.resultsDir", "./results")
	viper.SetDefault("sim.policyUrl", "")
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
		},
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

func GetSimConfig() SimConfig {
	return SimConfig{
		Dataset:        viper.GetString("sim.dataset"),
		Layout:         viper.GetString("sim.layout"),
		Tuning:         viper.GetString("sim.tuning"),
		PanicMode:      viper.GetString("sim.panicMode"),
		Episodes:       viper.GetInt("sim.episodes"),
		Occupants:      viper.GetInt("sim.occupants"),
		Workers:        viper.GetInt("sim.workers"),
		Dt:             viper.GetFloat64("sim.dt"),
		EpisodeTimeout: viper.GetFloat64("sim.episodeTimeout"),
		TargetDuration: viper.GetFloat64("sim.targetDuration"),
		SnapshotEvery:  viper.GetFloat64("sim.snapshotEvery"),
		Seed:           viper.GetInt64("sim.seed"),
		ResultsDir:     viper.GetString("sim.resultsDir"),
		PolicyURL:      viper.GetString("sim.policyUrl"),
	}
}
