package main

import (
	"fmt"
	"path/filepath"

	"github.com/OCAP2/evacsim/internal/config"
	"github.com/OCAP2/evacsim/internal/geo"
	"github.com/OCAP2/evacsim/internal/storage"
	pgstorage "github.com/OCAP2/evacsim/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/evacsim/internal/storage/sqlite"
	wsstorage "github.com/OCAP2/evacsim/internal/storage/websocket"
	"github.com/spf13/viper"
)

// sessionDBPath names the SQLite file written next to the logs for this session.
func sessionDBPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.db", AppName, SessionStartTime.Format("20060102_150405")))
}

// createStorageBackend builds the configured backend. settings is stored with the run where the
// backend keeps run rows.
func createStorageBackend(storageCfg config.StorageConfig, anchor geo.Anchor, settings any) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			Logger:       storeLogger("postgres"),
			Anchor:       anchor,
			Settings:     settings,
			FallbackPath: sessionDBPath(viper.GetString("logsDir")),
		}), nil

	case "sqlite":
		dumpPath := storageCfg.SQLite.DumpPath
		if dumpPath == "" {
			dumpPath = sessionDBPath(viper.GetString("logsDir"))
		}
		backend, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: storageCfg.SQLite.DumpInterval,
			DumpPath:     dumpPath,
			Anchor:       anchor,
			Settings:     settings,
		}, storeLogger("sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		Logger.Info("SQLite storage backend initialized", "dumpPath", dumpPath)
		return backend, nil

	case "websocket":
		wsURL := wsstorage.HTTPToWS(viper.GetString("api.serverUrl")) + "/api"
		secret := viper.GetString("api.apiKey")
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
			Logger: Logger,
		}), nil

	default:
		backend, err := storage.NewBackend(storageCfg)
		if err != nil {
			return nil, err
		}
		Logger.Info("Memory storage backend initialized", "outputDir", storageCfg.Memory.OutputDir)
		return backend, nil
	}
}
