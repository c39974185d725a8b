// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/OCAP2/evacsim/internal/config"
	"github.com/OCAP2/evacsim/internal/storage/memory"
)

// NewBackend creates the in-process storage backends. Database and streaming backends need
// connections and are built by the command.
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Type {
	case "postgres", "sqlite", "websocket":
		return nil, fmt.Errorf("%s backend needs runtime dependencies", cfg.Type)
	case "memory", "":
		return memory.New(cfg.Memory), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
