package sdk

import (
	"os"

	"github.com/hireloop-dev/hireloop-store/internal/engine"
)

// New initializes the store based on the environment.
// It returns the interface, so the app doesn't care if it's local or remote.
func New(dataDir string) (engine.Store, error) {
	// 1. Check if a remote store is defined in environment variables
	remoteAddr := os.Getenv("HIRELOOP_STORE_ADDR")

	if remoteAddr != "" {
		client, err := Connect(remoteAddr)
		if err == nil {
			return client, nil
		}
		// Connection failed; fall back to embedded mode below.
	}

	// 2. Embedded mode: the same engine the daemon uses, in process.
	p, err := engine.NewPersistence(dataDir)
	if err != nil {
		return nil, err
	}

	allData, err := p.LoadAll()
	if err != nil {
		return nil, err
	}

	return engine.NewMemStore(allData, p), nil
}
