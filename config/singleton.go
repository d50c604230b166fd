package config

import "sync"

var (
	instanceMu sync.Mutex
	instance   ConfigManager
)

// GetInstance returns the process-wide ConfigManager, constructing the
// default viper-backed implementation on first use.
func GetInstance() ConfigManager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = NewConfigManager()
	}
	return instance
}

// SetInstanceForTesting overrides the singleton, for tests that want a
// mock ConfigManager without going through file-backed loading.
func SetInstanceForTesting(cm ConfigManager) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = cm
}

// ResetInstance clears the singleton so the next GetInstance call builds
// a fresh default instance.
func ResetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	instance = nil
}
