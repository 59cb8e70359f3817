package config

import "sync"

var (
	globalConfig *Config
	configMutex  sync.RWMutex
	initOnce     sync.Once
	initErr      error
)

// Initialize loads configuration from path with environment overrides and
// stores it as the process-wide configuration. Only the first call loads;
// later calls return the first call's error.
func Initialize(path string) error {
	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}
		SetConfig(cfg)
	})
	return initErr
}

// GetConfig returns the process-wide configuration, or nil before a
// successful Initialize or SetConfig.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the process-wide configuration.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// Override applies fn to a copy of the current configuration and installs
// the copy if it validates. Command-line flags go through here so a bad flag
// value is reported like a bad file value.
func Override(fn func(*Config)) (*Config, error) {
	configMutex.Lock()
	defer configMutex.Unlock()

	next := Default()
	if globalConfig != nil {
		c := *globalConfig
		next = &c
	}
	fn(next)
	if err := Validate(next); err != nil {
		return nil, err
	}
	globalConfig = next
	return next, nil
}
