package backend

import (
	"fmt"

	"weekspend/internal/config"
	"weekspend/internal/storage/postgres"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		Postgres: postgres.Config{
			URL:      appConfig.PostgresURL,
			Host:     appConfig.PostgresHost,
			Port:     appConfig.PostgresPort,
			Database: appConfig.PostgresDB,
			User:     appConfig.PostgresUser,
			Password: appConfig.PostgresPassword,
			SSLMode:  appConfig.PostgresSSLMode,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.Postgres.URL == "" && (c.Postgres.Host == "" || c.Postgres.Database == "") {
			return fmt.Errorf("postgres backend needs a URL or a host and database")
		}
	case MemoryBackend:
		// nothing to check
	}

	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, PostgresBackend}
}
