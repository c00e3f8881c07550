package config

const (
	EnvPrefix = "POSDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvAppEnv          = "POSDESK_APP_ENV"
	EnvPort            = "POSDESK_APP_PORT"
	EnvDBDriver        = "POSDESK_DB_DRIVER"
	EnvDBPath          = "POSDESK_DB_PATH"
	EnvDBDSN           = "POSDESK_DB_DSN"
	EnvRemoteBaseURL   = "POSDESK_REMOTE_BASE_URL"
	EnvRedisURL        = "POSDESK_REDIS_URL"
	EnvSyncMaxAttempts = "POSDESK_SYNC_MAX_ATTEMPTS"
	EnvCacheMaxAge     = "POSDESK_CACHE_FRESHNESS_MAX_AGE"
)
