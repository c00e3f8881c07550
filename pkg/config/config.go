package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Remote       RemoteConfig
	Connectivity ConnectivityConfig
	Cache        CacheConfig
	Sync         SyncConfig
	Redis        RedisConfig
	Cron         CronConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Remote.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POSDESK_APP_ENV" default:"dev"`
	Port         string `envconfig:"POSDESK_APP_PORT" default:"7420"`
	LogLevel     string `envconfig:"POSDESK_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"POSDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"POSDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// DBConfig describes the local structured store. SQLite is the terminal default;
// postgres is accepted for back-office mirrors that share the same schema.
type DBConfig struct {
	Driver string `envconfig:"POSDESK_DB_DRIVER" default:"sqlite"`
	Path   string `envconfig:"POSDESK_DB_PATH" default:"posdesk.db"`
	DSN    string `envconfig:"POSDESK_DB_DSN"`

	BusyTimeout     time.Duration `envconfig:"POSDESK_DB_BUSY_TIMEOUT" default:"5s"`
	MaxOpenConns    int           `envconfig:"POSDESK_DB_MAX_OPEN_CONNS" default:"1"`
	MaxIdleConns    int           `envconfig:"POSDESK_DB_MAX_IDLE_CONNS" default:"1"`
	ConnMaxLifetime time.Duration `envconfig:"POSDESK_DB_CONN_MAX_LIFETIME" default:"0"`
	ConnMaxIdleTime time.Duration `envconfig:"POSDESK_DB_CONN_MAX_IDLE_TIME" default:"0"`
}

// IsSQLite reports whether the configured driver is the embedded engine.
func (db DBConfig) IsSQLite() bool {
	driver := strings.ToLower(strings.TrimSpace(db.Driver))
	return driver == "" || driver == DriverSQLite
}

type RemoteConfig struct {
	BaseURL        string        `envconfig:"POSDESK_REMOTE_BASE_URL" required:"true"`
	APIToken       string        `envconfig:"POSDESK_REMOTE_API_TOKEN"`
	RequestTimeout time.Duration `envconfig:"POSDESK_REMOTE_REQUEST_TIMEOUT" default:"10s"`
	HealthPath     string        `envconfig:"POSDESK_REMOTE_HEALTH_PATH" default:"/health/live"`
}

type ConnectivityConfig struct {
	ProbeInterval time.Duration `envconfig:"POSDESK_CONNECTIVITY_PROBE_INTERVAL" default:"15s"`
	ProbeTimeout  time.Duration `envconfig:"POSDESK_CONNECTIVITY_PROBE_TIMEOUT" default:"3s"`
}

type CacheConfig struct {
	FreshnessMaxAge         time.Duration `envconfig:"POSDESK_CACHE_FRESHNESS_MAX_AGE" default:"5m"`
	WriteThroughMinInterval time.Duration `envconfig:"POSDESK_CACHE_WRITE_THROUGH_MIN_INTERVAL" default:"0"`
}

type SyncConfig struct {
	BatchSize           int           `envconfig:"POSDESK_SYNC_BATCH_SIZE" default:"25"`
	PollIntervalMS      int           `envconfig:"POSDESK_SYNC_POLL_MS" default:"2000"`
	MaxAttempts         int           `envconfig:"POSDESK_SYNC_MAX_ATTEMPTS" default:"8"`
	BackoffBase         time.Duration `envconfig:"POSDESK_SYNC_BACKOFF_BASE" default:"2s"`
	BackoffMax          time.Duration `envconfig:"POSDESK_SYNC_BACKOFF_MAX" default:"5m"`
	DeadLetterRetention time.Duration `envconfig:"POSDESK_SYNC_DEAD_LETTER_RETENTION" default:"720h"`
	EmbeddedReplay      bool          `envconfig:"POSDESK_SYNC_EMBEDDED_REPLAY" default:"true"`
}

// RedisConfig is optional; without a URL the replay lock stays in-process.
type RedisConfig struct {
	URL          string        `envconfig:"POSDESK_REDIS_URL"`
	Address      string        `envconfig:"POSDESK_REDIS_ADDR"`
	Password     string        `envconfig:"POSDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"POSDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POSDESK_REDIS_POOL_SIZE" default:"4"`
	MinIdleConns int           `envconfig:"POSDESK_REDIS_MIN_IDLE_CONNS" default:"1"`
	DialTimeout  time.Duration `envconfig:"POSDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POSDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POSDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether a Redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type CronConfig struct {
	Interval time.Duration `envconfig:"POSDESK_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"POSDESK_CRON_LOCK_TTL" default:"10m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"POSDESK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000,http://localhost:5173"`
}

func (db *DBConfig) ensureDSN() error {
	if db.IsSQLite() {
		db.Driver = DriverSQLite
		if db.DSN != "" {
			return nil
		}
		if strings.TrimSpace(db.Path) == "" {
			return fmt.Errorf("%s is required for the sqlite driver", EnvDBPath)
		}
		db.DSN = SQLiteDSN(db.Path, db.BusyTimeout)
		return nil
	}

	if !strings.EqualFold(db.Driver, DriverPostgres) {
		return fmt.Errorf("unsupported %s %q", EnvDBDriver, db.Driver)
	}
	db.Driver = DriverPostgres
	if db.DSN == "" {
		return fmt.Errorf("%s is required for the postgres driver", EnvDBDSN)
	}
	return nil
}

// SQLiteDSN builds a mattn/go-sqlite3 connection string with WAL and a busy timeout.
func SQLiteDSN(path string, busyTimeout time.Duration) string {
	if busyTimeout <= 0 {
		busyTimeout = 5 * time.Second
	}
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", busyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")
	return "file:" + path + "?" + q.Encode()
}

func (r RemoteConfig) validate() error {
	if r.BaseURL == "" {
		return fmt.Errorf("%s is required", EnvRemoteBaseURL)
	}
	u, err := url.Parse(r.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url, got %q", EnvRemoteBaseURL, r.BaseURL)
	}
	return nil
}
