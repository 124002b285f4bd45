package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = "MLMCORE"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "MLMCORE_APP_ENV"
	EnvPort     = "MLMCORE_APP_PORT"
	EnvDBDSN    = "MLMCORE_DB_DSN"
	EnvDBHost   = "MLMCORE_DB_HOST"
	EnvDBUser   = "MLMCORE_DB_USER"
	EnvDBName   = "MLMCORE_DB_NAME"
	EnvRedisURL = "MLMCORE_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	FeatureFlags  FeatureFlagsConfig
	Tree          TreeConfig
	Ranks         RanksConfig
	Payouts       PayoutsConfig
	Cron          CronConfig
	Notifications NotificationsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Payouts.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MLMCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"MLMCORE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MLMCORE_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"MLMCORE_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"MLMCORE_LOG_WARN_STACK" default:"false"`

	// CORSAllowedOrigins is a comma-separated list; empty disables cross-origin access.
	CORSAllowedOrigins []string `envconfig:"MLMCORE_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MLMCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MLMCORE_DB_DSN"`
	Driver string `envconfig:"MLMCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MLMCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"MLMCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MLMCORE_DB_USER"`
	LegacyPassword string `envconfig:"MLMCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"MLMCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"MLMCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MLMCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MLMCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MLMCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MLMCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MLMCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MLMCORE_REDIS_ADDR"`
	Password     string        `envconfig:"MLMCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"MLMCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MLMCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MLMCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MLMCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MLMCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MLMCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MLMCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MLMCORE_AUTO_MIGRATE" default:"false"`
}

// TreeConfig bounds every binary and infinity traversal.
type TreeConfig struct {
	MaxDepth         int `envconfig:"MLMCORE_TREE_MAX_DEPTH" default:"512"`
	MaxSnapshotDepth int `envconfig:"MLMCORE_TREE_MAX_SNAPSHOT_DEPTH" default:"8"`
	MaxInfinityDepth int `envconfig:"MLMCORE_INFINITY_MAX_DEPTH" default:"32"`
}

type RanksConfig struct {
	MaxRank int `envconfig:"MLMCORE_RANKS_MAX_RANK" default:"12"`
	// PairingClubCeiling is the highest club that still earns ranks through pairing.
	PairingClubCeiling string `envconfig:"MLMCORE_RANKS_PAIRING_CLUB_CEILING" default:"silver"`
}

type PayoutsConfig struct {
	TimezoneOffsetMinutes int    `envconfig:"MLMCORE_PAYOUTS_TZ_OFFSET_MINUTES" default:"330"`
	MinVolumeRatio        string `envconfig:"MLMCORE_PAYOUTS_MIN_VOLUME_RATIO" default:"0.2"`
	DirectBonus           string `envconfig:"MLMCORE_PAYOUTS_DIRECT_BONUS" default:"500"`
	RankBonusPerLevel     string `envconfig:"MLMCORE_PAYOUTS_RANK_BONUS_PER_LEVEL" default:"1000"`
	RepurchasePercent     string `envconfig:"MLMCORE_PAYOUTS_REPURCHASE_PERCENT" default:"10"`
	InfinityPercent       string `envconfig:"MLMCORE_PAYOUTS_INFINITY_PERCENT" default:"5"`
}

// Location returns the fixed zone used to cut payout windows.
func (p PayoutsConfig) Location() *time.Location {
	offset := p.TimezoneOffsetMinutes * 60
	return time.FixedZone(fmt.Sprintf("UTC%+03d:%02d", p.TimezoneOffsetMinutes/60, abs(p.TimezoneOffsetMinutes%60)), offset)
}

// Decimal parses one of the decimal-valued settings; validate has already run.
func (p PayoutsConfig) Decimal(raw string) decimal.Decimal {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return value
}

func (p PayoutsConfig) validate() error {
	fields := map[string]string{
		"MLMCORE_PAYOUTS_MIN_VOLUME_RATIO":     p.MinVolumeRatio,
		"MLMCORE_PAYOUTS_DIRECT_BONUS":         p.DirectBonus,
		"MLMCORE_PAYOUTS_RANK_BONUS_PER_LEVEL": p.RankBonusPerLevel,
		"MLMCORE_PAYOUTS_REPURCHASE_PERCENT":   p.RepurchasePercent,
		"MLMCORE_PAYOUTS_INFINITY_PERCENT":     p.InfinityPercent,
	}
	for env, raw := range fields {
		value, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s must be a decimal: %w", env, err)
		}
		if value.IsNegative() {
			return fmt.Errorf("%s must not be negative", env)
		}
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"MLMCORE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"MLMCORE_CRON_LOCK_TTL" default:"2h"`
}

type NotificationsConfig struct {
	RetentionDays int `envconfig:"MLMCORE_NOTIFICATIONS_RETENTION_DAYS" default:"90"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if db.DSN != "" {
		return nil
	}
	if useSQLite {
		db.DSN = "file:mlmcore.db?_foreign_keys=on"
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
