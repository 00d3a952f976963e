package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel    string `env:"LOG_LEVEL"`
	Postgres    Postgres
	Redis       Redis
	API         API
	Cache       Cache
	Jobs        Jobs
	GoogleDrive GoogleDrive
	HTTP        HTTP
	Currency    Currency
	Sync        Sync
}

type Postgres struct {
	Host            string `env:"PG_HOST"`
	Port            int    `env:"PG_PORT"`
	DbName          string `env:"PG_DB_NAME"`
	Password        string `env:"PG_PASSWORD"`
	User            string `env:"PG_USER"`
	MaxOpenConns    int    `env:"PG_MAX_OPEN_CONNS"`
	ConnMaxLifetime int    `env:"PG_CONN_MAX_LIFETIME"`
	MaxIdleConns    int    `env:"PG_MAX_IDLE_CONNS"`
	ConnMaxIdleTime int    `env:"PG_CONN_MAX_IDLE_TIME"`
	MigrationDir    string `env:"PG_MIGRATION_DIR"`
}

type Redis struct {
	Host     string `env:"REDIS_HOST"`
	Port     int    `env:"REDIS_PORT"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`
}

type API struct {
	Debug       bool          `env:"API_DEBUG"`
	Timeout     time.Duration `env:"API_TIMEOUT"`
	DomesticApi DomesticApi
	GlobalApi   GlobalApi
	CurrencyApi CurrencyApi
}

type DomesticApi struct {
	Url string `env:"DOMESTIC_API_URL"`
}

type GlobalApi struct {
	Url string `env:"GLOBAL_API_URL"`
}

type CurrencyApi struct {
	Url string `env:"CURRENCY_API_URL"`
}

type Cache struct {
	QuotesExpiration time.Duration `env:"CACHE_QUOTES_EXPIRATION"`
	RateExpiration   time.Duration `env:"CACHE_RATE_EXPIRATION"`
}

type Jobs struct {
	RefreshPricesInterval time.Duration `env:"REFRESH_PRICES_JOB_INTERVAL"`
	RefreshRateInterval   time.Duration `env:"REFRESH_RATE_JOB_INTERVAL"`
}

type GoogleDrive struct {
	CredentialsFile string `env:"GOOGLE_DRIVE_CREDENTIALS_FILE"`
}

type HTTP struct {
	Port         int           `env:"HTTP_PORT"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT"`
}

type Currency struct {
	// FallbackUsdToInr is used whenever the currency API is unreachable
	// and no cached rate exists.
	FallbackUsdToInr float64 `env:"CURRENCY_FALLBACK_USD_TO_INR" envDefault:"84.0"`
}

type Sync struct {
	RefreshConcurrency int `env:"SYNC_REFRESH_CONCURRENCY" envDefault:"8"`
}

func MustLoad() *Config {
	_ = godotenv.Load(".env")

	cfg := &Config{}

	opts := env.Options{RequiredIfNoDef: true}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		log.Fatalf("parse config error: %s", err)
	}

	return cfg
}
