package config

import (
	"time"

	"zelyx-order-tracker/internal/model"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	Shop    Shop    `envPrefix:"SHOP_"`
	Tracker Tracker `envPrefix:"TRACKER_"`
	Receipt Receipt `envPrefix:"RECEIPT_"`
	Storage Storage `envPrefix:"STORAGE_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
	// empty disables the admin routes
	AdminToken string `env:"ADMIN_TOKEN"`
}

// Shop is the storefront REST backend the tracker reads orders from.
type Shop struct {
	BaseApiURL string        `env:"BASE_API_URL" envDefault:"http://localhost:5000/api"`
	APIToken   string        `env:"API_TOKEN"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

type Tracker struct {
	// the two storefront pages poll at different rates
	OrderStatusPollInterval  time.Duration `env:"ORDER_STATUS_POLL_INTERVAL" envDefault:"10s"`
	BankTransferPollInterval time.Duration `env:"BANK_TRANSFER_POLL_INTERVAL" envDefault:"30s"`
	TickInterval             time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	PaymentWindow            time.Duration `env:"PAYMENT_WINDOW" envDefault:"6h"`
	MaxSessions              int           `env:"MAX_SESSIONS" envDefault:"1000"`

	// sessions nobody viewed for this long are closed, 0 keeps them until DELETE
	SessionIdleTimeout time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"15m"`
}

type Receipt struct {
	MaxAppeals   int   `env:"MAX_APPEALS" envDefault:"0"` // 0 = unlimited
	MaxSizeBytes int64 `env:"MAX_SIZE_BYTES" envDefault:"10485760"`
}

type Storage struct {
	Driver        string `env:"DRIVER" envDefault:"sqlite"` // memory, sqlite, mysql, redis, bolt
	DSN           string `env:"DSN" envDefault:"tracker.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	BoltPath      string `env:"BOLT_PATH" envDefault:"tracker.bolt"`
	KeyPrefix     string `env:"KEY_PREFIX" envDefault:"paymentExpiration_"`
}

func (t Tracker) PollInterval(view model.View) time.Duration {
	if view == model.ViewBankTransfer {
		return t.BankTransferPollInterval
	}
	return t.OrderStatusPollInterval
}
