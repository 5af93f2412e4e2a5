package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	MigrateOnStart bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Per client IP token bucket on the gateway return endpoint.
	ReturnRateLimit float64
	ReturnRateBurst int

	// Proxies allowed to set X-Forwarded-For / X-Real-IP. Empty trusts none.
	TrustedProxies []string

	Gateway GatewayConfig
}

// GatewayConfig carries the merchant credentials and URLs of the VNPAY
// integration. It is passed explicitly to the signer and reconciliation code.
type GatewayConfig struct {
	TmnCode     string
	HashSecret  string
	PayURL      string
	ReturnURL   string
	FrontendURL string
}

const (
	DefaultPayURL      = "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"
	DefaultReturnURL   = "http://localhost:8080/api/payment/vnpay-return"
	DefaultFrontendURL = "http://localhost:3000"
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "condofee"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		MigrateOnStart:    getenvBool("MIGRATE_ON_START", true),
		OTLPEndpoint:      getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "condofee"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		RedisAddr:         strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword:     getenv("REDIS_PASSWORD", ""),
		RedisDB:           getenvInt("REDIS_DB", 0),
		ReturnRateLimit:   getenvFloat("RETURN_RATE_LIMIT", 1),
		ReturnRateBurst:   getenvInt("RETURN_RATE_BURST", 10),
		TrustedProxies:    getenvList("TRUSTED_PROXIES"),
		Gateway:           loadGateway(),
	}

	return cfg
}

func loadGateway() GatewayConfig {
	return GatewayConfig{
		TmnCode:     strings.TrimSpace(getenv("VNPAY_TMN_CODE", "")),
		HashSecret:  strings.TrimSpace(getenv("VNPAY_HASH_SECRET", "")),
		PayURL:      strings.TrimSpace(getenv("VNPAY_PAY_URL", DefaultPayURL)),
		ReturnURL:   strings.TrimSpace(getenv("VNPAY_RETURN_URL", DefaultReturnURL)),
		FrontendURL: strings.TrimRight(strings.TrimSpace(getenv("FRONTEND_URL", DefaultFrontendURL)), "/"),
	}
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func (c Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
