package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string
	DBUrl    string

	JWTSecret     string
	AllowedOrigin string

	// DB Config
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnIdleTime time.Duration

	// Cache
	CacheOfferTTL  time.Duration
	CacheCouponTTL time.Duration

	// Pricing
	DeliveryBaseFee      float64
	DeliveryPerKmRate    float64
	FreeDeliveryRadiusKm float64
	PlatformFeePercent   float64
	GSTPercent           float64

	// Business Rules
	MaxCartQuantity int
	CartTTL         time.Duration
	CartSweepPeriod time.Duration
	DefaultAttempts int
}

func LoadConfig() *Config {
	// A specific config file can be requested via env var; otherwise fall
	// back to .env for local dev. Missing files are fine in docker/prod
	// where system env vars carry everything.
	configFile := os.Getenv("CONFIG_FILE")
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			log.Printf("Warning: Failed to load config file '%s': %v", configFile, err)
		} else {
			log.Printf("Loaded configuration from %s", configFile)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found or error loading it, relying on system env vars")
		}
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		DBUrl:    getEnv("DB_DSN", ""),

		JWTSecret:     getEnv("JWT_SECRET", "default_secret_CHANGE_ME"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),

		DBMaxConns:        getInt32Env("DB_MAX_CONNS", 50),
		DBMinConns:        getInt32Env("DB_MIN_CONNS", 10),
		DBMaxConnIdleTime: getDurationEnv("DB_MAX_CONN_IDLE_TIME", time.Minute*15),

		// Offer snapshots are cheap to rebuild but read on every pricing
		// call, so short TTLs keep admin changes visible quickly.
		CacheOfferTTL:  getDurationEnv("CACHE_OFFER_TTL", 2*time.Minute),
		CacheCouponTTL: getDurationEnv("CACHE_COUPON_TTL", 5*time.Minute),

		DeliveryBaseFee:      getFloatEnv("DELIVERY_BASE_FEE", 40),
		DeliveryPerKmRate:    getFloatEnv("DELIVERY_PER_KM_RATE", 8),
		FreeDeliveryRadiusKm: getFloatEnv("FREE_DELIVERY_RADIUS_KM", 3),
		PlatformFeePercent:   getFloatEnv("PLATFORM_FEE_PERCENT", 2),
		GSTPercent:           getFloatEnv("GST_PERCENT", 5),

		MaxCartQuantity: getIntEnv("MAX_CART_QUANTITY", 1000),
		CartTTL:         getDurationEnv("CART_TTL", 72*time.Hour),
		CartSweepPeriod: getDurationEnv("CART_SWEEP_PERIOD", time.Hour),
		DefaultAttempts: getIntEnv("NEGOTIATION_DEFAULT_ATTEMPTS", 3),
	}

	cfg.Validate()
	return cfg
}

func (c *Config) Validate() {
	if c.DBUrl == "" {
		log.Fatal("CRITICAL: DB_DSN environment variable is required")
	}
	if c.JWTSecret == "default_secret_CHANGE_ME" {
		log.Println("WARNING: Using default JWT secret. Setting up for failure in production.")
	}
	if c.PlatformFeePercent < 0 || c.GSTPercent < 0 {
		log.Fatal("CRITICAL: fee percentages must not be negative")
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using fallback", key)
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s, using fallback", key)
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s, using fallback", key)
	}
	return fallback
}
