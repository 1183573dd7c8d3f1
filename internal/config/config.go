package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	UpstreamBaseURL       string
	UpstreamAPIToken      string
	UpstreamTimeoutSecs   int
	ShopID                int64
	ShopName              string
	CurrencySymbol        string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	CatalogTTLSeconds     int
	SpoolDir              string
	PrintCommand          string
	AuthSecret            string
	AccessTokenTTLMinutes int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	catalogTTL, err := strconv.Atoi(getEnv("CATALOG_TTL_SECONDS", "900"))
	if err != nil || catalogTTL < 1 {
		catalogTTL = 900
	}
	upstreamTimeout, err := strconv.Atoi(getEnv("UPSTREAM_TIMEOUT_SECONDS", "10"))
	if err != nil || upstreamTimeout < 1 {
		upstreamTimeout = 10
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	shopID, err := strconv.ParseInt(getEnv("SHOP_ID", "1"), 10, 64)
	if err != nil || shopID < 1 {
		shopID = 1
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		UpstreamBaseURL:       getEnv("UPSTREAM_BASE_URL", "http://127.0.0.1:9000"),
		UpstreamAPIToken:      strings.TrimSpace(os.Getenv("UPSTREAM_API_TOKEN")),
		UpstreamTimeoutSecs:   upstreamTimeout,
		ShopID:                shopID,
		ShopName:              getEnv("SHOP_NAME", "WarungLink Shop"),
		CurrencySymbol:        getEnv("CURRENCY_SYMBOL", "৳"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		CatalogTTLSeconds:     catalogTTL,
		SpoolDir:              getEnv("RECEIPT_SPOOL_DIR", "/var/spool/warunglink"),
		PrintCommand:          strings.TrimSpace(os.Getenv("RECEIPT_PRINT_COMMAND")),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
