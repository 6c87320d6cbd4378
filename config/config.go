package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/svxarena/tourneyzone/models"
)

const defaultPayoutPlan = "first=3/7,second=2/7,third=1/7,organizer=1/7"

// Config holds every runtime setting of the service.
type Config struct {
	DatabaseURL       string
	JWTSecretKey      string
	ServerPort        int
	PublicURL         string
	MigrationsEnabled bool

	RedisAddr     string
	RedisPassword string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Ledger settings. Amounts are in paise.
	PlatformFeeAccountID int
	ListingFee           int64
	SignupBonus          int64
	PayoutPlan           models.PayoutPlan

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads the configuration from environment variables.
// A .env file is loaded first when present (handy for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := getInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	smtpPort, err := getInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	feeAccountID, err := getInt("PLATFORM_FEE_ACCOUNT_ID", 1)
	if err != nil {
		return nil, err
	}
	if feeAccountID <= 0 {
		return nil, fmt.Errorf("PLATFORM_FEE_ACCOUNT_ID must be positive, got %d", feeAccountID)
	}

	listingFee, err := getAmount("TOURNAMENT_LISTING_FEE", 0)
	if err != nil {
		return nil, err
	}
	signupBonus, err := getAmount("SIGNUP_BONUS", 0)
	if err != nil {
		return nil, err
	}

	plan, err := models.ParsePayoutPlan(getEnv("PAYOUT_PLAN", defaultPayoutPlan))
	if err != nil {
		return nil, fmt.Errorf("invalid PAYOUT_PLAN: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("RATE_LIMIT_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS environment variable: %q", os.Getenv("RATE_LIMIT_RPS"))
	}
	burst, err := getInt("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	migrations, err := strconv.ParseBool(getEnv("MIGRATIONS_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIGRATIONS_ENABLED environment variable: %w", err)
	}

	cfg := &Config{
		DatabaseURL:          dbURL,
		JWTSecretKey:         jwtKey,
		ServerPort:           port,
		PublicURL:            strings.TrimRight(getEnv("PUBLIC_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		MigrationsEnabled:    migrations,
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		SMTPHost:             os.Getenv("SMTP_HOST"),
		SMTPPort:             smtpPort,
		SMTPUser:             os.Getenv("SMTP_USER"),
		SMTPPass:             os.Getenv("SMTP_PASS"),
		SMTPFrom:             getEnv("SMTP_FROM", "no-reply@svxarena.com"),
		PlatformFeeAccountID: feeAccountID,
		ListingFee:           listingFee,
		SignupBonus:          signupBonus,
		PayoutPlan:           plan,
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		RateLimitRPS:         rps,
		RateLimitBurst:       burst,
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return v, nil
}

func getAmount(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %d", key, v)
	}
	return v, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
