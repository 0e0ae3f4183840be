package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env         string
	Port        int
	DatabaseURL string
	JWTSecret   string
	LogJSON     bool
	LogLevel    string

	MidtransServerKey  string
	MidtransClientKey  string
	MidtransProduction bool
	MidtransBaseURL    string
	MidtransSnapURL    string
	GatewayTimeout     time.Duration
	StrictSignature    bool

	SweepDelay    time.Duration
	SweepWindow   time.Duration
	SweepInterval time.Duration
	BackendURL    string

	PickupFee   int64
	DeliveryFee int64
}

func Default() Config {
	return Config{
		Env:            "dev",
		Port:           5000,
		DatabaseURL:    "",
		JWTSecret:      "",
		LogJSON:        true,
		LogLevel:       "info",
		GatewayTimeout: 10 * time.Second,
		SweepDelay:     time.Second,
		SweepWindow:    48 * time.Hour,
		BackendURL:     "http://127.0.0.1:5000",
		PickupFee:      10000,
		DeliveryFee:    10000,
	}
}

func EnvDefaults() Config {
	return fromEnv(Default())
}

func fromEnv(c Config) Config {
	if v := os.Getenv("LAUNDRY_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("LAUNDRY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("LAUNDRY_DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("LAUNDRY_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v, ok := boolEnv("LAUNDRY_LOG_JSON"); ok {
		c.LogJSON = v
	}
	if v := os.Getenv("LAUNDRY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LAUNDRY_MIDTRANS_SERVER_KEY"); v != "" {
		c.MidtransServerKey = v
	}
	if v := os.Getenv("LAUNDRY_MIDTRANS_CLIENT_KEY"); v != "" {
		c.MidtransClientKey = v
	}
	if v, ok := boolEnv("LAUNDRY_MIDTRANS_PRODUCTION"); ok {
		c.MidtransProduction = v
	}
	if v := os.Getenv("LAUNDRY_MIDTRANS_BASE_URL"); v != "" {
		c.MidtransBaseURL = v
	}
	if v := os.Getenv("LAUNDRY_MIDTRANS_SNAP_URL"); v != "" {
		c.MidtransSnapURL = v
	}
	if v, ok := durationEnv("LAUNDRY_GATEWAY_TIMEOUT"); ok {
		c.GatewayTimeout = v
	}
	if v, ok := boolEnv("LAUNDRY_STRICT_SIGNATURE"); ok {
		c.StrictSignature = v
	}
	if v, ok := durationEnv("LAUNDRY_SWEEP_DELAY"); ok {
		c.SweepDelay = v
	}
	if v, ok := durationEnv("LAUNDRY_SWEEP_WINDOW"); ok {
		c.SweepWindow = v
	}
	if v, ok := durationEnv("LAUNDRY_SWEEP_INTERVAL"); ok {
		c.SweepInterval = v
	}
	if v := os.Getenv("LAUNDRY_BACKEND_URL"); v != "" {
		c.BackendURL = v
	}
	if v := os.Getenv("LAUNDRY_PICKUP_FEE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.PickupFee = n
		}
	}
	if v := os.Getenv("LAUNDRY_DELIVERY_FEE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			c.DeliveryFee = n
		}
	}
	return c
}

func boolEnv(key string) (bool, bool) {
	switch os.Getenv(key) {
	case "1", "true", "TRUE":
		return true, true
	case "0", "false", "FALSE":
		return false, true
	}
	return false, false
}

// durationEnv accepts Go durations ("1500ms") or whole seconds ("10").
func durationEnv(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d, true
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second, true
	}
	return 0, false
}
